package bot

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const requestIdHeader = "X-Request-Id"

type Handler struct {
	service       *Service
	signingSecret string
	backend       string
	log           zerolog.Logger
}

func NewHandler(service *Service, signingSecret, backend string, log zerolog.Logger) *Handler {
	return &Handler{
		service:       service,
		signingSecret: signingSecret,
		backend:       backend,
		log:           log.With().Str("component", "http").Logger(),
	}
}

// HandleCommand verifies the request signature, parses the slash command
// and answers with an ephemeral message.
func (h *Handler) HandleCommand(writer http.ResponseWriter, request *http.Request) {
	log := zerolog.Ctx(request.Context())
	verifier, err := slack.NewSecretsVerifier(request.Header, h.signingSecret)
	if err != nil {
		log.Warn().Err(err).Msg("rejecting unsigned request")
		writer.WriteHeader(http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(io.TeeReader(request.Body, &verifier))
	if err != nil {
		log.Warn().Err(err).Msg("unable to read request body")
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	err = verifier.Ensure()
	if err != nil {
		log.Warn().Err(err).Msg("rejecting request with bad signature")
		writer.WriteHeader(http.StatusUnauthorized)
		return
	}
	request.Body = io.NopCloser(bytes.NewReader(body))
	command, err := slack.SlashCommandParse(request)
	if err != nil {
		log.Warn().Err(err).Msg("unable to parse slash command")
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	reply := h.service.Handle(request.Context(), Command{
		Name:   command.Command,
		UserId: command.UserID,
		Text:   command.Text,
	})
	writeJSON(writer, log, &slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: reply})
}

func (h *Handler) Health(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, zerolog.Ctx(request.Context()), map[string]string{
		"status":  "running",
		"storage": h.backend,
	})
}

func writeJSON(writer http.ResponseWriter, log *zerolog.Logger, v interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(writer).Encode(v)
	if err != nil {
		log.Error().Err(err).Msg("unable to write response")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestLogger tags each request with an id and attaches a logger carrying
// it to the request context.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		id := request.Header.Get(requestIdHeader)
		if id == "" {
			id = uuid.NewString()
		}
		log := h.log.With().Str("request_id", id).Logger()
		writer.Header().Set(requestIdHeader, id)
		sw := &statusWriter{ResponseWriter: writer, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(sw, request.WithContext(log.WithContext(request.Context())))
		log.Info().
			Str("method", request.Method).
			Str("path", request.URL.Path).
			Int("status", sw.status).
			Dur("took", time.Since(started)).
			Msg("request handled")
	})
}
