package bot

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	readTimeout     = time.Second * 10
	writeTimeout    = time.Second * 10
	shutdownTimeout = time.Second * 15
)

// NewRouter exposes every slash command both on its own path and on a
// shared endpoint, so the Slack app can point commands at either.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(h.requestLogger)
	router.Methods(http.MethodGet).Path("/").HandlerFunc(h.Health)
	router.Methods(http.MethodPost).Path("/watch").HandlerFunc(h.HandleCommand)
	router.Methods(http.MethodPost).Path("/unwatch").HandlerFunc(h.HandleCommand)
	router.Methods(http.MethodPost).Path("/list").HandlerFunc(h.HandleCommand)
	router.Methods(http.MethodPost).Path("/slack/commands").HandlerFunc(h.HandleCommand)
	return router
}

// Serve runs the command service until ctx is cancelled, then drains
// in-flight requests.
func Serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	failed := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("command service started")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case err := <-failed:
		return errors.Wrap(err, "command service stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		return errors.Wrap(err, "unable to shut down command service")
	}
	log.Info().Msg("command service stopped")
	return nil
}
