package bot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagnant-channel-notifier-bot/templates"
)

const testSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	service, _ := newTestService(t)
	return NewRouter(NewHandler(service, testSecret, "file", zerolog.Nop()))
}

func signedRequest(t *testing.T, path, secret string, form url.Values) *http.Request {
	t.Helper()
	return signedBody(t, path, secret, form.Encode())
}

func signedBody(t *testing.T, path, secret, body string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	_, err := mac.Write([]byte("v0:" + ts + ":" + body))
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("X-Slack-Request-Timestamp", ts)
	request.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return request
}

func commandForm(command, userId, text string) url.Values {
	return url.Values{
		"command":    {command},
		"user_id":    {userId},
		"text":       {text},
		"team_id":    {"T1"},
		"channel_id": {"C0"},
	}
}

func decodeMsg(t *testing.T, recorder *httptest.ResponseRecorder) slack.Msg {
	t.Helper()
	var msg slack.Msg
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &msg))
	return msg
}

func TestHandleCommandWatchThenList(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, signedRequest(t, "/watch", testSecret, commandForm("/watch", "U1", "#general")))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.NotEmpty(t, recorder.Header().Get(requestIdHeader))
	msg := decodeMsg(t, recorder)
	assert.Equal(t, slack.ResponseTypeEphemeral, msg.ResponseType)
	assert.Equal(t, fmt.Sprintf(templates.AddSuccess, "general"), msg.Text)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, signedRequest(t, "/slack/commands", testSecret, commandForm("/list", "U1", "")))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, decodeMsg(t, recorder).Text, "• #general")
}

func TestHandleCommandRejectsBadSignature(t *testing.T) {
	router := newTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, signedRequest(t, "/watch", "wrong-secret", commandForm("/watch", "U1", "#general")))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, signedRequest(t, "/list", testSecret, commandForm("/list", "U1", "")))
	assert.Equal(t, templates.NoChannels, decodeMsg(t, recorder).Text, "rejected watch must not be stored")
}

func TestHandleCommandRejectsUnsigned(t *testing.T) {
	router := newTestRouter(t)
	request := httptest.NewRequest(http.MethodPost, "/watch", strings.NewReader(commandForm("/watch", "U1", "#general").Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestHandleCommandChecksSignatureBeforeParsing(t *testing.T) {
	router := newTestRouter(t)
	const malformed = "command=%zz&user_id=U1"

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, signedBody(t, "/watch", "wrong-secret", malformed))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, signedBody(t, "/watch", testSecret, malformed))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"status": "running", "storage": "file"}, body)
}
