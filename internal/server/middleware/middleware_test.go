package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/clientboot/internal/foundation/errors"
	"git.home.luguber.info/inful/clientboot/internal/observability"
)

func TestChain_RecoversPanics(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := Chain(logger, derrors.NewHTTPErrorAdapter(slog.New(slog.NewTextHandler(io.Discard, nil))))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body derrors.HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.Contains(t, logs.String(), "HTTP handler panic")
	assert.Contains(t, logs.String(), "status=500")
}

func TestChain_RequestID(t *testing.T) {
	h := Chain(slog.New(slog.NewTextHandler(io.Discard, nil)), derrors.NewHTTPErrorAdapter(nil))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, r.Header.Get(RequestIDHeader))
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, rec.Body.String())

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
}

func TestChain_RequestIDInContextAndLogs(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(observability.NewContextHandler(slog.NewTextHandler(&logs, nil)))
	var seen string
	h := Chain(logger, derrors.NewHTTPErrorAdapter(nil))(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = observability.RequestID(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "abc-123", seen)
	assert.Contains(t, logs.String(), "request_id=abc-123")
}
