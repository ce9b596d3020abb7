package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adwski/interest-chat/backend/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type staticStats service.Stats

func (s staticStats) Stats() service.Stats {
	return service.Stats(s)
}

func newTestServer(origin string) *Server {
	logger := zerolog.Nop()
	return NewServer(Config{
		Logger:        &logger,
		StatsService:  staticStats{Connections: 3, Waiting: 1, Rooms: 1},
		AllowedOrigin: origin,
	})
}

func TestServer_Stats(t *testing.T) {
	srv := newTestServer("http://localhost:3000")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"connections":3,"waiting":1,"rooms":1}`, rec.Body.String())
}

func TestServer_Preflight(t *testing.T) {
	srv := newTestServer("")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/stats", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"), "credentials are not allowed with a wildcard origin")
}

func TestServer_PreflightWithOrigin(t *testing.T) {
	srv := newTestServer("http://localhost:3000")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/stats", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := newTestServer("*")

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stats", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
