package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/adwski/interest-chat/backend/service"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type StatsService interface {
	Stats() service.Stats
}

type Server struct {
	logger        zerolog.Logger
	svc           StatsService
	allowedOrigin string
	*http.Server
}

type Config struct {
	Logger        *zerolog.Logger
	StatsService  StatsService
	ListenAddr    string
	AllowedOrigin string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:        cfg.Logger.With().Str("component", "api-server").Logger(),
		svc:           cfg.StatsService,
		allowedOrigin: cfg.AllowedOrigin,
	}
	if srv.allowedOrigin == "" {
		srv.allowedOrigin = "*"
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/stats", srv.stats).Methods(http.MethodGet)
	r.Methods(http.MethodOptions).HandlerFunc(srv.corsHandler)
	r.Use(srv.cors)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func (srv *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", srv.allowedOrigin)
		next.ServeHTTP(w, r)
	})
}

func (srv *Server) corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", srv.allowedOrigin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	if srv.allowedOrigin != "*" {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) stats(w http.ResponseWriter, _ *http.Request) {
	stats := srv.svc.Stats()
	srv.logger.Trace().Any("stats", stats).Msg("stats requested")

	b, err := json.Marshal(&stats)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	srv.writeBytes(w, http.StatusOK, b)
}

func (srv *Server) writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		srv.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
