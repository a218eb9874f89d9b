package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server wraps a chi router with the shared middleware stack.
type Server struct {
	Router chi.Router
	log    zerolog.Logger
	srv    *http.Server
}

// New builds the router. The chat endpoint streams for minutes, so the
// blanket timeout stays generous.
func New(logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Handle("/metrics", promhttp.Handler())
	return &Server{Router: r, log: logger}
}

// Start serves on the given port until the listener fails.
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.Router,
		ReadTimeout: 15 * time.Second,
		// SSE responses are long-lived; no write timeout.
	}
	s.log.Info().Str("addr", s.srv.Addr).Msg("http: listening")
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
