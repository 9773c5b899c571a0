// Package web implements the HTTP surface the review UI and remote clients
// talk to.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server wraps an HTTP server with graceful shutdown.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates the HTTP server around an already-wired handler set.
func NewServer(addr string, h *Handlers, log zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(h, log),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		log: log.With().Str("cmp", "web").Logger(),
	}
}

// Start blocks until shutdown or listen failure.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting http server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests with a bounded timeout.
func (s *Server) Stop() error {
	s.log.Info().Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
