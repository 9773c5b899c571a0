package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter wires the middleware stack and every route onto a chi mux.
func NewRouter(h *Handlers, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.Health)

	r.Get("/targets", h.ListTargets)
	r.Get("/mcp-status", h.McpStatus)
	r.Get("/sessions", h.ListSessions)

	r.Get("/review-session", h.ReviewSession)

	r.Route("/comments", func(r chi.Router) {
		r.Get("/", h.ListComments)
		r.Post("/", h.CommentAction)
		r.Get("/counts", h.CommentCounts)
	})

	r.Route("/process", func(r chi.Router) {
		r.Get("/", h.ProcessInfo)
		r.Post("/", h.ProcessAction)
	})

	r.Route("/mcp", func(r chi.Router) {
		r.Post("/heartbeat", h.McpHeartbeat)
		r.Post("/resolve", h.McpResolve)
		r.Get("/pending", h.McpPending)
	})

	return r
}
