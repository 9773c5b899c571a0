package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/critic-sh/critic/internal/core/ai"
	"github.com/critic-sh/critic/internal/core/comment"
	"github.com/critic-sh/critic/internal/core/detect"
	"github.com/critic-sh/critic/internal/core/mcp"
	"github.com/critic-sh/critic/internal/core/target"
)

// SessionLister is the slice of the detector the HTTP surface consumes.
type SessionLister interface {
	ListSessions(ctx context.Context) detect.Snapshot
	ListForRepo(ctx context.Context, repoPath string) detect.Snapshot
}

// Handlers holds every dependency the HTTP surface needs.
type Handlers struct {
	store    comment.Store
	registry *mcp.Registry
	resolver *target.Resolver
	detector SessionLister
	pipeline *ai.Pipeline
	log      zerolog.Logger
}

func NewHandlers(
	store comment.Store,
	registry *mcp.Registry,
	resolver *target.Resolver,
	detector SessionLister,
	pipeline *ai.Pipeline,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		store:    store,
		registry: registry,
		resolver: resolver,
		detector: detector,
		pipeline: pipeline,
		log:      log.With().Str("cmp", "web").Logger(),
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps store and validation failures onto status codes:
// missing rows are 404, bad input and illegal transitions are 400,
// everything else a 500.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	var verr *comment.ValidationError
	var terr *comment.TransitionError

	switch {
	case errors.Is(err, comment.ErrNotFound), errors.Is(err, comment.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr), errors.As(err, &terr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, into any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(into)
}
