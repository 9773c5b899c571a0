package web

import (
	"net/http"

	"github.com/critic-sh/critic/internal/core/detect"
	"github.com/critic-sh/critic/internal/core/target"
)

// ListTargets returns the ranked delivery target list. Discovery failures
// degrade to a clipboard-only list with an error field, never a 5xx: the
// reviewer must stay able to queue comments with no live agent around.
func (h *Handlers) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.resolver.List(r.Context())

	body := struct {
		Targets []target.Target `json:"targets"`
		Error   string          `json:"error,omitempty"`
	}{Targets: targets}

	if err != nil {
		h.log.Warn().Err(err).Msg("target resolution degraded")
		body.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// McpStatus summarizes the remote client registry for display.
func (h *Handlers) McpStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.registry.GetStatus(r.Context())
	if err != nil {
		// Same degradation rule as targets: report disconnected, not a 5xx.
		h.log.Warn().Err(err).Msg("registry status query failed")
		writeJSON(w, http.StatusOK, map[string]any{
			"connected":   false,
			"clientCount": 0,
			"clients":     []any{},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connected":   status.ClientCount > 0,
		"clientCount": status.ClientCount,
		"clients":     status.Clients,
	})
}

// ListSessions returns the tmux topology, optionally narrowed to a
// repository path. available=false means the multiplexer cannot be queried.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	repoPath := r.URL.Query().Get("repoPath")

	var snap detect.Snapshot
	if repoPath == "" {
		snap = h.detector.ListSessions(r.Context())
	} else {
		snap = h.detector.ListForRepo(r.Context(), repoPath)
	}

	sessions := snap.Sessions
	if sessions == nil {
		sessions = []detect.Session{}
	}
	agentSessions := []detect.Session{}
	for _, s := range sessions {
		if s.DetectedProcess != "" {
			agentSessions = append(agentSessions, s)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"available":           snap.Available,
		"sessions":            sessions,
		"codingAgentSessions": agentSessions,
	})
}

// ReviewSession lazily creates the session for a (repo, branch) pair.
func (h *Handlers) ReviewSession(w http.ResponseWriter, r *http.Request) {
	repoID := r.URL.Query().Get("repoId")
	branch := r.URL.Query().Get("branch")
	if repoID == "" || branch == "" {
		writeError(w, http.StatusBadRequest, "repoId and branch are required")
		return
	}

	session, err := h.store.EnsureSession(r.Context(), repoID, branch)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}
