package web

import (
	"net/http"

	"github.com/critic-sh/critic/internal/core/comment"
)

type heartbeatRequest struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	WorkingDir string `json:"workingDir"`
}

// McpHeartbeat registers or refreshes a remote client.
func (h *Handlers) McpHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	client, err := h.registry.Heartbeat(r.Context(), req.Name, req.Version, req.WorkingDir)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": client})
}

type resolveRequest struct {
	ID         string `json:"id"`
	ResolvedBy string `json:"resolvedBy"`
}

// McpResolve records a remote client resolving a delivered comment.
func (h *Handlers) McpResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if req.ResolvedBy == "" {
		req.ResolvedBy = "mcp"
	}

	if err := h.store.MarkResolved(r.Context(), req.ID, req.ResolvedBy); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// McpPending returns staged and sent comments for a client poll. Staged
// comments are included so pull-based clients can pick work up before an
// explicit delivery.
func (h *Handlers) McpPending(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	all, err := h.store.ListBySession(r.Context(), sessionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	pending := []comment.Comment{}
	for _, c := range all {
		if c.Status == comment.StatusStaged || c.Status == comment.StatusSent {
			pending = append(pending, c)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": pending})
}
