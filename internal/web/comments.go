package web

import (
	"fmt"
	"net/http"

	"github.com/critic-sh/critic/internal/core/comment"
)

// commentRequest is the union body for every POST /comments intent. Fields
// outside the active intent are ignored.
type commentRequest struct {
	Intent string `json:"intent"`

	// create
	SessionID string       `json:"sessionId"`
	FilePath  string       `json:"filePath"`
	LineStart *int         `json:"lineStart"`
	LineEnd   *int         `json:"lineEnd"`
	Side      comment.Side `json:"side"`
	Content   string       `json:"content"`

	// update / delete
	ID        string          `json:"id"`
	NewStatus *comment.Status `json:"status"`

	// stage / markSent
	IDs []string `json:"ids"`
}

// CommentAction dispatches on the request intent. Unknown intents are a 400.
func (h *Handlers) CommentAction(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Intent {
	case "create":
		h.createComment(w, r, req)
	case "update":
		h.updateComment(w, r, req)
	case "delete":
		h.deleteComment(w, r, req)
	case "stage":
		h.bulkStatus(w, r, req.IDs, comment.StatusStaged)
	case "markSent":
		h.markSent(w, r, req.IDs)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown intent %q", req.Intent))
	}
}

func (h *Handlers) createComment(w http.ResponseWriter, r *http.Request, req commentRequest) {
	filePath := req.FilePath
	if filePath == "" {
		filePath = comment.GeneralFile
	}

	c, err := h.store.Create(r.Context(), comment.CreateInput{
		SessionID: req.SessionID,
		FilePath:  filePath,
		LineStart: req.LineStart,
		LineEnd:   req.LineEnd,
		Side:      req.Side,
		Content:   req.Content,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": c})
}

func (h *Handlers) updateComment(w http.ResponseWriter, r *http.Request, req commentRequest) {
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	in := comment.UpdateInput{Status: req.NewStatus}
	if req.Content != "" {
		in.Content = &req.Content
	}

	c, err := h.store.Update(r.Context(), req.ID, in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comment": c})
}

func (h *Handlers) deleteComment(w http.ResponseWriter, r *http.Request, req commentRequest) {
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	removed, err := h.store.Delete(r.Context(), req.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": removed})
}

func (h *Handlers) bulkStatus(w http.ResponseWriter, r *http.Request, ids []string, status comment.Status) {
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	count, err := h.store.BulkSetStatus(r.Context(), ids, status)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

func (h *Handlers) markSent(w http.ResponseWriter, r *http.Request, ids []string) {
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	count, err := h.store.MarkSent(r.Context(), ids)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": count})
}

// ListComments returns every comment in a session, oldest first.
func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	comments, err := h.store.ListBySession(r.Context(), sessionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if comments == nil {
		comments = []comment.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// CommentCounts returns per-status counts for a session. Every status key is
// always present, zero-filled.
func (h *Handlers) CommentCounts(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	counts, err := h.store.CountsByStatus(r.Context(), sessionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}
