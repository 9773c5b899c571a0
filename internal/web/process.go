package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/critic-sh/critic/internal/core/ai"
	"github.com/critic-sh/critic/internal/core/comment"
)

type processRequest struct {
	Intent     string   `json:"intent"`
	CommentIDs []string `json:"commentIds"`
	Provider   string   `json:"provider"`
	Model      string   `json:"model"`
}

// ProcessAction runs consolidation or saves the provider settings.
func (h *Handlers) ProcessAction(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Intent {
	case "process":
		h.processComments(w, r, req)
	case "saveSettings":
		h.saveSettings(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown intent %q", req.Intent))
	}
}

func (h *Handlers) processComments(w http.ResponseWriter, r *http.Request, req processRequest) {
	if len(req.CommentIDs) == 0 {
		writeError(w, http.StatusBadRequest, "commentIds are required")
		return
	}

	comments := make([]comment.Comment, 0, len(req.CommentIDs))
	for _, id := range req.CommentIDs {
		c, err := h.store.Get(r.Context(), id)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		comments = append(comments, c)
	}

	text, err := h.pipeline.Process(r.Context(), comments)
	if err != nil {
		// Chain exhaustion is the one AI failure surfaced verbatim.
		var exhausted *ai.ExhaustedError
		if errors.As(err, &exhausted) {
			writeError(w, http.StatusBadGateway, exhausted.Error())
			return
		}
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"processedText": text})
}

func (h *Handlers) saveSettings(w http.ResponseWriter, r *http.Request, req processRequest) {
	err := h.pipeline.SaveSettings(r.Context(), ai.Settings{Provider: req.Provider, Model: req.Model})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ProcessInfo reports provider availability, model catalogs, and the
// persisted settings.
func (h *Handlers) ProcessInfo(w http.ResponseWriter, r *http.Request) {
	settings, err := h.pipeline.LoadSettings(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	available := h.pipeline.AvailableProviders()
	if available == nil {
		available = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"availableProviders": available,
		"providerModels":     h.pipeline.ProviderModels(),
		"currentSettings":    settings,
	})
}
