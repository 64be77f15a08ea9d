// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SessionStatus returns one detection session's buffer and trigger state.
func (h *Handlers) SessionStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.engine.Store().Status(chi.URLParam(r, "id")))
}

// SessionEvents returns the events triggered in one session.
func (h *Handlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status := h.engine.Store().Status(id)
	if !status.Exists {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "no session for stream "+id)
		return
	}
	respond(w, r, http.StatusOK, h.engine.Store().Events(id))
}

// ClearSession discards a session's buffered frames and trigger state.
func (h *Handlers) ClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.engine.Store().Clear(id) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "no session for stream "+id)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"stream_id": id, "status": "cleared"})
}

// ListRules returns every loaded rule with its enabled state.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.engine.Rules())
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetRuleEnabled toggles one rule without reloading the rule set.
func (h *Handlers) SetRuleEnabled(w http.ResponseWriter, r *http.Request) {
	var req setEnabledRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request: "+err.Error())
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.engine.SetRuleEnabled(name, req.Enabled); err != nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
		return
	}
	respond(w, r, http.StatusOK, map[string]any{"rule": name, "enabled": req.Enabled})
}

// EngineStatus reports whether rule evaluation is running.
func (h *Handlers) EngineStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{
		"enabled":  h.engine.Enabled(),
		"sessions": h.engine.Store().Count(),
	})
}

// SetEngineEnabled pauses or resumes rule evaluation globally. Frames
// still flow to the detector while paused; only rule state stops advancing.
func (h *Handlers) SetEngineEnabled(w http.ResponseWriter, r *http.Request) {
	var req setEnabledRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request: "+err.Error())
		return
	}
	h.engine.SetEnabled(req.Enabled)
	respond(w, r, http.StatusOK, map[string]any{"enabled": req.Enabled})
}
