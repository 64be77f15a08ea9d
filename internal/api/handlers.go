// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardsight/wardsight/internal/engine"
	"github.com/wardsight/wardsight/internal/eventstore"
	"github.com/wardsight/wardsight/internal/risk"
	"github.com/wardsight/wardsight/internal/stream"
	"github.com/wardsight/wardsight/internal/websocket"
)

// Handlers holds the collaborators behind the HTTP endpoints.
type Handlers struct {
	manager   *stream.Manager
	profiles  *risk.Profiles
	engine    *engine.Engine
	events    *eventstore.Store
	hub       *websocket.Hub
	startedAt time.Time
}

// NewHandlers creates the handler set. The event archive and hub may be
// nil when those subsystems are disabled.
func NewHandlers(m *stream.Manager, p *risk.Profiles, e *engine.Engine, ev *eventstore.Store, hub *websocket.Hub) *Handlers {
	return &Handlers{
		manager:   m,
		profiles:  p,
		engine:    e,
		events:    ev,
		hub:       hub,
		startedAt: time.Now(),
	}
}

// Health reports liveness plus a coarse subsystem summary.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	running := 0
	for _, s := range h.manager.StatsAll() {
		if s.Status == stream.StatusRunning {
			running++
		}
	}
	respond(w, r, http.StatusOK, map[string]any{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
		"streams_running": running,
		"engine_enabled":  h.engine.Enabled(),
		"sessions":        h.engine.Store().Count(),
	})
}

// streamError maps manager sentinel errors to HTTP status codes.
func streamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, stream.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, stream.ErrAlreadyExists),
		errors.Is(err, stream.ErrAlreadyRunning),
		errors.Is(err, stream.ErrNotRunning):
		respondError(w, r, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, stream.ErrMaxStreams):
		respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, err.Error())
	default:
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	}
}

// ListStreams returns every registered stream configuration.
func (h *Handlers) ListStreams(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.manager.List())
}

// CreateStream registers a new stream.
func (h *Handlers) CreateStream(w http.ResponseWriter, r *http.Request) {
	var cfg stream.Config
	if err := decodeBody(r, &cfg); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid stream config: "+err.Error())
		return
	}
	if err := h.manager.Register(cfg); err != nil {
		streamError(w, r, err)
		return
	}
	created, err := h.manager.Get(cfg.StreamID)
	if err != nil {
		streamError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, created)
}

// batchResult reports the outcome of one entry in a batch registration.
type batchResult struct {
	StreamID string `json:"stream_id"`
	Status   string `json:"status"` // registered or failed
	Error    string `json:"error,omitempty"`
}

// CreateStreams registers a batch of streams. Each entry succeeds or
// fails independently; the response reports both sets.
func (h *Handlers) CreateStreams(w http.ResponseWriter, r *http.Request) {
	var cfgs []stream.Config
	if err := decodeBody(r, &cfgs); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid stream config list: "+err.Error())
		return
	}
	if len(cfgs) == 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "empty stream config list")
		return
	}

	results := make([]batchResult, 0, len(cfgs))
	registered := 0
	for _, cfg := range cfgs {
		if err := h.manager.Register(cfg); err != nil {
			results = append(results, batchResult{StreamID: cfg.StreamID, Status: "failed", Error: err.Error()})
			continue
		}
		results = append(results, batchResult{StreamID: cfg.StreamID, Status: "registered"})
		registered++
	}

	status := http.StatusCreated
	if registered == 0 {
		status = http.StatusBadRequest
	}
	respond(w, r, status, map[string]any{
		"registered": registered,
		"failed":     len(cfgs) - registered,
		"results":    results,
	})
}

// GetStream returns one stream configuration.
func (h *Handlers) GetStream(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		streamError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, cfg)
}

// UpdateStream replaces a stream's configuration, restarting the capture
// worker only when the source changed.
func (h *Handlers) UpdateStream(w http.ResponseWriter, r *http.Request) {
	var cfg stream.Config
	if err := decodeBody(r, &cfg); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid stream config: "+err.Error())
		return
	}
	cfg.StreamID = chi.URLParam(r, "id")
	if err := h.manager.UpdateConfig(cfg); err != nil {
		streamError(w, r, err)
		return
	}
	updated, err := h.manager.Get(cfg.StreamID)
	if err != nil {
		streamError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, updated)
}

// DeleteStream stops and removes a stream.
func (h *Handlers) DeleteStream(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(chi.URLParam(r, "id")); err != nil {
		streamError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"stream_id": chi.URLParam(r, "id"), "status": "deleted"})
}

// StartStream starts a stream's capture worker.
func (h *Handlers) StartStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Start(id); err != nil {
		streamError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"stream_id": id, "status": "starting"})
}

// StopStream stops a stream's capture worker.
func (h *Handlers) StopStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.manager.Stop(id); err != nil {
		streamError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"stream_id": id, "status": "stopped"})
}

// StartAll starts every enabled stream.
func (h *Handlers) StartAll(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.StartAll(); err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"status": "started"})
}

// StopAll stops every running stream.
func (h *Handlers) StopAll(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.StopAll(); err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"status": "stopped"})
}

// StreamStats returns one stream's counters.
func (h *Handlers) StreamStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Stats(chi.URLParam(r, "id"))
	if err != nil {
		streamError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, stats)
}

// AllStats returns counters for every registered stream.
func (h *Handlers) AllStats(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.manager.StatsAll())
}

// setRiskRequest updates one stream's risk tier.
type setRiskRequest struct {
	RiskLevel       string  `json:"risk_level"`
	IntervalSeconds float64 `json:"interval_seconds"`
}

// SetStreamRisk changes a stream's risk tier live, without restarting
// the capture worker.
func (h *Handlers) SetStreamRisk(w http.ResponseWriter, r *http.Request) {
	var req setRiskRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request: "+err.Error())
		return
	}
	level, err := risk.ParseLevel(req.RiskLevel)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	override := time.Duration(req.IntervalSeconds * float64(time.Second))
	if err := h.manager.SetRisk(id, level, override); err != nil {
		streamError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"stream_id":  id,
		"risk_level": level,
	})
}

// WebSocket upgrades the connection and attaches it to the hub.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "websocket hub not enabled")
		return
	}
	websocket.ServeWS(h.hub, w, r)
}
