// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/risk"
	"github.com/wardsight/wardsight/internal/stream"
)

// RiskProfiles returns every risk tier profile.
func (h *Handlers) RiskProfiles(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.profiles.All())
}

// updateProfileRequest updates one risk tier. Zero-valued optional fields
// keep the tier's current values.
type updateProfileRequest struct {
	Level               string   `json:"level"`
	IntervalSeconds     float64  `json:"interval_seconds"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	MaxObjects          int      `json:"max_objects"`
	DetectionClasses    []string `json:"detection_classes"`
}

// UpdateRiskProfile changes a tier's sampling interval and detection
// parameters, then reapplies the tier to every registered stream so
// running workers pick up the new interval immediately.
func (h *Handlers) UpdateRiskProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid request: "+err.Error())
		return
	}
	level, err := risk.ParseLevel(req.Level)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	prof := h.profiles.Get(level)
	if req.IntervalSeconds > 0 {
		prof.Interval = time.Duration(req.IntervalSeconds * float64(time.Second))
	}
	if req.ConfidenceThreshold > 0 {
		prof.ConfidenceThreshold = req.ConfidenceThreshold
	}
	if req.MaxObjects > 0 {
		prof.MaxObjects = req.MaxObjects
	}
	if req.DetectionClasses != nil {
		prof.DetectionClasses = req.DetectionClasses
	}
	if err := h.profiles.Set(prof); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	h.reapplyRisk()

	logging.Info().Str("level", string(level)).Dur("interval", prof.Interval).
		Msg("risk profile updated")
	respond(w, r, http.StatusOK, prof)
}

// reapplyRisk pushes each stream's current tier back through the manager
// so sampler gates reload the (possibly changed) profile interval.
func (h *Handlers) reapplyRisk() {
	for _, cfg := range h.manager.List() {
		err := h.manager.SetRisk(cfg.StreamID, cfg.RiskLevel, cfg.Interval())
		if err != nil && !errors.Is(err, stream.ErrNotFound) {
			logging.Warn().Err(err).Str("stream_id", cfg.StreamID).
				Msg("reapplying risk profile")
		}
	}
}
