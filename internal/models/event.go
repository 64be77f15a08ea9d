// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package models

import "time"

// Event is a behavioral event emitted by the detection engine.
//
// Name is a free-form public event name (the shipped rule set keeps the
// operator-facing names of the source deployment); consumers must key on
// Category and Details, never parse Name.
type Event struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Name       string         `json:"event_name"`
	Category   string         `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	Confidence float64        `json:"confidence"`
	Details    map[string]any `json:"details,omitempty"`
}
