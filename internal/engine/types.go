// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package engine implements the stateful behavioral detection engine:
// session-keyed frame buffers evaluated by configurable multi-frame rules.
package engine

import (
	"time"

	"github.com/wardsight/wardsight/internal/models"
)

// RuleKind selects the evaluation strategy for a rule.
type RuleKind string

const (
	// KindWindowedRatio triggers when the ratio of frames matching a
	// predicate inside a trailing time window reaches a threshold.
	KindWindowedRatio RuleKind = "windowed_ratio"

	// KindFixedFrameCount triggers when an item appears in at least M of
	// the last N frames, once per distinct item per session.
	KindFixedFrameCount RuleKind = "fixed_frame_count"

	// KindMultiEntityRatio triggers when enough of the last N frames show
	// an exact person count with the designated person in a target posture.
	KindMultiEntityRatio RuleKind = "multi_entity_ratio"
)

// RuleSpec is the JSON shape of one rule in the rules file. EventName is a
// free-form display name and never drives dispatch; Kind does.
type RuleSpec struct {
	Name      string     `json:"name"`
	EventName string     `json:"event_name"`
	Category  string     `json:"category"`
	Kind      RuleKind   `json:"kind"`
	Enabled   bool       `json:"enabled"`
	Params    RuleParams `json:"params"`
}

// RuleParams carries the per-kind tuning knobs. Unused fields for a given
// kind are ignored.
type RuleParams struct {
	// windowed_ratio
	WindowSeconds   float64  `json:"window_seconds,omitempty"`
	MinRatio        float64  `json:"min_ratio,omitempty"`
	Predicate       string   `json:"predicate,omitempty"`
	Classes         []string `json:"classes,omitempty"`
	CooldownSeconds float64  `json:"cooldown_seconds,omitempty"` // 0 means trigger once per session

	// fixed_frame_count
	FrameCount int      `json:"frame_count,omitempty"`
	MinMatches int      `json:"min_matches,omitempty"`
	Items      []string `json:"items,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`

	// multi_entity_ratio
	PersonCount int    `json:"person_count,omitempty"`
	Posture     string `json:"posture,omitempty"`

	// elevated_standing predicate tuning (pixel coordinates)
	GroundLevel  float64 `json:"ground_level,omitempty"`
	MinElevation float64 `json:"min_elevation,omitempty"`
}

// Rule evaluates one behavioral pattern against a session. Evaluate is
// called with the session lock held and must not block; it returns nil when
// nothing triggers. The now argument is the capture timestamp of the frame
// being processed, so evaluation is deterministic under test clocks.
type Rule interface {
	Name() string
	EventName() string
	Category() string
	Kind() RuleKind
	Enabled() bool
	SetEnabled(bool)
	Evaluate(sess *Session, frame *models.FrameDetections, now time.Time) *models.Event
}

// ruleBase carries the identity fields shared by all rule kinds.
type ruleBase struct {
	name      string
	eventName string
	category  string
	enabled   bool
}

func (r *ruleBase) Name() string         { return r.name }
func (r *ruleBase) EventName() string    { return r.eventName }
func (r *ruleBase) Category() string     { return r.category }
func (r *ruleBase) Enabled() bool        { return r.enabled }
func (r *ruleBase) SetEnabled(on bool)   { r.enabled = on }
