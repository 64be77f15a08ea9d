// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/metrics"
	"github.com/wardsight/wardsight/internal/models"
)

// Engine evaluates every enabled rule against each session's frame history.
// It is pure with respect to delivery: callers receive the emitted events
// and decide where they go.
type Engine struct {
	store *SessionStore

	mu      sync.RWMutex
	rules   []Rule
	enabled bool
}

// NewEngine creates an engine over the given session store and rules.
func NewEngine(store *SessionStore, rules []Rule) *Engine {
	for _, r := range rules {
		logging.Info().
			Str("rule", r.Name()).
			Str("event_name", r.EventName()).
			Str("kind", string(r.Kind())).
			Bool("enabled", r.Enabled()).
			Msg("rule loaded")
	}
	return &Engine{
		store:   store,
		rules:   rules,
		enabled: true,
	}
}

// Store exposes the session store for introspection endpoints.
func (e *Engine) Store() *SessionStore { return e.store }

// ProcessFrame appends a frame to its session's buffer and evaluates every
// enabled rule. The session is created lazily on first sight. Returned
// events already carry IDs; the slice is nil when nothing triggered.
//
// A panic inside one rule is contained: the rule's result is discarded and
// the remaining rules still run.
func (e *Engine) ProcessFrame(det *models.FrameDetections) []*models.Event {
	e.mu.RLock()
	enabled := e.enabled
	rules := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Enabled() {
			rules = append(rules, r)
		}
	}
	e.mu.RUnlock()

	if !enabled || det == nil {
		return nil
	}

	var events []*models.Event
	e.store.withSession(det.StreamID, func(sess *Session) {
		sess.LastUpdate = e.store.opts.Now()
		sess.Append(det)

		for _, rule := range rules {
			event := e.evaluate(rule, sess, det)
			if event == nil {
				continue
			}
			event.ID = uuid.NewString()
			sess.triggered = append(sess.triggered, event)
			events = append(events, event)
			metrics.EventsEmitted.WithLabelValues(rule.Name(), rule.Category()).Inc()

			logging.Info().
				Str("session_id", sess.ID).
				Str("rule", rule.Name()).
				Str("event_name", event.Name).
				Float64("confidence", event.Confidence).
				Msg("event triggered")
		}
	})
	return events
}

// evaluate runs one rule with panic containment.
func (e *Engine) evaluate(rule Rule, sess *Session, det *models.FrameDetections) (event *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			event = nil
			metrics.RuleEvalErrors.WithLabelValues(rule.Name()).Inc()
			logging.Error().
				Str("rule", rule.Name()).
				Str("session_id", sess.ID).
				Interface("panic", r).
				Msg("rule evaluation panicked")
		}
	}()
	return rule.Evaluate(sess, det, det.Timestamp)
}

// Rules returns the specs of all registered rules for the admin API.
func (e *Engine) Rules() []RuleSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]RuleSummary, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, RuleSummary{
			Name:      r.Name(),
			EventName: r.EventName(),
			Category:  r.Category(),
			Kind:      r.Kind(),
			Enabled:   r.Enabled(),
		})
	}
	return out
}

// RuleSummary is the admin API view of a rule.
type RuleSummary struct {
	Name      string   `json:"name"`
	EventName string   `json:"event_name"`
	Category  string   `json:"category"`
	Kind      RuleKind `json:"kind"`
	Enabled   bool     `json:"enabled"`
}

// SetRuleEnabled toggles one rule by name.
func (e *Engine) SetRuleEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.rules {
		if r.Name() == name {
			r.SetEnabled(enabled)
			return nil
		}
	}
	return fmt.Errorf("rule not found: %s", name)
}

// SetEnabled toggles the whole engine.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	e.enabled = enabled
	e.mu.Unlock()
}

// Enabled reports whether the engine is processing frames.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}
