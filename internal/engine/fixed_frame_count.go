// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"time"

	"github.com/wardsight/wardsight/internal/models"
)

// fixedFrameCountRule triggers when an item of interest appears in at least
// minMatches of the last frameCount frames. Each distinct item fires at most
// once per session, keyed rule_item, so a knife and a pair of scissors on
// the same desk each raise their own event.
type fixedFrameCountRule struct {
	ruleBase
	frameCount int
	minMatches int
	items      []string
	confidence float64
}

func (r *fixedFrameCountRule) Kind() RuleKind { return KindFixedFrameCount }

func (r *fixedFrameCountRule) Evaluate(sess *Session, _ *models.FrameDetections, now time.Time) *models.Event {
	if sess.Len() < r.frameCount {
		return nil
	}
	frames := sess.LastN(r.frameCount)

	// Count frames containing each item, not raw detections, so duplicate
	// boxes in one frame do not inflate the count.
	counts := make(map[string]int, len(r.items))
	for _, f := range frames {
		for _, item := range r.items {
			if f.HasClass([]string{item}) {
				counts[item]++
			}
		}
	}

	// Items are checked in config order so evaluation is deterministic when
	// several qualify in the same frame.
	for _, item := range r.items {
		if counts[item] < r.minMatches {
			continue
		}
		key := r.name + "_" + item
		if sess.hasFired(key) {
			continue
		}
		sess.markFired(key, now)

		return &models.Event{
			SessionID:  sess.ID,
			Name:       r.eventName,
			Category:   r.category,
			Timestamp:  now,
			Confidence: r.confidence,
			Details: map[string]any{
				"detected_object": item,
				"tracking_frames": r.frameCount,
				"valid_frames":    counts[item],
			},
		}
	}
	return nil
}
