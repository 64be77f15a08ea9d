// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"time"

	"github.com/wardsight/wardsight/internal/models"
)

// multiEntityRatioRule covers supervised-interaction patterns such as
// one-on-one care or interviews: a frame qualifies only when it shows the
// exact person count and the designated person (first pose) holds the target
// posture. Enough qualifying frames among the last frameCount triggers the
// rule, subject to a cooldown.
type multiEntityRatioRule struct {
	ruleBase
	frameCount  int
	personCount int
	posture     string
	minRatio    float64
	cooldown    time.Duration
}

func (r *multiEntityRatioRule) Kind() RuleKind { return KindMultiEntityRatio }

func (r *multiEntityRatioRule) Evaluate(sess *Session, _ *models.FrameDetections, now time.Time) *models.Event {
	if sess.Len() < r.frameCount {
		return nil
	}
	frames := sess.LastN(r.frameCount)

	valid := 0
	for _, f := range frames {
		if len(f.Persons()) != r.personCount || len(f.Poses) == 0 {
			continue
		}
		if f.Poses[0].Posture == r.posture {
			valid++
		}
	}

	ratio := float64(valid) / float64(r.frameCount)
	if ratio < r.minRatio {
		return nil
	}

	key := r.name
	if last, ok := sess.lastFired(key); ok && now.Sub(last) < r.cooldown {
		return nil
	}
	sess.markFired(key, now)

	return &models.Event{
		SessionID:  sess.ID,
		Name:       r.eventName,
		Category:   r.category,
		Timestamp:  now,
		Confidence: ratio,
		Details: map[string]any{
			r.posture + "_ratio": ratio,
			"analysis_frames":    r.frameCount,
		},
	}
}
