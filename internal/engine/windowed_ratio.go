// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"fmt"
	"time"

	"github.com/wardsight/wardsight/internal/models"
)

// framePredicate reports whether a single frame matches a windowed rule's
// condition.
type framePredicate func(f *models.FrameDetections, p RuleParams) bool

// predicates is the registry of named frame conditions a windowed_ratio rule
// can reference.
var predicates = map[string]framePredicate{
	// object_present: any detected object matches one of params.Classes.
	"object_present": func(f *models.FrameDetections, p RuleParams) bool {
		return f.HasClass(p.Classes)
	},

	// sleeping_posture: any pose is sleeping.
	"sleeping_posture": func(f *models.FrameDetections, _ RuleParams) bool {
		for _, pose := range f.Poses {
			if isSleepingPose(pose) {
				return true
			}
		}
		return false
	},

	// fallen_posture: any pose is fallen.
	"fallen_posture": func(f *models.FrameDetections, _ RuleParams) bool {
		for _, pose := range f.Poses {
			if isFallenPose(pose) {
				return true
			}
		}
		return false
	},

	// elevated_standing: exactly one person, standing, with feet keypoints
	// well above the ground line.
	"elevated_standing": func(f *models.FrameDetections, p RuleParams) bool {
		if len(f.Persons()) != 1 || len(f.Poses) == 0 {
			return false
		}
		pose := f.Poses[0]
		if pose.Posture != "standing" {
			return false
		}
		return isElevated(pose.Keypoints, p.GroundLevel, p.MinElevation)
	},
}

// windowedRatioRule triggers when the fraction of window frames matching the
// predicate reaches the threshold. A zero cooldown makes the rule fire at
// most once per session; a positive cooldown rate-limits repeats.
type windowedRatioRule struct {
	ruleBase
	window    time.Duration
	minRatio  float64
	cooldown  time.Duration
	predName  string
	predicate framePredicate
	params    RuleParams
}

func (r *windowedRatioRule) Kind() RuleKind { return KindWindowedRatio }

func (r *windowedRatioRule) Evaluate(sess *Session, _ *models.FrameDetections, now time.Time) *models.Event {
	frames := sess.RecentWithin(r.window, now)
	if len(frames) == 0 {
		return nil
	}

	matched := 0
	for _, f := range frames {
		if r.predicate(f, r.params) {
			matched++
		}
	}
	ratio := float64(matched) / float64(len(frames))
	if ratio < r.minRatio {
		return nil
	}

	key := r.name
	if r.cooldown <= 0 {
		if sess.hasFired(key) {
			return nil
		}
	} else if last, ok := sess.lastFired(key); ok && now.Sub(last) < r.cooldown {
		return nil
	}
	sess.markFired(key, now)

	details := map[string]any{
		"detection_ratio": ratio,
		"analysis_frames": len(frames),
		"duration":        r.window.Seconds() * ratio,
	}
	if r.predName == "fallen_posture" {
		details["location"] = fallLocation(frames)
	}

	return &models.Event{
		SessionID:  sess.ID,
		Name:       r.eventName,
		Category:   r.category,
		Timestamp:  now,
		Confidence: ratio,
		Details:    details,
	}
}

// fallLocation derives a coarse location for a fall event from the newest
// frame that shows a fallen pose, preferring the hip keypoint.
func fallLocation(frames []*models.FrameDetections) string {
	for i := len(frames) - 1; i >= 0; i-- {
		for _, pose := range frames[i].Poses {
			if !isFallenPose(pose) {
				continue
			}
			if hip, ok := pose.Keypoints["hip"]; ok {
				return fmt.Sprintf("%.0f,%.0f", hip.X, hip.Y)
			}
		}
	}
	return "unknown"
}
