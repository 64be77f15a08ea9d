// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"testing"
	"time"

	"github.com/wardsight/wardsight/internal/models"
)

func tsFrame(ts time.Time) *models.FrameDetections {
	return &models.FrameDetections{StreamID: "s1", Timestamp: ts}
}

func TestSessionBufferBounded(t *testing.T) {
	base := time.Unix(1000, 0)
	sess := newSession("s1", 5, base)

	for i := 0; i < 12; i++ {
		sess.Append(tsFrame(base.Add(time.Duration(i) * time.Second)))
	}
	if sess.Len() != 5 {
		t.Fatalf("buffer length = %d, want capacity 5", sess.Len())
	}

	// Oldest surviving frame is i=7.
	frames := sess.LastN(5)
	if got := frames[0].Timestamp; !got.Equal(base.Add(7 * time.Second)) {
		t.Errorf("oldest frame at %v, want +7s", got)
	}
	if got := frames[4].Timestamp; !got.Equal(base.Add(11 * time.Second)) {
		t.Errorf("newest frame at %v, want +11s", got)
	}
}

func TestSessionLastNFewerFrames(t *testing.T) {
	base := time.Unix(1000, 0)
	sess := newSession("s1", 10, base)
	sess.Append(tsFrame(base))
	sess.Append(tsFrame(base.Add(time.Second)))

	if got := len(sess.LastN(5)); got != 2 {
		t.Errorf("LastN(5) with 2 frames = %d entries", got)
	}
}

func TestSessionRecentWithin(t *testing.T) {
	base := time.Unix(2000, 0)
	sess := newSession("s1", 100, base)
	for i := 0; i < 10; i++ {
		sess.Append(tsFrame(base.Add(time.Duration(i) * 10 * time.Second)))
	}

	now := base.Add(90 * time.Second)
	// Window of 30s holds frames at +60, +70, +80, +90 inclusively.
	frames := sess.RecentWithin(30*time.Second, now)
	if len(frames) != 4 {
		t.Fatalf("window frames = %d, want 4", len(frames))
	}
	if !frames[0].Timestamp.Equal(base.Add(60 * time.Second)) {
		t.Errorf("first window frame at %v, want +60s", frames[0].Timestamp)
	}
	if !frames[3].Timestamp.Equal(base.Add(90 * time.Second)) {
		t.Errorf("last window frame at %v, want +90s", frames[3].Timestamp)
	}
}

func TestSessionTriggerStateKeys(t *testing.T) {
	base := time.Unix(3000, 0)
	sess := newSession("s1", 10, base)

	if sess.hasFired("rule_knife") {
		t.Error("fresh session has fired state")
	}
	sess.markFired("rule_knife", base)
	sess.markFired("phone", base.Add(time.Second))

	if !sess.hasFired("rule_knife") {
		t.Error("markFired not recorded")
	}
	if at, ok := sess.lastFired("phone"); !ok || !at.Equal(base.Add(time.Second)) {
		t.Errorf("lastFired = %v %v", at, ok)
	}

	states := sess.ActiveStates()
	if len(states) != 2 || states[0] != "phone" || states[1] != "rule_knife" {
		t.Errorf("ActiveStates = %v, want sorted keys", states)
	}
}
