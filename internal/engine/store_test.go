// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"testing"
	"time"
)

func TestStoreLazySessionCreation(t *testing.T) {
	clock := &testClock{now: time.Unix(1000, 0)}
	st := newTestStore(clock, 10)

	if st.Status("s1").Exists {
		t.Error("session exists before first frame")
	}

	st.withSession("s1", func(s *Session) {
		s.Append(tsFrame(clock.now))
	})

	status := st.Status("s1")
	if !status.Exists || status.FrameCount != 1 {
		t.Errorf("status after first frame = %+v", status)
	}
	if st.Count() != 1 {
		t.Errorf("Count = %d", st.Count())
	}
}

func TestStoreSweepEvictsIdleSessions(t *testing.T) {
	clock := &testClock{now: time.Unix(2000, 0)}
	st := newTestStore(clock, 10)

	st.withSession("idle", func(s *Session) {})
	clock.advance(20 * time.Minute)
	st.withSession("fresh", func(s *Session) {})

	// "idle" is 20 minutes old, inside the 30 minute TTL.
	if evicted := st.Sweep(clock.Now()); evicted != 0 {
		t.Fatalf("sweep evicted %d sessions before TTL", evicted)
	}

	clock.advance(11 * time.Minute)
	// "idle" is now past 30 minutes; "fresh" is 11 minutes old.
	if evicted := st.Sweep(clock.Now()); evicted != 1 {
		t.Fatalf("sweep evicted %d sessions, want 1", evicted)
	}
	if st.Status("idle").Exists {
		t.Error("idle session survived the sweep")
	}
	if !st.Status("fresh").Exists {
		t.Error("fresh session was evicted")
	}
}

func TestStoreSweepResetsOnActivity(t *testing.T) {
	clock := &testClock{now: time.Unix(3000, 0)}
	st := newTestStore(clock, 10)

	st.withSession("s1", func(s *Session) {})
	clock.advance(25 * time.Minute)
	// Activity refreshes LastUpdate.
	st.withSession("s1", func(s *Session) { s.LastUpdate = clock.Now() })
	clock.advance(25 * time.Minute)

	if evicted := st.Sweep(clock.Now()); evicted != 0 {
		t.Error("active session evicted despite recent update")
	}
}

func TestStoreClear(t *testing.T) {
	clock := &testClock{now: time.Unix(4000, 0)}
	st := newTestStore(clock, 10)

	st.withSession("s1", func(s *Session) {})
	if !st.Clear("s1") {
		t.Error("Clear returned false for existing session")
	}
	if st.Clear("s1") {
		t.Error("Clear returned true for missing session")
	}
	if st.Status("s1").Exists {
		t.Error("cleared session still exists")
	}
}
