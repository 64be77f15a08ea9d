// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package stream

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/wardsight/wardsight/internal/risk"
	"github.com/wardsight/wardsight/internal/sampler"
)

// fakeSupervisor records Add/RemoveAndWait calls without running services.
type fakeSupervisor struct {
	mu      sync.Mutex
	added   int
	removed int
	next    suture.ServiceToken
}

func (f *fakeSupervisor) Add(_ suture.Service) suture.ServiceToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added++
	return f.next
}

func (f *fakeSupervisor) RemoveAndWait(_ suture.ServiceToken, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed++
	return nil
}

func newTestManager(opts ManagerOptions) (*Manager, *fakeSupervisor, *sampler.Sampler) {
	sup := &fakeSupervisor{}
	s := sampler.New(risk.NewProfiles())
	m := NewManager(sup, s, &recordingDispatcher{}, opts)
	return m, sup, s
}

func camConfig(id string, level risk.Level) Config {
	return Config{
		StreamID:   id,
		URL:        "test://" + id,
		SourceType: testSourceType,
		RiskLevel:  level,
		Enabled:    true,
	}
}

func TestManagerRegisterStartStop(t *testing.T) {
	m, sup, s := newTestManager(ManagerOptions{})

	if err := m.Register(camConfig("cam-01", risk.LevelMedium)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := m.Register(camConfig("cam-01", risk.LevelMedium)); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate Register = %v, want ErrAlreadyExists", err)
	}

	if err := m.Start("cam-01"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if sup.added != 1 {
		t.Errorf("supervisor added %d services, want 1", sup.added)
	}
	if got := s.Interval("cam-01"); got != 2*time.Second {
		t.Errorf("sampler interval = %s, want 2s for MEDIUM", got)
	}
	if err := m.Start("cam-01"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("double Start = %v, want ErrAlreadyRunning", err)
	}

	if err := m.Stop("cam-01"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if sup.removed != 1 {
		t.Errorf("supervisor removed %d services, want 1", sup.removed)
	}
	if err := m.Stop("cam-01"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("double Stop = %v, want ErrNotRunning", err)
	}
}

func TestManagerUnknownStream(t *testing.T) {
	m, _, _ := newTestManager(ManagerOptions{})
	if err := m.Start("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Start unknown = %v, want ErrNotFound", err)
	}
	if err := m.Stop("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stop unknown = %v, want ErrNotFound", err)
	}
	if _, err := m.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown = %v, want ErrNotFound", err)
	}
}

func TestManagerRejectsInvalidConfig(t *testing.T) {
	m, _, _ := newTestManager(ManagerOptions{})

	if err := m.Register(Config{URL: "test://x"}); err == nil {
		t.Error("expected error for missing stream_id")
	}
	if err := m.Register(Config{StreamID: "cam-01"}); err == nil {
		t.Error("expected error for missing url")
	}
	bad := camConfig("cam-01", risk.Level("EXTREME"))
	if err := m.Register(bad); err == nil {
		t.Error("expected error for unknown risk level")
	}
}

func TestManagerNormalizesChineseRiskLevels(t *testing.T) {
	m, _, _ := newTestManager(ManagerOptions{})

	cfg := camConfig("cam-01", risk.Level("高"))
	if err := m.Register(cfg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	got, err := m.Get("cam-01")
	if err != nil {
		t.Fatal(err)
	}
	if got.RiskLevel != risk.LevelHigh {
		t.Errorf("risk level = %s, want HIGH", got.RiskLevel)
	}
}

func TestManagerMaxConcurrent(t *testing.T) {
	m, _, _ := newTestManager(ManagerOptions{MaxConcurrent: 2})

	for _, id := range []string{"cam-01", "cam-02", "cam-03"} {
		if err := m.Register(camConfig(id, risk.LevelLow)); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Start("cam-01"); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("cam-02"); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("cam-03"); !errors.Is(err, ErrMaxStreams) {
		t.Errorf("Start beyond limit = %v, want ErrMaxStreams", err)
	}

	// A freed slot admits the blocked stream.
	if err := m.Stop("cam-01"); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("cam-03"); err != nil {
		t.Errorf("Start after freeing slot = %v, want nil", err)
	}
}

func TestManagerRiskUpdateWithoutRestart(t *testing.T) {
	m, sup, s := newTestManager(ManagerOptions{})

	if err := m.Register(camConfig("cam-01", risk.LevelLow)); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("cam-01"); err != nil {
		t.Fatal(err)
	}
	if got := s.Interval("cam-01"); got != 5*time.Second {
		t.Fatalf("interval = %s, want 5s for LOW", got)
	}

	if err := m.SetRisk("cam-01", risk.LevelHigh, 0); err != nil {
		t.Fatal(err)
	}
	if got := s.Interval("cam-01"); got != 500*time.Millisecond {
		t.Errorf("interval after escalation = %s, want 500ms", got)
	}
	if sup.removed != 0 {
		t.Error("risk update must not restart the worker")
	}

	cfg, _ := m.Get("cam-01")
	if cfg.RiskLevel != risk.LevelHigh {
		t.Errorf("stored risk level = %s, want HIGH", cfg.RiskLevel)
	}
}

func TestManagerUpdateConfigRestartsOnSourceChange(t *testing.T) {
	m, sup, _ := newTestManager(ManagerOptions{})

	if err := m.Register(camConfig("cam-01", risk.LevelMedium)); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("cam-01"); err != nil {
		t.Fatal(err)
	}

	cfg := camConfig("cam-01", risk.LevelMedium)
	cfg.URL = "test://cam-01-new"
	if err := m.UpdateConfig(cfg); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if sup.removed != 1 || sup.added != 2 {
		t.Errorf("expected restart (removed=1 added=2), got removed=%d added=%d",
			sup.removed, sup.added)
	}
}

func TestManagerDelete(t *testing.T) {
	m, _, s := newTestManager(ManagerOptions{})

	if err := m.Register(camConfig("cam-01", risk.LevelHigh)); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("cam-01"); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete("cam-01"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Get("cam-01"); !errors.Is(err, ErrNotFound) {
		t.Error("deleted stream still registered")
	}
	if s.ShouldSample("cam-01", time.Now()) {
		t.Error("deleted stream still has a sampling gate")
	}
}

func TestManagerStartAllSkipsDisabled(t *testing.T) {
	m, sup, _ := newTestManager(ManagerOptions{})

	enabled := camConfig("cam-01", risk.LevelMedium)
	disabled := camConfig("cam-02", risk.LevelMedium)
	disabled.Enabled = false
	if err := m.Register(enabled); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(disabled); err != nil {
		t.Fatal(err)
	}

	if err := m.StartAll(); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if sup.added != 1 {
		t.Errorf("StartAll started %d workers, want 1", sup.added)
	}
}

func TestManagerListOrdered(t *testing.T) {
	m, _, _ := newTestManager(ManagerOptions{})
	for _, id := range []string{"cam-03", "cam-01", "cam-02"} {
		if err := m.Register(camConfig(id, risk.LevelLow)); err != nil {
			t.Fatal(err)
		}
	}
	list := m.List()
	if len(list) != 3 {
		t.Fatalf("List returned %d streams, want 3", len(list))
	}
	for i, want := range []string{"cam-01", "cam-02", "cam-03"} {
		if list[i].StreamID != want {
			t.Errorf("List[%d] = %s, want %s", i, list[i].StreamID, want)
		}
	}
}
