// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package risk maps coarse risk tiers to sampling intervals and detection
// parameters. Higher risk means denser sampling and looser confidence
// thresholds so the detector sees more candidates.
package risk

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Level is a coarse risk tier controlling sampling density.
type Level string

const (
	LevelHigh   Level = "HIGH"
	LevelMedium Level = "MEDIUM"
	LevelLow    Level = "LOW"
)

// ParseLevel normalizes a risk level string. It accepts English names in any
// case plus the Chinese tier names used by legacy stream configurations.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH", "高":
		return LevelHigh, nil
	case "MEDIUM", "中", "":
		return LevelMedium, nil
	case "LOW", "低":
		return LevelLow, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// Profile holds the sampling interval and detection parameters for one tier.
type Profile struct {
	Level               Level         `json:"level"`
	Interval            time.Duration `json:"interval"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
	MaxObjects          int           `json:"max_objects"`
	DetectionClasses    []string      `json:"detection_classes"`
}

// DefaultProfiles returns the built-in tier profiles. Intervals are the
// deployment defaults and can be overridden via configuration or the risk
// administration API.
func DefaultProfiles() map[Level]Profile {
	return map[Level]Profile{
		LevelHigh: {
			Level:               LevelHigh,
			Interval:            500 * time.Millisecond,
			ConfidenceThreshold: 0.3,
			MaxObjects:          20,
			DetectionClasses:    []string{"person", "car", "truck", "weapon", "knife"},
		},
		LevelMedium: {
			Level:               LevelMedium,
			Interval:            2 * time.Second,
			ConfidenceThreshold: 0.5,
			MaxObjects:          10,
			DetectionClasses:    []string{"person", "car", "truck"},
		},
		LevelLow: {
			Level:               LevelLow,
			Interval:            5 * time.Second,
			ConfidenceThreshold: 0.7,
			MaxObjects:          5,
			DetectionClasses:    []string{"person", "car"},
		},
	}
}

// Profiles is a concurrency-safe registry of tier profiles. Stream workers
// read it on every reconfiguration; the administration API mutates it live.
type Profiles struct {
	mu       sync.RWMutex
	profiles map[Level]Profile
}

// NewProfiles creates a registry seeded with DefaultProfiles.
func NewProfiles() *Profiles {
	return &Profiles{profiles: DefaultProfiles()}
}

// Get returns the profile for a tier. Unknown tiers fall back to MEDIUM.
func (p *Profiles) Get(level Level) Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if prof, ok := p.profiles[level]; ok {
		return prof
	}
	return p.profiles[LevelMedium]
}

// Set replaces the profile for a tier.
func (p *Profiles) Set(prof Profile) error {
	if prof.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", prof.Interval)
	}
	if _, err := ParseLevel(string(prof.Level)); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[prof.Level] = prof
	return nil
}

// SetInterval updates only the sampling interval for a tier.
func (p *Profiles) SetInterval(level Level, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.profiles[level]
	if !ok {
		return fmt.Errorf("unknown risk level %q", level)
	}
	prof.Interval = interval
	p.profiles[level] = prof
	return nil
}

// Interval returns the sampling interval for a tier.
func (p *Profiles) Interval(level Level) time.Duration {
	return p.Get(level).Interval
}

// All returns a copy of every tier profile.
func (p *Profiles) All() map[Level]Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[Level]Profile, len(p.profiles))
	for k, v := range p.profiles {
		out[k] = v
	}
	return out
}
