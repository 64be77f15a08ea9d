// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/wardsight/wardsight/internal/logging"
)

// rulesFile is the on-disk shape of the rules config.
type rulesFile struct {
	Rules []RuleSpec `json:"rules"`
}

// defaultMultiEntityCooldown applies when a multi_entity_ratio rule omits
// its cooldown.
const defaultMultiEntityCooldown = 180 * time.Second

// BuildRule constructs the evaluator for a spec, validating its parameters.
func BuildRule(spec RuleSpec) (Rule, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("rule has no name")
	}
	if spec.EventName == "" {
		return nil, fmt.Errorf("rule %s has no event_name", spec.Name)
	}

	base := ruleBase{
		name:      spec.Name,
		eventName: spec.EventName,
		category:  spec.Category,
		enabled:   spec.Enabled,
	}
	p := spec.Params

	switch spec.Kind {
	case KindWindowedRatio:
		if p.WindowSeconds <= 0 {
			return nil, fmt.Errorf("rule %s: window_seconds must be positive", spec.Name)
		}
		if p.MinRatio <= 0 || p.MinRatio > 1 {
			return nil, fmt.Errorf("rule %s: min_ratio must be in (0, 1]", spec.Name)
		}
		pred, ok := predicates[p.Predicate]
		if !ok {
			return nil, fmt.Errorf("rule %s: unknown predicate %q", spec.Name, p.Predicate)
		}
		if p.Predicate == "object_present" && len(p.Classes) == 0 {
			return nil, fmt.Errorf("rule %s: object_present requires classes", spec.Name)
		}
		return &windowedRatioRule{
			ruleBase:  base,
			window:    time.Duration(p.WindowSeconds * float64(time.Second)),
			minRatio:  p.MinRatio,
			cooldown:  time.Duration(p.CooldownSeconds * float64(time.Second)),
			predName:  p.Predicate,
			predicate: pred,
			params:    p,
		}, nil

	case KindFixedFrameCount:
		if p.FrameCount <= 0 {
			return nil, fmt.Errorf("rule %s: frame_count must be positive", spec.Name)
		}
		if p.MinMatches <= 0 || p.MinMatches > p.FrameCount {
			return nil, fmt.Errorf("rule %s: min_matches must be in [1, frame_count]", spec.Name)
		}
		if len(p.Items) == 0 {
			return nil, fmt.Errorf("rule %s: items list is empty", spec.Name)
		}
		confidence := p.Confidence
		if confidence <= 0 {
			confidence = 0.9
		}
		return &fixedFrameCountRule{
			ruleBase:   base,
			frameCount: p.FrameCount,
			minMatches: p.MinMatches,
			items:      p.Items,
			confidence: confidence,
		}, nil

	case KindMultiEntityRatio:
		if p.FrameCount <= 0 {
			return nil, fmt.Errorf("rule %s: frame_count must be positive", spec.Name)
		}
		if p.MinRatio <= 0 || p.MinRatio > 1 {
			return nil, fmt.Errorf("rule %s: min_ratio must be in (0, 1]", spec.Name)
		}
		if p.PersonCount <= 0 {
			return nil, fmt.Errorf("rule %s: person_count must be positive", spec.Name)
		}
		if p.Posture == "" {
			return nil, fmt.Errorf("rule %s: posture is required", spec.Name)
		}
		cooldown := time.Duration(p.CooldownSeconds * float64(time.Second))
		if cooldown <= 0 {
			cooldown = defaultMultiEntityCooldown
		}
		return &multiEntityRatioRule{
			ruleBase:    base,
			frameCount:  p.FrameCount,
			personCount: p.PersonCount,
			posture:     p.Posture,
			minRatio:    p.MinRatio,
			cooldown:    cooldown,
		}, nil

	default:
		return nil, fmt.Errorf("rule %s: unknown kind %q", spec.Name, spec.Kind)
	}
}

// LoadRules reads and builds the rules file. Invalid rules are logged and
// skipped so one bad entry never takes the engine down.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules builds rules from raw JSON.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for _, spec := range f.Rules {
		rule, err := BuildRule(spec)
		if err != nil {
			logging.Warn().Err(err).Str("rule", spec.Name).Msg("skipping invalid rule")
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
