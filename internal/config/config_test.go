// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValid(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom with defaults failed: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("default port = %d, want 8081", cfg.Server.Port)
	}
	if cfg.Dispatch.Workers != 4 {
		t.Errorf("default dispatch workers = %d, want 4", cfg.Dispatch.Workers)
	}
	if cfg.Engine.BufferCapacity != 1000 {
		t.Errorf("default buffer capacity = %d, want 1000", cfg.Engine.BufferCapacity)
	}
	if cfg.Sampling.HighIntervalSeconds != 0.5 {
		t.Errorf("default HIGH interval = %f, want 0.5", cfg.Sampling.HighIntervalSeconds)
	}
}

func TestYAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9191
detector:
  url: http://detector:9000
  timeout: 3s
engine:
  session_ttl: 45m
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom(%s) failed: %v", path, err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want 9191 from file", cfg.Server.Port)
	}
	if cfg.Detector.URL != "http://detector:9000" {
		t.Errorf("detector url = %s", cfg.Detector.URL)
	}
	if cfg.Detector.Timeout != 3*time.Second {
		t.Errorf("detector timeout = %s, want 3s", cfg.Detector.Timeout)
	}
	if cfg.Engine.SessionTTL != 45*time.Minute {
		t.Errorf("session ttl = %s, want 45m", cfg.Engine.SessionTTL)
	}
	// Untouched keys keep their defaults.
	if cfg.Stream.FrameQueueSize != 10 {
		t.Errorf("frame queue size = %d, want default 10", cfg.Stream.FrameQueueSize)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WARDSIGHT_SERVER__PORT", "9292")
	t.Setenv("WARDSIGHT_LOGGING__LEVEL", "debug")
	t.Setenv("WARDSIGHT_ENGINE__SESSION_TTL", "1h")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Server.Port != 9292 {
		t.Errorf("port = %d, want 9292 from env", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Logging.Level)
	}
	if cfg.Engine.SessionTTL != time.Hour {
		t.Errorf("session ttl = %s, want 1h", cfg.Engine.SessionTTL)
	}
}

func TestEnvTransform(t *testing.T) {
	cases := map[string]string{
		"WARDSIGHT_SERVER__PORT":                "server.port",
		"WARDSIGHT_ENGINE__SESSION_TTL":         "engine.session_ttl",
		"WARDSIGHT_SAMPLING__HIGH_INTERVAL_SECONDS": "sampling.high_interval_seconds",
	}
	for in, want := range cases {
		if got := envTransform(in); got != want {
			t.Errorf("envTransform(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"empty detector url", func(c *Config) { c.Detector.URL = "" }},
		{"negative detector timeout", func(c *Config) { c.Detector.Timeout = -time.Second }},
		{"zero buffer capacity", func(c *Config) { c.Engine.BufferCapacity = 0 }},
		{"sweep beyond ttl", func(c *Config) {
			c.Engine.SessionTTL = time.Minute
			c.Engine.SweepInterval = time.Hour
		}},
		{"mqtt enabled without broker", func(c *Config) { c.MQTT.Enabled = true }},
		{"webhook enabled without url", func(c *Config) { c.Webhook.Enabled = true }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestMissingConfigFileErrors(t *testing.T) {
	if _, err := LoadFrom("/nonexistent/wardsight.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
