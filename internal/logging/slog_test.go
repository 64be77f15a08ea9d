// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func slogOver(buf *bytes.Buffer) *slog.Logger {
	zl := zerolog.New(buf).Level(zerolog.DebugLevel)
	return slog.New(&SlogHandler{logger: zl})
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := slogOver(&buf)

	logger.Info("stream started", "stream_id", "cam-1", "queued", int64(3))

	out := buf.String()
	if !strings.Contains(out, `"message":"stream started"`) {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, `"stream_id":"cam-1"`) {
		t.Errorf("missing string attr in output: %s", out)
	}
	if !strings.Contains(out, `"queued":3`) {
		t.Errorf("missing int attr in output: %s", out)
	}
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("missing level in output: %s", out)
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slogOver(&buf)

	logger.Warn("backoff")
	logger.Error("gave up")

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("warn level not mapped: %s", out)
	}
	if !strings.Contains(out, `"level":"error"`) {
		t.Errorf("error level not mapped: %s", out)
	}
}

func TestSlogHandlerGroupsPrefixKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slogOver(&buf).WithGroup("worker").With("stream_id", "cam-2")

	logger.Info("restarted")

	if out := buf.String(); !strings.Contains(out, `"worker.stream_id":"cam-2"`) {
		t.Errorf("group prefix missing: %s", out)
	}
}

func TestSlogHandlerEnabledRespectsLevel(t *testing.T) {
	zl := zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel)
	h := &SlogHandler{logger: zl}

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}
