// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package detector is the HTTP client for the external object and pose
// detection service. Calls are wrapped in a circuit breaker so a dead
// detector sheds load fast instead of tying up dispatch workers on timeouts.
package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/metrics"
	"github.com/wardsight/wardsight/internal/models"
)

const detectPath = "/api/detect/frame"

// Options configure the client.
type Options struct {
	BaseURL string
	Timeout time.Duration // default 5s

	// FailureThreshold is the consecutive failure count that opens the
	// breaker. Default 5.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before probing again.
	// Default 30s.
	Cooldown time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.FailureThreshold == 0 {
		o.FailureThreshold = 5
	}
	if o.Cooldown <= 0 {
		o.Cooldown = 30 * time.Second
	}
	return o
}

// frameRequest is the wire format the detection service expects. Timestamp
// is epoch seconds with fractional precision.
type frameRequest struct {
	StreamID  string         `json:"stream_id"`
	Image     string         `json:"image"`
	Timestamp float64        `json:"timestamp"`
	Config    map[string]any `json:"config,omitempty"`
}

// frameResponse mirrors the detection service's reply. BBoxes come as
// [x1, y1, x2, y2] arrays and keypoints as [x, y] pairs.
type frameResponse struct {
	Objects []struct {
		ClassName  string    `json:"class_name"`
		Confidence float64   `json:"confidence"`
		BBox       []float64 `json:"bbox"`
	} `json:"detected_objects"`
	Poses []struct {
		Posture   string               `json:"posture"`
		Keypoints map[string][]float64 `json:"keypoints"`
	} `json:"pose_results"`
}

// Client calls the detection service.
type Client struct {
	opts    Options
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*models.FrameDetections]
}

// NewClient creates a detector client for the service at opts.BaseURL.
func NewClient(opts Options) *Client {
	opts = opts.withDefaults()

	settings := gobreaker.Settings{
		Name:    "detector",
		Timeout: opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("detector circuit breaker state changed")
		},
	}

	return &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*models.FrameDetections](settings),
	}
}

// Detect sends one frame to the detection service and returns the parsed
// per-frame results. The frame's capture timestamp travels with the request
// and is restored on the result so buffering order is capture order.
func (c *Client) Detect(ctx context.Context, frame models.Frame, detCfg map[string]any) (*models.FrameDetections, error) {
	return c.breaker.Execute(func() (*models.FrameDetections, error) {
		start := time.Now()
		result, err := c.detect(ctx, frame, detCfg)
		metrics.DetectorLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.DispatchFailures.WithLabelValues("detect").Inc()
		}
		return result, err
	})
}

func (c *Client) detect(ctx context.Context, frame models.Frame, detCfg map[string]any) (*models.FrameDetections, error) {
	payload := frameRequest{
		StreamID:  frame.StreamID,
		Image:     base64.StdEncoding.EncodeToString(frame.Data),
		Timestamp: float64(frame.Timestamp.UnixNano()) / float64(time.Second),
		Config:    detCfg,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+detectPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little for the error message, then discard.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var wire frameResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding detect response: %w", err)
	}

	return wire.toDetections(frame.StreamID, frame.Timestamp), nil
}

func (r *frameResponse) toDetections(streamID string, at time.Time) *models.FrameDetections {
	out := &models.FrameDetections{
		StreamID:  streamID,
		Timestamp: at,
	}
	for _, o := range r.Objects {
		obj := models.DetectedObject{
			ClassName:  o.ClassName,
			Confidence: o.Confidence,
		}
		if len(o.BBox) == 4 {
			obj.BBox = models.BoundingBox{X1: o.BBox[0], Y1: o.BBox[1], X2: o.BBox[2], Y2: o.BBox[3]}
		}
		out.Objects = append(out.Objects, obj)
	}
	for _, p := range r.Poses {
		pose := models.PoseResult{Posture: p.Posture}
		if len(p.Keypoints) > 0 {
			pose.Keypoints = make(map[string]models.Keypoint, len(p.Keypoints))
			for name, xy := range p.Keypoints {
				if len(xy) >= 2 {
					pose.Keypoints[name] = models.Keypoint{X: xy[0], Y: xy[1]}
				}
			}
		}
		out.Poses = append(out.Poses, pose)
	}
	return out
}
