// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package emitter

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/wardsight/wardsight/internal/models"
)

// WebhookNotifier POSTs events to an HTTP endpoint. A stream's push
// endpoint overrides the default URL for events from that stream.
type WebhookNotifier struct {
	defaultURL string
	headers    map[string]string
	client     *http.Client
	enabled    bool
	mu         sync.RWMutex

	// Rate limiting
	lastSent  time.Time
	rateLimit time.Duration
}

// WebhookOptions configures the webhook notifier.
type WebhookOptions struct {
	URL       string
	Headers   map[string]string
	Enabled   bool
	Timeout   time.Duration
	RateLimit time.Duration
}

// WebhookPayload is the JSON body sent to the endpoint.
type WebhookPayload struct {
	Event     *models.Event `json:"event"`
	EventType string        `json:"event_type"` // behavior_event
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"` // wardsight
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(opts WebhookOptions) *WebhookNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 500 * time.Millisecond
	}

	headers := make(map[string]string)
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &WebhookNotifier{
		defaultURL: opts.URL,
		headers:    headers,
		enabled:    opts.Enabled,
		rateLimit:  opts.RateLimit,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled reports whether the notifier can deliver. Always true for
// webhooks: a delivery carrying its own endpoint needs no global
// configuration, and Send drops default-URL deliveries while disabled.
func (n *WebhookNotifier) Enabled() bool {
	return true
}

// SetEnabled enables or disables the default-URL delivery path.
func (n *WebhookNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetURL updates the default endpoint URL.
func (n *WebhookNotifier) SetURL(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.defaultURL = url
}

// Send delivers an event. The delivery endpoint, when set, takes
// precedence over the default URL.
func (n *WebhookNotifier) Send(ctx context.Context, d Delivery) error {
	n.mu.RLock()
	enabled := n.enabled
	url := n.defaultURL
	headers := make(map[string]string, len(n.headers))
	for k, v := range n.headers {
		headers[k] = v
	}
	rateLimit := n.rateLimit
	lastSent := n.lastSent
	n.mu.RUnlock()

	if d.Endpoint != "" {
		url = d.Endpoint
	} else if !enabled {
		return nil
	}
	if url == "" {
		return nil
	}

	if wait := rateLimit - time.Since(lastSent); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	payload := WebhookPayload{
		Event:     d.Event,
		EventType: "behavior_event",
		Timestamp: time.Now(),
		Source:    "wardsight",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	n.mu.Lock()
	n.lastSent = time.Now()
	n.mu.Unlock()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
