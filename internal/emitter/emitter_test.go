// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package emitter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/wardsight/wardsight/internal/models"
	"github.com/wardsight/wardsight/internal/stream"
	"github.com/wardsight/wardsight/internal/wal"
)

type fakeNotifier struct {
	name    string
	enabled bool
	err     error

	mu   sync.Mutex
	sent []Delivery
	ch   chan Delivery
}

func newFakeNotifier(name string) *fakeNotifier {
	return &fakeNotifier{name: name, enabled: true, ch: make(chan Delivery, 16)}
}

func (f *fakeNotifier) Name() string  { return f.name }
func (f *fakeNotifier) Enabled() bool { return f.enabled }

func (f *fakeNotifier) Send(ctx context.Context, d Delivery) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, d)
	f.mu.Unlock()
	select {
	case f.ch <- d:
	default:
	}
	return nil
}

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeHub struct {
	mu       sync.Mutex
	messages []string
}

func (h *fakeHub) BroadcastJSON(messageType string, data any) {
	h.mu.Lock()
	h.messages = append(h.messages, messageType)
	h.mu.Unlock()
}

func testEvent(name string) *models.Event {
	return &models.Event{
		ID:         "ev-1",
		SessionID:  "cam-1",
		Name:       name,
		Category:   "posture",
		Timestamp:  time.Unix(1700000000, 0),
		Confidence: 0.9,
	}
}

func TestEmitDirectSendRoutesByPushType(t *testing.T) {
	hook := newFakeNotifier("webhook")
	mq := newFakeNotifier("mqtt")
	hub := &fakeHub{}
	em := New(Options{Hub: hub, Notifiers: []Notifier{hook, mq}})

	em.Emit(context.Background(), testEvent("人员睡岗"), stream.Config{
		StreamID:     "cam-1",
		PushType:     "mqtt",
		PushEndpoint: "wardsight/cam-1",
	})

	select {
	case d := <-mq.ch:
		if d.Endpoint != "wardsight/cam-1" || d.Event.Name != "人员睡岗" {
			t.Errorf("delivery = %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mqtt notifier never received the delivery")
	}
	if hook.sentCount() != 0 {
		t.Error("webhook received a delivery routed to mqtt")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.messages) != 1 || hub.messages[0] != "behavior_event" {
		t.Errorf("hub messages = %v", hub.messages)
	}
}

func TestEmitDefaultsToWebhook(t *testing.T) {
	hook := newFakeNotifier("webhook")
	em := New(Options{Notifiers: []Notifier{hook}})

	em.Emit(context.Background(), testEvent("抽烟行为"), stream.Config{StreamID: "cam-2"})

	select {
	case d := <-hook.ch:
		if d.PushType != "webhook" {
			t.Errorf("push type = %q", d.PushType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook notifier never received the delivery")
	}
}

func TestEmitWithQueueDefersDelivery(t *testing.T) {
	queue, err := wal.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer queue.Close()

	hook := newFakeNotifier("webhook")
	em := New(Options{Queue: queue, Notifiers: []Notifier{hook}})

	em.Emit(context.Background(), testEvent("违规使用手机"), stream.Config{
		StreamID:     "cam-3",
		PushEndpoint: "http://example.com/hook",
	})

	if hook.sentCount() != 0 {
		t.Error("queued emit sent directly")
	}
	entries, err := queue.Pending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("queued entries = %d", len(entries))
	}
	var d Delivery
	if err := json.Unmarshal(entries[0].Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.Event.Name != "违规使用手机" || d.Endpoint != "http://example.com/hook" {
		t.Errorf("queued delivery = %+v", d)
	}
}

func TestForwarderDeliversAndRemoves(t *testing.T) {
	queue, err := wal.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer queue.Close()

	hook := newFakeNotifier("webhook")
	em := New(Options{Queue: queue, Notifiers: []Notifier{hook}})
	em.Emit(context.Background(), testEvent("人员跌倒"), stream.Config{StreamID: "cam-4"})

	fw := NewForwarder(queue, em, ForwarderOptions{})
	fw.drain(context.Background())

	if hook.sentCount() != 1 {
		t.Fatalf("deliveries = %d, want 1", hook.sentCount())
	}
	count, err := queue.PendingCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("queue still holds %d entries after delivery", count)
	}
}

func TestForwarderRetainsFailedDeliveries(t *testing.T) {
	queue, err := wal.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer queue.Close()

	hook := newFakeNotifier("webhook")
	hook.err = errors.New("endpoint down")
	em := New(Options{Queue: queue, Notifiers: []Notifier{hook}})
	em.Emit(context.Background(), testEvent("人员攀高"), stream.Config{StreamID: "cam-5"})

	fw := NewForwarder(queue, em, ForwarderOptions{})
	fw.drain(context.Background())

	count, err := queue.PendingCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("failed delivery dropped from queue, count = %d", count)
	}

	// Endpoint recovers, next drain succeeds.
	hook.err = nil
	fw.drain(context.Background())
	count, _ = queue.PendingCount()
	if count != 0 || hook.sentCount() != 1 {
		t.Errorf("recovery drain: count=%d sent=%d", count, hook.sentCount())
	}
}

func TestForwarderDropsExpiredEntries(t *testing.T) {
	queue, err := wal.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer queue.Close()

	hook := newFakeNotifier("webhook")
	em := New(Options{Queue: queue, Notifiers: []Notifier{hook}})
	em.Emit(context.Background(), testEvent("异常物品检测"), stream.Config{StreamID: "cam-6"})

	// Everything in the queue is older than a zero-length lifetime.
	fw := NewForwarder(queue, em, ForwarderOptions{MaxAge: time.Nanosecond})
	time.Sleep(5 * time.Millisecond)
	fw.drain(context.Background())

	if hook.sentCount() != 0 {
		t.Error("expired entry was delivered")
	}
	count, _ := queue.PendingCount()
	if count != 0 {
		t.Errorf("expired entry retained, count = %d", count)
	}
}

func TestForwarderLeavesEntriesWhenNotifierDisabled(t *testing.T) {
	queue, err := wal.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer queue.Close()

	hook := newFakeNotifier("webhook")
	hook.enabled = false
	em := New(Options{Queue: queue, Notifiers: []Notifier{hook}})
	em.Emit(context.Background(), testEvent("单人看护"), stream.Config{StreamID: "cam-7"})

	fw := NewForwarder(queue, em, ForwarderOptions{})
	fw.drain(context.Background())

	count, _ := queue.PendingCount()
	if count != 1 {
		t.Errorf("entry for disabled notifier removed, count = %d", count)
	}
}

func TestWebhookNotifierSend(t *testing.T) {
	var (
		mu       sync.Mutex
		received WebhookPayload
		hits     int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		hits++
		json.Unmarshal(body, &received)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookOptions{
		URL:       "http://unused.invalid/hook",
		Enabled:   true,
		RateLimit: time.Millisecond,
		Headers:   map[string]string{"X-Auth": "secret"},
	})

	// Per-stream endpoint overrides the default URL.
	err := n.Send(context.Background(), Delivery{
		Event:    testEvent("人员睡岗"),
		Endpoint: srv.URL,
		PushType: "webhook",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("endpoint hits = %d", hits)
	}
	if received.Source != "wardsight" || received.EventType != "behavior_event" {
		t.Errorf("payload envelope = %+v", received)
	}
	if received.Event == nil || received.Event.Name != "人员睡岗" {
		t.Errorf("payload event = %+v", received.Event)
	}
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookOptions{URL: srv.URL, Enabled: true, RateLimit: time.Millisecond})
	err := n.Send(context.Background(), Delivery{Event: testEvent("x")})
	if err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestWebhookNotifierDisabledIsNoop(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookOptions{URL: srv.URL, Enabled: false})
	if err := n.Send(context.Background(), Delivery{Event: testEvent("x")}); err != nil {
		t.Fatalf("disabled Send returned error: %v", err)
	}
	if hits != 0 {
		t.Error("disabled notifier hit the endpoint")
	}

	n.SetEnabled(true)
	if !n.Enabled() {
		t.Error("SetEnabled(true) not applied")
	}
}

func TestWebhookNotifierNoURLIsNoop(t *testing.T) {
	n := NewWebhookNotifier(WebhookOptions{Enabled: true})
	if err := n.Send(context.Background(), Delivery{Event: testEvent("x")}); err != nil {
		t.Errorf("Send without URL returned error: %v", err)
	}
}
