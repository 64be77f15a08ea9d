// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func dialTestClient(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	hub := startHub(t)
	conn := dialTestClient(t, hub)
	waitForClients(t, hub, 1)

	hub.BroadcastJSON(MessageTypeBehaviorEvent, map[string]any{"event_name": "人员睡岗"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	if msg.Type != MessageTypeBehaviorEvent {
		t.Errorf("message type = %s", msg.Type)
	}
	data, ok := msg.Data.(map[string]any)
	if !ok || data["event_name"] != "人员睡岗" {
		t.Errorf("message data = %v", msg.Data)
	}
}

func TestPingGetsPong(t *testing.T) {
	hub := startHub(t)
	conn := dialTestClient(t, hub)
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading pong: %v", err)
	}
	if msg.Type != MessageTypePong {
		t.Errorf("message type = %s, want pong", msg.Type)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub := startHub(t)
	conn := dialTestClient(t, hub)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Serve(ctx)
		close(done)
	}()

	conn := dialTestClient(t, hub)
	waitForClients(t, hub, 1)

	cancel()
	<-done

	if hub.ClientCount() != 0 {
		t.Errorf("clients after shutdown = %d", hub.ClientCount())
	}

	// The server side closed; reads should fail promptly.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	for {
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
	}
}

func TestBroadcastWithNoClientsDoesNotBlock(t *testing.T) {
	hub := startHub(t)
	for i := 0; i < 10; i++ {
		hub.BroadcastJSON(MessageTypeStreamStatus, map[string]any{"stream_id": "cam-1"})
	}
}
