// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package emitter

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/wardsight/wardsight/internal/logging"
)

// MQTTNotifier publishes events to an MQTT broker. A stream's push
// endpoint, when set, overrides the default topic for that stream.
type MQTTNotifier struct {
	opts   MQTTOptions
	client mqtt.Client

	mu        sync.RWMutex
	enabled   bool
	connected bool
}

// MQTTOptions configures the MQTT notifier.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
	Enabled  bool

	PublishTimeout time.Duration
}

// NewMQTTNotifier creates an MQTT notifier. Call Connect before Send.
func NewMQTTNotifier(opts MQTTOptions) *MQTTNotifier {
	if opts.ClientID == "" {
		opts.ClientID = "wardsight"
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	return &MQTTNotifier{opts: opts, enabled: opts.Enabled}
}

// Connect establishes the broker connection with auto-reconnect.
func (n *MQTTNotifier) Connect(ctx context.Context) error {
	copts := mqtt.NewClientOptions()
	copts.AddBroker(n.opts.Broker)
	copts.SetClientID(n.opts.ClientID)
	if n.opts.Username != "" {
		copts.SetUsername(n.opts.Username)
		copts.SetPassword(n.opts.Password)
	}
	copts.SetAutoReconnect(true)
	copts.SetConnectRetry(true)
	copts.SetConnectRetryInterval(2 * time.Second)
	copts.SetMaxReconnectInterval(30 * time.Second)

	copts.OnConnect = func(c mqtt.Client) {
		n.mu.Lock()
		n.connected = true
		n.mu.Unlock()
		logging.Info().Str("broker", n.opts.Broker).Str("client_id", n.opts.ClientID).
			Msg("mqtt connected")
	}
	copts.OnConnectionLost = func(c mqtt.Client, err error) {
		n.mu.Lock()
		n.connected = false
		n.mu.Unlock()
		logging.Warn().Err(err).Str("broker", n.opts.Broker).
			Msg("mqtt connection lost, reconnecting")
	}

	n.client = mqtt.NewClient(copts)

	token := n.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connect timeout to %s", n.opts.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", n.opts.Broker, err)
	}

	n.mu.Lock()
	n.connected = true
	n.mu.Unlock()
	return nil
}

// Name returns the notifier name.
func (n *MQTTNotifier) Name() string {
	return "mqtt"
}

// Enabled reports whether the notifier should receive deliveries.
func (n *MQTTNotifier) Enabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// SetEnabled enables or disables the notifier.
func (n *MQTTNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// Send publishes the event JSON to the delivery topic.
func (n *MQTTNotifier) Send(ctx context.Context, d Delivery) error {
	n.mu.RLock()
	enabled := n.enabled
	connected := n.connected
	n.mu.RUnlock()

	if !enabled {
		return nil
	}
	if !connected || n.client == nil {
		return fmt.Errorf("mqtt not connected")
	}

	topic := n.opts.Topic
	if d.Endpoint != "" {
		topic = d.Endpoint
	}
	if topic == "" {
		return nil
	}

	payload, err := json.Marshal(d.Event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	token := n.client.Publish(topic, n.opts.QoS, false, payload)
	if !token.WaitTimeout(n.opts.PublishTimeout) {
		return fmt.Errorf("mqtt publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (n *MQTTNotifier) Close() {
	if n.client != nil && n.client.IsConnected() {
		n.client.Disconnect(250)
	}
	n.mu.Lock()
	n.connected = false
	n.mu.Unlock()
}
