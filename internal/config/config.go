// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package config loads and validates the Wardsight configuration.
//
// Configuration is layered via koanf v2 (highest priority wins):
//   - environment variables (WARDSIGHT_ prefix)
//   - YAML config file
//   - built-in defaults
package config

import "time"

// Config is the root configuration for the Wardsight server.
type Config struct {
	Server    ServerConfig    `koanf:"server" json:"server"`
	Logging   LoggingConfig   `koanf:"logging" json:"logging"`
	Detector  DetectorConfig  `koanf:"detector" json:"detector"`
	Sampling  SamplingConfig  `koanf:"sampling" json:"sampling"`
	Stream    StreamConfig    `koanf:"stream" json:"stream"`
	Dispatch  DispatchConfig  `koanf:"dispatch" json:"dispatch"`
	Engine    EngineConfig    `koanf:"engine" json:"engine"`
	Events    EventsConfig    `koanf:"events" json:"events"`
	NATS      NATSConfig      `koanf:"nats" json:"nats"`
	MQTT      MQTTConfig      `koanf:"mqtt" json:"mqtt"`
	Webhook   WebhookConfig   `koanf:"webhook" json:"webhook"`
	Evidence  EvidenceConfig  `koanf:"evidence" json:"evidence"`
	Supervise SuperviseConfig `koanf:"supervise" json:"supervise"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Host            string        `koanf:"host" json:"host"`
	Port            int           `koanf:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       int           `koanf:"rate_limit" json:"rate_limit"` // requests/minute per IP, 0 disables
	CORSOrigins     []string      `koanf:"cors_origins" json:"cors_origins"`
}

// LoggingConfig configures the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" json:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" json:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller" json:"caller"`
}

// DetectorConfig points at the external object/pose detection service.
type DetectorConfig struct {
	URL     string        `koanf:"url" json:"url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" validate:"max=10s"`

	// Circuit breaker settings for the outbound detect call.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold" json:"breaker_failure_threshold"`
	BreakerCooldown         time.Duration `koanf:"breaker_cooldown" json:"breaker_cooldown"`
}

// SamplingConfig overrides the built-in risk tier intervals (seconds).
// Zero values keep the defaults (HIGH=0.5, MEDIUM=2.0, LOW=5.0).
type SamplingConfig struct {
	HighIntervalSeconds   float64 `koanf:"high_interval_seconds" json:"high_interval_seconds" validate:"min=0"`
	MediumIntervalSeconds float64 `koanf:"medium_interval_seconds" json:"medium_interval_seconds" validate:"min=0"`
	LowIntervalSeconds    float64 `koanf:"low_interval_seconds" json:"low_interval_seconds" validate:"min=0"`
}

// StreamConfig bounds the capture layer.
type StreamConfig struct {
	MaxConcurrent   int           `koanf:"max_concurrent" json:"max_concurrent" validate:"min=1"`
	FrameQueueSize  int           `koanf:"frame_queue_size" json:"frame_queue_size" validate:"min=1"`
	ReadPace        time.Duration `koanf:"read_pace" json:"read_pace"`
	ErrorThreshold  int           `koanf:"error_threshold" json:"error_threshold" validate:"min=1"`
	StopJoinTimeout time.Duration `koanf:"stop_join_timeout" json:"stop_join_timeout"`
}

// DispatchConfig configures the encode/transmit worker pool.
type DispatchConfig struct {
	Workers        int           `koanf:"workers" json:"workers" validate:"min=1"`
	Backlog        int           `koanf:"backlog" json:"backlog" validate:"min=1"`
	PerStreamRate  float64       `koanf:"per_stream_rate" json:"per_stream_rate" validate:"min=0"` // sends/second, 0 disables throttle
	PerStreamBurst int           `koanf:"per_stream_burst" json:"per_stream_burst" validate:"min=1"`
	SendTimeout    time.Duration `koanf:"send_timeout" json:"send_timeout"`
}

// EngineConfig configures the stateful detection engine.
type EngineConfig struct {
	RulesPath      string        `koanf:"rules_path" json:"rules_path"`
	BufferCapacity int           `koanf:"buffer_capacity" json:"buffer_capacity" validate:"min=1"`
	SessionTTL     time.Duration `koanf:"session_ttl" json:"session_ttl"`
	SweepInterval  time.Duration `koanf:"sweep_interval" json:"sweep_interval"`
}

// EventsConfig configures local event persistence.
type EventsConfig struct {
	StorePath       string        `koanf:"store_path" json:"store_path"` // DuckDB archive; empty uses in-memory
	WALPath         string        `koanf:"wal_path" json:"wal_path"`     // Badger delivery queue; empty disables
	ForwardInterval time.Duration `koanf:"forward_interval" json:"forward_interval"`
	MaxDeliveryAge  time.Duration `koanf:"max_delivery_age" json:"max_delivery_age"`
}

// NATSConfig configures the JetStream event publisher.
type NATSConfig struct {
	Enabled        bool          `koanf:"enabled" json:"enabled"`
	URL            string        `koanf:"url" json:"url"`
	Subject        string        `koanf:"subject" json:"subject"`
	EmbeddedServer bool          `koanf:"embedded_server" json:"embedded_server"`
	StoreDir       string        `koanf:"store_dir" json:"store_dir"`
	MaxReconnects  int           `koanf:"max_reconnects" json:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait" json:"reconnect_wait"`
}

// MQTTConfig configures the MQTT event notifier.
type MQTTConfig struct {
	Enabled  bool   `koanf:"enabled" json:"enabled"`
	Broker   string `koanf:"broker" json:"broker"`
	ClientID string `koanf:"client_id" json:"client_id"`
	Topic    string `koanf:"topic" json:"topic"`
	Username string `koanf:"username" json:"username"`
	Password string `koanf:"password" json:"password"`
	QoS      byte   `koanf:"qos" json:"qos"`
}

// WebhookConfig configures the default webhook event notifier. Streams may
// carry their own push endpoint which overrides this URL per event.
type WebhookConfig struct {
	Enabled bool          `koanf:"enabled" json:"enabled"`
	URL     string        `koanf:"url" json:"url"`
	Timeout time.Duration `koanf:"timeout" json:"timeout"`
}

// EvidenceConfig configures optional snapshot upload of triggering frames.
type EvidenceConfig struct {
	Enabled   bool   `koanf:"enabled" json:"enabled"`
	Endpoint  string `koanf:"endpoint" json:"endpoint"`
	AccessKey string `koanf:"access_key" json:"access_key"`
	SecretKey string `koanf:"secret_key" json:"secret_key"`
	Bucket    string `koanf:"bucket" json:"bucket"`
	UseSSL    bool   `koanf:"use_ssl" json:"use_ssl"`
}

// SuperviseConfig tunes the suture supervisor tree.
type SuperviseConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" json:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay" json:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" json:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8081,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       600,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Detector: DetectorConfig{
			URL:                     "http://localhost:8082",
			Timeout:                 5 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerCooldown:         30 * time.Second,
		},
		Sampling: SamplingConfig{
			HighIntervalSeconds:   0.5,
			MediumIntervalSeconds: 2.0,
			LowIntervalSeconds:    5.0,
		},
		Stream: StreamConfig{
			MaxConcurrent:   20,
			FrameQueueSize:  10,
			ReadPace:        33 * time.Millisecond,
			ErrorThreshold:  100,
			StopJoinTimeout: 5 * time.Second,
		},
		Dispatch: DispatchConfig{
			Workers:        4,
			Backlog:        64,
			PerStreamRate:  4,
			PerStreamBurst: 2,
			SendTimeout:    5 * time.Second,
		},
		Engine: EngineConfig{
			RulesPath:      "config/event_rules.json",
			BufferCapacity: 1000,
			SessionTTL:     30 * time.Minute,
			SweepInterval:  5 * time.Minute,
		},
		Events: EventsConfig{
			StorePath:       "/data/wardsight/events.duckdb",
			WALPath:         "/data/wardsight/wal",
			ForwardInterval: 2 * time.Second,
			MaxDeliveryAge:  24 * time.Hour,
		},
		NATS: NATSConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			Subject:        "wardsight.events",
			EmbeddedServer: false,
			StoreDir:       "/data/wardsight/nats",
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		MQTT: MQTTConfig{
			Enabled:  false,
			ClientID: "wardsight",
			Topic:    "wardsight/events",
			QoS:      1,
		},
		Webhook: WebhookConfig{
			Enabled: false,
			Timeout: 10 * time.Second,
		},
		Evidence: EvidenceConfig{
			Enabled: false,
			Bucket:  "wardsight-evidence",
		},
		Supervise: SuperviseConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}
