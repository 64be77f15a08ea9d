// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package main is the entry point for the Wardsight server.
//
// Wardsight samples frames from registered video streams at
// risk-adaptive rates, sends them to an external detection service, and
// evaluates stateful behavior rules over the results. Triggered events
// are archived locally and pushed to webhook, MQTT, and NATS consumers.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from environment and config file (koanf v2)
//  2. Risk profiles and the frame sampler
//  3. Detection client with circuit breaker
//  4. Rule engine: rules file, session store, evaluation
//  5. Event archive (DuckDB) and delivery queue (Badger)
//  6. Push channels: webhook, MQTT, NATS JetStream (all optional)
//  7. Dispatch pool, stream manager, WebSocket hub
//  8. HTTP API under a suture supervisor tree
//
// # Configuration
//
// Configuration is loaded via koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (WARDSIGHT_ prefix)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the
// supervisor tree stops capture workers first, drains the dispatch
// pool, then closes the HTTP listener and persistence layers.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardsight/wardsight/internal/api"
	"github.com/wardsight/wardsight/internal/config"
	"github.com/wardsight/wardsight/internal/detector"
	"github.com/wardsight/wardsight/internal/dispatch"
	"github.com/wardsight/wardsight/internal/emitter"
	"github.com/wardsight/wardsight/internal/engine"
	"github.com/wardsight/wardsight/internal/eventstore"
	"github.com/wardsight/wardsight/internal/evidence"
	"github.com/wardsight/wardsight/internal/logging"
	"github.com/wardsight/wardsight/internal/pipeline"
	"github.com/wardsight/wardsight/internal/risk"
	"github.com/wardsight/wardsight/internal/sampler"
	"github.com/wardsight/wardsight/internal/stream"
	"github.com/wardsight/wardsight/internal/supervisor"
	"github.com/wardsight/wardsight/internal/wal"
	ws "github.com/wardsight/wardsight/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("detector_url", cfg.Detector.URL).
		Str("rules_path", cfg.Engine.RulesPath).
		Int("max_streams", cfg.Stream.MaxConcurrent).
		Msg("Starting Wardsight")

	profiles := risk.NewProfiles()
	applySamplingOverrides(profiles, cfg.Sampling)
	smp := sampler.New(profiles)

	det := detector.NewClient(detector.Options{
		BaseURL:          cfg.Detector.URL,
		Timeout:          cfg.Detector.Timeout,
		FailureThreshold: cfg.Detector.BreakerFailureThreshold,
		Cooldown:         cfg.Detector.BreakerCooldown,
	})

	rules, err := engine.LoadRules(cfg.Engine.RulesPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Engine.RulesPath).Msg("Failed to load rules")
	}
	store := engine.NewSessionStore(engine.StoreOptions{
		BufferCapacity: cfg.Engine.BufferCapacity,
		SessionTTL:     cfg.Engine.SessionTTL,
		SweepInterval:  cfg.Engine.SweepInterval,
	})
	eng := engine.NewEngine(store, rules)
	logging.Info().Int("rules", len(rules)).Msg("Rule engine initialized")

	events, err := eventstore.Open(cfg.Events.StorePath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Events.StorePath).Msg("Failed to open event archive")
	}
	defer func() {
		if err := events.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event archive")
		}
	}()

	var queue *wal.WAL
	if cfg.Events.WALPath != "" {
		queue, err = wal.Open(cfg.Events.WALPath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Events.WALPath).Msg("Failed to open delivery queue")
		}
		defer func() {
			if err := queue.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing delivery queue")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var uploader *evidence.Uploader
	if cfg.Evidence.Enabled {
		uploader, err = evidence.New(ctx, evidence.Options{
			Endpoint:  cfg.Evidence.Endpoint,
			AccessKey: cfg.Evidence.AccessKey,
			SecretKey: cfg.Evidence.SecretKey,
			Bucket:    cfg.Evidence.Bucket,
			UseSSL:    cfg.Evidence.UseSSL,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to evidence store")
		}
		logging.Info().Str("bucket", cfg.Evidence.Bucket).Msg("Evidence upload enabled")
	}

	hub := ws.NewHub()

	publisher, cleanupNATS := setupNATS(cfg.NATS)
	defer cleanupNATS()

	notifiers, cleanupNotifiers := setupNotifiers(ctx, cfg)
	defer cleanupNotifiers()

	em := emitter.New(emitter.Options{
		Hub:       hub,
		Queue:     queue,
		Publisher: publisher,
		Notifiers: notifiers,
	})

	pipeOpts := pipeline.Options{
		Detector: det,
		Engine:   eng,
		Profiles: profiles,
		Archive:  events,
		Emitter:  em,
	}
	if uploader != nil {
		pipeOpts.Evidence = uploader
	}
	pipe := pipeline.New(pipeOpts)

	pool := dispatch.NewPool(pipe, dispatch.Options{
		Workers:        cfg.Dispatch.Workers,
		Backlog:        cfg.Dispatch.Backlog,
		PerStreamRate:  cfg.Dispatch.PerStreamRate,
		PerStreamBurst: cfg.Dispatch.PerStreamBurst,
		SendTimeout:    cfg.Dispatch.SendTimeout,
	})

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervise.FailureThreshold,
		FailureDecay:     cfg.Supervise.FailureDecay,
		FailureBackoff:   cfg.Supervise.FailureBackoff,
		ShutdownTimeout:  cfg.Supervise.ShutdownTimeout,
	})

	manager := stream.NewManager(tree.Capture(), smp, pool, stream.ManagerOptions{
		Worker: stream.WorkerOptions{
			ReadPace:       cfg.Stream.ReadPace,
			QueueSize:      cfg.Stream.FrameQueueSize,
			ErrorThreshold: cfg.Stream.ErrorThreshold,
		},
		MaxConcurrent: cfg.Stream.MaxConcurrent,
		StopTimeout:   cfg.Stream.StopJoinTimeout,
	})

	handlers := api.NewHandlers(manager, profiles, eng, events, hub)
	router := api.NewRouter(handlers, api.RouterOptions{
		RateLimit:   cfg.Server.RateLimit,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	server := api.NewServer(router, api.ServerOptions{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	tree.AddProcessingService(pool)
	tree.AddProcessingService(store)
	tree.AddProcessingService(hub)
	if queue != nil {
		tree.AddProcessingService(emitter.NewForwarder(queue, em, emitter.ForwarderOptions{
			Interval: cfg.Events.ForwardInterval,
			MaxAge:   cfg.Events.MaxDeliveryAge,
		}))
	}
	tree.AddAPIService(server)

	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("Supervisor tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}

// applySamplingOverrides maps configured tier intervals onto the risk
// profiles. Zero values keep the built-in defaults.
func applySamplingOverrides(profiles *risk.Profiles, cfg config.SamplingConfig) {
	set := func(level risk.Level, seconds float64) {
		if seconds <= 0 {
			return
		}
		if err := profiles.SetInterval(level, time.Duration(seconds*float64(time.Second))); err != nil {
			logging.Warn().Err(err).Str("level", string(level)).Msg("Ignoring sampling override")
		}
	}
	set(risk.LevelHigh, cfg.HighIntervalSeconds)
	set(risk.LevelMedium, cfg.MediumIntervalSeconds)
	set(risk.LevelLow, cfg.LowIntervalSeconds)
}

// setupNATS starts the optional embedded JetStream server and connects
// the event publisher. The returned cleanup is safe to call even when
// NATS is disabled.
func setupNATS(cfg config.NATSConfig) (*emitter.Publisher, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}

	url := cfg.URL
	var embedded *emitter.EmbeddedServer
	if cfg.EmbeddedServer {
		var err error
		embedded, err = emitter.NewEmbeddedServer(emitter.EmbeddedServerOptions{
			Host:     "127.0.0.1",
			StoreDir: cfg.StoreDir,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
		}
		url = embedded.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	publisher, err := emitter.NewPublisher(emitter.PublisherOptions{
		URL:           url,
		Subject:       cfg.Subject,
		MaxReconnects: cfg.MaxReconnects,
		ReconnectWait: cfg.ReconnectWait,
	})
	if err != nil {
		logging.Fatal().Err(err).Str("url", url).Msg("Failed to connect NATS publisher")
	}
	logging.Info().Str("subject", cfg.Subject).Msg("NATS event publishing enabled")

	return publisher, func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing NATS publisher")
		}
		if embedded != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("Error stopping embedded NATS server")
			}
		}
	}
}

// setupNotifiers builds the configured push channels. MQTT connection
// failures are logged, not fatal; the client retries in the background.
func setupNotifiers(ctx context.Context, cfg *config.Config) ([]emitter.Notifier, func()) {
	var notifiers []emitter.Notifier
	cleanup := func() {}

	webhook := emitter.NewWebhookNotifier(emitter.WebhookOptions{
		URL:     cfg.Webhook.URL,
		Enabled: cfg.Webhook.Enabled,
		Timeout: cfg.Webhook.Timeout,
	})
	notifiers = append(notifiers, webhook)
	if cfg.Webhook.Enabled {
		logging.Info().Str("url", cfg.Webhook.URL).Msg("Webhook notifications enabled")
	}

	if cfg.MQTT.Enabled {
		mqttNotifier := emitter.NewMQTTNotifier(emitter.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      cfg.MQTT.QoS,
			Enabled:  true,
		})
		if err := mqttNotifier.Connect(ctx); err != nil {
			logging.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT connect failed (will retry)")
		} else {
			logging.Info().Str("broker", cfg.MQTT.Broker).Msg("MQTT notifications enabled")
		}
		notifiers = append(notifiers, mqttNotifier)
		cleanup = mqttNotifier.Close
	}

	return notifiers, cleanup
}
