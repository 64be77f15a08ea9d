// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

// Package metrics provides Prometheus instrumentation for the sampling
// pipeline and the detection engine, exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture pipeline metrics.

	FramesCaptured = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_frames_captured_total",
			Help: "Total frames read from capture sources",
		},
		[]string{"stream_id"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_frames_dropped_total",
			Help: "Frames shed because a bounded queue was full",
		},
		[]string{"stream_id", "queue"}, // queue: "capture", "dispatch"
	)

	FramesSampled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_frames_sampled_total",
			Help: "Frames that passed the adaptive sampling gate",
		},
		[]string{"stream_id"},
	)

	CaptureReadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_capture_read_errors_total",
			Help: "Failed frame reads per stream",
		},
		[]string{"stream_id"},
	)

	StreamsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardsight_streams_running",
			Help: "Number of stream workers currently in the running state",
		},
	)

	// Dispatch metrics.

	DispatchBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardsight_dispatch_backlog",
			Help: "Tasks currently queued in the dispatch pool",
		},
	)

	DispatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_dispatch_failures_total",
			Help: "Frame dispatch failures by reason",
		},
		[]string{"reason"}, // "encode", "detect", "throttled", "saturated"
	)

	DetectorLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wardsight_detector_request_duration_seconds",
			Help:    "Latency of external detector calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Detection engine metrics.

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardsight_sessions_active",
			Help: "Detection sessions currently held in the session store",
		},
	)

	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wardsight_sessions_evicted_total",
			Help: "Sessions removed by the TTL sweep",
		},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_events_emitted_total",
			Help: "Behavioral events emitted per rule",
		},
		[]string{"rule", "category"},
	)

	RuleEvalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_rule_eval_errors_total",
			Help: "Rule evaluations skipped due to internal errors",
		},
		[]string{"rule"},
	)

	// Delivery metrics.

	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_events_delivered_total",
			Help: "Events delivered to push collaborators",
		},
		[]string{"notifier"},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wardsight_delivery_failures_total",
			Help: "Event delivery failures per notifier",
		},
		[]string{"notifier"},
	)

	WALPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wardsight_wal_pending_entries",
			Help: "Events awaiting durable delivery in the WAL",
		},
	)
)
