// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions tunes the global middleware stack.
type RouterOptions struct {
	// RateLimit is requests per minute per client IP. Zero disables limiting.
	RateLimit   int
	CORSOrigins []string
}

// NewRouter builds the HTTP routing tree.
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.RateLimit > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimit, time.Minute))
	}

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/streams", func(r chi.Router) {
			r.Get("/", h.ListStreams)
			r.Post("/", h.CreateStream)
			r.Post("/batch", h.CreateStreams)
			r.Get("/stats", h.AllStats)
			r.Post("/start_all", h.StartAll)
			r.Post("/stop_all", h.StopAll)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetStream)
				r.Put("/", h.UpdateStream)
				r.Delete("/", h.DeleteStream)
				r.Post("/start", h.StartStream)
				r.Post("/stop", h.StopStream)
				r.Get("/stats", h.StreamStats)
				r.Post("/risk", h.SetStreamRisk)
			})
		})

		r.Route("/risk/profiles", func(r chi.Router) {
			r.Get("/", h.RiskProfiles)
			r.Put("/", h.UpdateRiskProfile)
		})

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.SessionStatus)
			r.Get("/events", h.SessionEvents)
			r.Delete("/", h.ClearSession)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/{name}/enable", h.SetRuleEnabled)
		})

		r.Route("/engine", func(r chi.Router) {
			r.Get("/", h.EngineStatus)
			r.Put("/", h.SetEngineEnabled)
		})

		r.Get("/events", h.ListEvents)
	})

	return r
}
