// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package api exposes the HTTP surface: recommendation and cache
// management endpoints plus health, ping and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/antonioacampos/letterbesdbackend/internal/cache"
	"github.com/antonioacampos/letterbesdbackend/internal/metrics"
	"github.com/antonioacampos/letterbesdbackend/internal/middleware"
	"github.com/antonioacampos/letterbesdbackend/internal/models"
	"github.com/antonioacampos/letterbesdbackend/internal/orchestrator"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Pinger is the optional database health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	orch      *orchestrator.Orchestrator
	cache     *cache.SnapshotCache
	db        Pinger
	rateLimit int
	corsList  []string
	startedAt time.Time
}

// Option adjusts server construction.
type Option func(*Server)

// WithDatabase registers the database probe for /health. A nil Pinger
// leaves the database marked unreachable.
func WithDatabase(db Pinger) Option {
	return func(s *Server) { s.db = db }
}

// WithRateLimit overrides the per-IP requests-per-minute budget.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute > 0 {
			s.rateLimit = perMinute
		}
	}
}

// WithCORSOrigins overrides the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsList = origins
		}
	}
}

// NewServer builds the HTTP server facade.
func NewServer(orch *orchestrator.Orchestrator, c *cache.SnapshotCache, opts ...Option) *Server {
	s := &Server{
		orch:      orch,
		cache:     c,
		rateLimit: 10,
		corsList:  []string{"*"},
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsList,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/ping", s.handlePing)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(
			s.rateLimit,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimitExceeded),
		))

		r.Get("/api/recomendacoes/{username}", s.handleRecommendations)
		r.Get("/api/cache/{username}", s.handleCacheUser)
		r.Get("/api/memory", s.handleMemory)
	})

	return r
}

// rateLimitExceeded renders the throttle response in the standard
// envelope instead of httprate's plain text default.
func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	metrics.RateLimitHitsTotal.Inc()
	respondError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		"too many requests, slow down", nil)
}

func newMetadata(start time.Time, cached bool) models.Metadata {
	return models.Metadata{
		Timestamp:   time.Now().UTC(),
		QueryTimeMS: time.Since(start).Milliseconds(),
		Cached:      cached,
	}
}
