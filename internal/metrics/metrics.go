// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package metrics exposes Prometheus collectors for the recommendation
// pipeline: HTTP traffic, per-mode recommendation outcomes, cache
// efficiency, scrape volume and circuit breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		},
		[]string{"method", "endpoint"},
	)

	// Recommendation pipeline metrics
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_total",
			Help: "Total recommendation requests by terminal mode",
		},
		[]string{"mode"}, // fast, fallback, timeout, error
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "End-to-end recommendation latency in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.25, 1, 2.5, 5, 10, 25},
		},
	)

	// Snapshot cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_cache_hits_total",
			Help: "Total snapshot cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_cache_misses_total",
			Help: "Total snapshot cache misses",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snapshot_cache_entries",
			Help: "Current number of cached user snapshots",
		},
	)

	// Scraper metrics
	ScrapePagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "letterboxd_scrape_pages_total",
			Help: "Total Letterboxd profile pages scraped",
		},
	)

	// Circuit breaker state: 0 = closed, 1 = half-open, 2 = open
	SourceBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_circuit_breaker_state",
			Help: "Data source circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	// Popularity index metrics
	PopularityRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularity_refresh_total",
			Help: "Total popularity index refreshes by result",
		},
		[]string{"result"}, // success, failure
	)

	PopularityIndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popularity_index_entries",
			Help: "Number of entries in the current popularity index",
		},
	)

	// Rate limiting
	RateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)
)
