// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package models

import "time"

// APIResponse is the envelope used by all API endpoints.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
//
// Fields:
//   - Timestamp: Server time when the response was generated (RFC3339)
//   - QueryTimeMS: Time spent producing the payload in milliseconds
//   - Cached: Whether the response was served from cache (omitted if false)
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError represents an error response with structured details.
// Expected failure modes (unknown user, source down, deadline) are reported
// through the recommendation payload's mode field instead and still return
// HTTP 200; APIError is for request-level problems.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus reports process and dependency health.
type HealthStatus struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	DatabaseReachable bool    `json:"database_reachable"`
	Uptime            float64 `json:"uptime_seconds"`
}

// MemoryStatus reports cache occupancy for the /api/memory endpoint.
type MemoryStatus struct {
	CacheEntryCount int      `json:"cache_entry_count"`
	EstimatedBytes  int64    `json:"estimated_bytes"`
	OldestAgeSecs   float64  `json:"oldest_age_seconds"`
	CachedUsers     []string `json:"cached_users"`
}

// SnapshotSummary is returned by the cache-populate endpoint after a forced
// fetch.
type SnapshotSummary struct {
	Username   string    `json:"username"`
	MovieCount int       `json:"user_movies_count"`
	MeanRating float64   `json:"mean_rating"`
	FetchedAt  time.Time `json:"fetched_at"`
}
