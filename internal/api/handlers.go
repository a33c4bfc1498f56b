// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/antonioacampos/letterbesdbackend/internal/models"
	"github.com/antonioacampos/letterbesdbackend/internal/orchestrator"
)

// RecommendationPayload is the data field of the recommendations endpoint.
type RecommendationPayload struct {
	Username        string                  `json:"username"`
	Mode            string                  `json:"mode"`
	Recommendations []models.Recommendation `json:"recommendations"`
	ElapsedMS       int64                   `json:"elapsed_ms"`
	Message         string                  `json:"message,omitempty"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     map[string]string{"message": "pong"},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbReachable := false
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		dbReachable = s.db.Ping(ctx) == nil
		cancel()
	}

	status := "ok"
	httpStatus := http.StatusOK
	if s.db != nil && !dbReachable {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	respondJSON(w, httpStatus, &models.APIResponse{
		Status: "success",
		Data: models.HealthStatus{
			Status:            status,
			Version:           Version,
			DatabaseReachable: dbReachable,
			Uptime:            time.Since(s.startedAt).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	username := chi.URLParam(r, "username")
	if !validUsername(username) {
		respondError(w, http.StatusBadRequest, "INVALID_USERNAME",
			"username must be 1-64 characters of letters, digits, '_', '-' or '.'", nil)
		return
	}

	result := s.orch.Recommend(r.Context(), username)

	// Every expected failure answers 200 with the mode flagged, unknown
	// user included; non-200 is reserved for malformed requests and the
	// rate limiter.
	payload := RecommendationPayload{
		Username:        username,
		Mode:            string(result.Mode),
		Recommendations: result.Recommendations,
		ElapsedMS:       result.ElapsedMS,
		Message:         result.Message,
	}
	if payload.Recommendations == nil {
		payload.Recommendations = []models.Recommendation{}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     payload,
		Metadata: newMetadata(start, result.Cached),
	})
}

func (s *Server) handleCacheUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	username := chi.URLParam(r, "username")
	if !validUsername(username) {
		respondError(w, http.StatusBadRequest, "INVALID_USERNAME",
			"username must be 1-64 characters of letters, digits, '_', '-' or '.'", nil)
		return
	}

	summary, err := s.orch.CacheUser(r.Context(), username)
	if err != nil {
		// Same contract as the recommendation route: expected failures
		// still answer 200 with an explanatory error payload.
		if errors.Is(err, orchestrator.ErrUnknownUser) {
			respondError(w, http.StatusOK, "USER_NOT_FOUND",
				"no Letterboxd profile found for this username", nil)
			return
		}
		respondError(w, http.StatusOK, "SOURCE_UNAVAILABLE",
			"could not fetch ratings for this username", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     summary,
		Metadata: newMetadata(start, false),
	})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats := s.cache.Stats()

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.MemoryStatus{
			CacheEntryCount: stats.Entries,
			EstimatedBytes:  stats.EstimatedBytes,
			OldestAgeSecs:   stats.OldestAge.Seconds(),
			CachedUsers:     s.cache.Users(),
		},
		Metadata: newMetadata(start, false),
	})
}
