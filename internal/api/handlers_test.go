// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/antonioacampos/letterbesdbackend/internal/cache"
	"github.com/antonioacampos/letterbesdbackend/internal/models"
	"github.com/antonioacampos/letterbesdbackend/internal/orchestrator"
	"github.com/antonioacampos/letterbesdbackend/internal/popularity"
	"github.com/antonioacampos/letterbesdbackend/internal/recommend"
)

type fakeSource struct {
	exists  bool
	entries []models.RatingEntry
	err     error
}

func (f *fakeSource) Exists(context.Context, string) (bool, error) {
	return f.exists, nil
}

func (f *fakeSource) FetchRatings(context.Context, string, int) ([]models.RatingEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(src *fakeSource, opts ...Option) (*Server, *cache.SnapshotCache) {
	c := cache.New(5 * time.Minute)
	orch := orchestrator.New(c, src, popularity.New(2), recommend.NewRecommender(nil))
	return NewServer(orch, c, opts...), c
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v (body: %s)", err, rec.Body.String())
	}
	return envelope
}

// routers reuses one router (and thus one rate limiter) per server so
// sequential doRequest calls share middleware state, as in production.
var routers = map[*Server]http.Handler{}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	h, ok := routers[s]
	if !ok {
		h = s.Router()
		routers[s] = h
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestPing(t *testing.T) {
	s, _ := newTestServer(&fakeSource{})
	rec := doRequest(s, http.MethodGet, "/ping")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	data, ok := envelope.Data.(map[string]interface{})
	if !ok || data["message"] != "pong" {
		t.Errorf("unexpected data: %v", envelope.Data)
	}
}

func TestHealthWithoutDatabase(t *testing.T) {
	s, _ := newTestServer(&fakeSource{})
	rec := doRequest(s, http.MethodGet, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["database_reachable"] != false {
		t.Error("database should be unreachable when not configured")
	}
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	s, _ := newTestServer(&fakeSource{}, WithDatabase(&fakePinger{err: errors.New("down")}))
	rec := doRequest(s, http.MethodGet, "/health")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthOKWhenDatabaseUp(t *testing.T) {
	s, _ := newTestServer(&fakeSource{}, WithDatabase(&fakePinger{}))
	rec := doRequest(s, http.MethodGet, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["database_reachable"] != true {
		t.Error("database should be reachable")
	}
}

func TestRecommendationsHappyPath(t *testing.T) {
	src := &fakeSource{exists: true, entries: []models.RatingEntry{
		{Slug: "the-godfather", Title: "The Godfather", Rating: 5.0},
	}}
	s, _ := newTestServer(src)

	rec := doRequest(s, http.MethodGet, "/api/recomendacoes/cinephile")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["mode"] != "fast" {
		t.Errorf("mode = %v, want fast", data["mode"])
	}
	recs := data["recommendations"].([]interface{})
	if len(recs) == 0 {
		t.Fatal("expected recommendations")
	}
	for _, raw := range recs {
		entry := raw.(map[string]interface{})
		if entry["movie_id"] == "the-godfather" {
			t.Error("rated movie leaked into recommendations")
		}
	}
}

func TestRecommendationsUnknownUser(t *testing.T) {
	s, _ := newTestServer(&fakeSource{exists: false})
	rec := doRequest(s, http.MethodGet, "/api/recomendacoes/ghost")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["mode"] != "error" {
		t.Errorf("mode = %v, want error", data["mode"])
	}
	if msg, _ := data["message"].(string); msg == "" {
		t.Error("expected an explanatory message for the unknown user")
	}
}

func TestRecommendationsInvalidUsername(t *testing.T) {
	s, _ := newTestServer(&fakeSource{exists: true})
	rec := doRequest(s, http.MethodGet, "/api/recomendacoes/bad!name")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Code != "INVALID_USERNAME" {
		t.Errorf("unexpected error: %+v", envelope.Error)
	}
}

func TestCacheEndpointPopulatesCache(t *testing.T) {
	src := &fakeSource{exists: true, entries: []models.RatingEntry{
		{Slug: "heat", Title: "Heat", Rating: 4.5},
		{Slug: "ronin", Title: "Ronin", Rating: 4.0},
	}}
	s, c := newTestServer(src)

	rec := doRequest(s, http.MethodGet, "/api/cache/cinephile")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body.String())
	}
	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["user_movies_count"] != float64(2) {
		t.Errorf("movie count = %v, want 2", data["user_movies_count"])
	}
	if _, ok := c.Get("cinephile"); !ok {
		t.Error("snapshot missing from cache after populate")
	}
}

func TestCacheEndpointUnknownUser(t *testing.T) {
	s, _ := newTestServer(&fakeSource{exists: false})
	rec := doRequest(s, http.MethodGet, "/api/cache/ghost")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error == nil || envelope.Error.Code != "USER_NOT_FOUND" {
		t.Errorf("unexpected error: %+v", envelope.Error)
	}
}

func TestMemoryEndpoint(t *testing.T) {
	src := &fakeSource{exists: true, entries: []models.RatingEntry{
		{Slug: "heat", Title: "Heat", Rating: 4.5},
	}}
	s, _ := newTestServer(src)

	doRequest(s, http.MethodGet, "/api/cache/cinephile")
	rec := doRequest(s, http.MethodGet, "/api/memory")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	data := envelope.Data.(map[string]interface{})
	if data["cache_entry_count"] != float64(1) {
		t.Errorf("entry count = %v, want 1", data["cache_entry_count"])
	}
	users := data["cached_users"].([]interface{})
	if len(users) != 1 || users[0] != "cinephile" {
		t.Errorf("cached users = %v", users)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	s, _ := newTestServer(&fakeSource{exists: true}, WithRateLimit(2))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = doRequest(s, http.MethodGet, "/api/memory")
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	envelope := decodeEnvelope(t, last)
	if envelope.Error == nil || envelope.Error.Code != "RATE_LIMITED" {
		t.Errorf("unexpected error: %+v", envelope.Error)
	}
}

func TestPingNotRateLimited(t *testing.T) {
	s, _ := newTestServer(&fakeSource{}, WithRateLimit(1))

	for i := 0; i < 5; i++ {
		if rec := doRequest(s, http.MethodGet, "/ping"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
}

func TestResponseCarriesRequestID(t *testing.T) {
	s, _ := newTestServer(&fakeSource{})
	rec := doRequest(s, http.MethodGet, "/ping")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
