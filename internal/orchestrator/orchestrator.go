// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package orchestrator coordinates a recommendation request end to end:
// cache lookup, source fetch under a hard deadline, scoring, and the
// popularity fallback when personalization cannot complete in time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antonioacampos/letterbesdbackend/internal/cache"
	"github.com/antonioacampos/letterbesdbackend/internal/logging"
	"github.com/antonioacampos/letterbesdbackend/internal/metrics"
	"github.com/antonioacampos/letterbesdbackend/internal/models"
	"github.com/antonioacampos/letterbesdbackend/internal/popularity"
	"github.com/antonioacampos/letterbesdbackend/internal/recommend"
	"github.com/antonioacampos/letterbesdbackend/internal/source"
)

// Mode tags how a recommendation result was produced.
type Mode string

const (
	// ModeFast means a personalized list built from cached or freshly
	// fetched ratings.
	ModeFast Mode = "fast"
	// ModeFallback means the generic popularity list, served when the
	// user has no usable ratings.
	ModeFallback Mode = "fallback"
	// ModeTimeout means the deadline expired and the popularity list was
	// served instead of a personalized one.
	ModeTimeout Mode = "timeout"
	// ModeError means the request failed outright.
	ModeError Mode = "error"
)

const (
	// DefaultDeadline bounds the whole recommendation flow.
	DefaultDeadline = 10 * time.Second
	// existsDeadline bounds the initial profile existence probe so a slow
	// probe cannot eat the whole budget.
	existsDeadline = 4 * time.Second
	// pageLimit bounds how many rating pages a fresh fetch walks.
	pageLimit = 5
)

// ErrUnknownUser reports a username with no Letterboxd profile.
var ErrUnknownUser = errors.New("unknown user")

// errSourcePanic marks a panic recovered from a source call.
var errSourcePanic = errors.New("source panic")

// Result is the outcome of a recommendation request.
type Result struct {
	Mode            Mode
	Recommendations []models.Recommendation
	Cached          bool
	ElapsedMS       int64
	Message         string
}

// Orchestrator wires the cache, the source chain, the popularity index
// and the recommender into the request flow.
type Orchestrator struct {
	cache       *cache.SnapshotCache
	src         source.Source
	index       *popularity.Index
	recommender *recommend.Recommender
	deadline    time.Duration
	topN        int
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithDeadline overrides the per-request deadline.
func WithDeadline(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.deadline = d
		}
	}
}

// WithTopN overrides the recommendation list length.
func WithTopN(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.topN = n
		}
	}
}

// New builds an orchestrator over the given collaborators.
func New(c *cache.SnapshotCache, src source.Source, index *popularity.Index, rec *recommend.Recommender, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:       c,
		src:         src,
		index:       index,
		recommender: rec,
		deadline:    DefaultDeadline,
		topN:        recommend.DefaultTopN,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Recommend serves recommendations for username. It always returns a
// Result; errors are folded into Mode so callers can render a stable
// response shape.
func (o *Orchestrator) Recommend(ctx context.Context, username string) Result {
	start := time.Now()
	result := o.recommendInner(ctx, username)
	result.ElapsedMS = time.Since(start).Milliseconds()

	metrics.RecommendationsTotal.WithLabelValues(string(result.Mode)).Inc()
	metrics.RecommendationDuration.Observe(time.Since(start).Seconds())

	logging.Info().
		Str("username", username).
		Str("mode", string(result.Mode)).
		Bool("cached", result.Cached).
		Int64("elapsed_ms", result.ElapsedMS).
		Int("count", len(result.Recommendations)).
		Msg("recommendation request completed")
	return result
}

func (o *Orchestrator) recommendInner(ctx context.Context, username string) Result {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	snapshot, cached, err := o.snapshotFor(ctx, username)
	switch {
	case err == nil:
		recs := o.recommender.Recommend(snapshot, o.index.Top(popularity.MaxEntries), o.topN)
		mode := ModeFast
		if len(snapshot.Ratings) == 0 {
			mode = ModeFallback
		}
		return Result{Mode: mode, Recommendations: recs, Cached: cached}

	case errors.Is(err, ErrUnknownUser), errors.Is(err, source.ErrUserNotFound):
		return Result{Mode: ModeError, Message: fmt.Sprintf("user %q not found", username)}

	case errors.Is(err, errSourcePanic):
		logging.Error().Err(err).Str("username", username).Msg("source panicked during fetch")
		return Result{Mode: ModeError, Message: "internal error while fetching ratings"}

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Result{
			Mode:            ModeTimeout,
			Recommendations: recommend.FromPopularity(o.index.Top(o.topN), o.topN),
			Message:         "personalization timed out, serving popular movies",
		}

	default:
		logging.Warn().Err(err).Str("username", username).Msg("ratings fetch failed, serving popular movies")
		return Result{
			Mode:            ModeFallback,
			Recommendations: recommend.FromPopularity(o.index.Top(o.topN), o.topN),
			Message:         "ratings unavailable, serving popular movies",
		}
	}
}

// CacheUser forces a fresh fetch for username and stores the snapshot,
// bypassing any cached entry.
func (o *Orchestrator) CacheUser(ctx context.Context, username string) (models.SnapshotSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	snapshot, err := o.fetchSnapshot(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) || errors.Is(err, source.ErrUserNotFound) {
			return models.SnapshotSummary{}, ErrUnknownUser
		}
		return models.SnapshotSummary{}, err
	}

	o.cache.Put(username, snapshot)
	return models.SnapshotSummary{
		Username:   snapshot.Username,
		MovieCount: len(snapshot.Ratings),
		MeanRating: snapshot.MeanRating(),
		FetchedAt:  snapshot.FetchedAt,
	}, nil
}

// snapshotFor resolves the snapshot cache-first.
func (o *Orchestrator) snapshotFor(ctx context.Context, username string) (models.UserSnapshot, bool, error) {
	if snapshot, ok := o.cache.Get(username); ok {
		metrics.CacheHitsTotal.Inc()
		return snapshot, true, nil
	}
	metrics.CacheMissesTotal.Inc()

	snapshot, err := o.fetchSnapshot(ctx, username)
	if err != nil {
		return models.UserSnapshot{}, false, err
	}
	o.cache.Put(username, snapshot)
	metrics.CacheEntries.Set(float64(o.cache.Stats().Entries))
	return snapshot, false, nil
}

// fetchSnapshot probes for the user and pulls their ratings, guarding both
// calls so a source that ignores the context cannot stall past the
// deadline.
func (o *Orchestrator) fetchSnapshot(ctx context.Context, username string) (models.UserSnapshot, error) {
	probeCtx, probeCancel := context.WithTimeout(ctx, existsDeadline)
	exists, err := guardBool(probeCtx, func(c context.Context) (bool, error) {
		return o.src.Exists(c, username)
	})
	probeCancel()
	if err != nil {
		return models.UserSnapshot{}, err
	}
	if !exists {
		return models.UserSnapshot{}, ErrUnknownUser
	}

	entries, err := guardEntries(ctx, func(c context.Context) ([]models.RatingEntry, error) {
		return o.src.FetchRatings(c, username, pageLimit)
	})
	switch {
	case errors.Is(err, source.ErrEmptyRatings):
		// The user exists but has rated nothing. That is a valid snapshot
		// with zero entries; caching it stops per-request re-scrapes.
		entries = nil
	case err != nil:
		return models.UserSnapshot{}, err
	}

	if len(entries) > models.SnapshotLimit {
		entries = entries[:models.SnapshotLimit]
	}
	return models.UserSnapshot{
		Username:  username,
		Ratings:   entries,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// guardBool runs fn in a goroutine and abandons it when ctx expires. The
// goroutine may keep running; its eventual result is discarded.
func guardBool(ctx context.Context, fn func(context.Context) (bool, error)) (bool, error) {
	type outcome struct {
		ok  bool
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("%w: %v", errSourcePanic, r)}
			}
		}()
		ok, err := fn(ctx)
		ch <- outcome{ok: ok, err: err}
	}()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case out := <-ch:
		return out.ok, out.err
	}
}

func guardEntries(ctx context.Context, fn func(context.Context) ([]models.RatingEntry, error)) ([]models.RatingEntry, error) {
	type outcome struct {
		entries []models.RatingEntry
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("%w: %v", errSourcePanic, r)}
			}
		}()
		entries, err := fn(ctx)
		ch <- outcome{entries: entries, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		return out.entries, out.err
	}
}
