// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package popularity maintains the ranked list of globally popular movies.
//
// The index is read-mostly shared state: Refresh rebuilds it from scratch
// and swaps it in atomically, so concurrent readers always see either the
// fully-old or fully-new ranking, never a partially-updated one. Until the
// first successful refresh, Top serves a compiled-in seed list so the
// fallback path always has something to return.
package popularity

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/antonioacampos/letterbesdbackend/internal/logging"
	"github.com/antonioacampos/letterbesdbackend/internal/metrics"
	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

// MaxEntries bounds how many movies the index tracks.
const MaxEntries = 100

// AggregateSource provides the popularity aggregate, typically the
// Postgres store.
type AggregateSource interface {
	PopularMovies(ctx context.Context, limit, minRaters int) ([]models.PopularityEntry, error)
}

// Index is the shared popularity ranking. Safe for concurrent use.
type Index struct {
	entries   atomic.Pointer[[]models.PopularityEntry]
	minRaters int
}

// New creates an index serving the seed list until refreshed.
func New(minRaters int) *Index {
	if minRaters < 1 {
		minRaters = 2
	}
	idx := &Index{minRaters: minRaters}
	seeded := rankEntries(seedEntries())
	idx.entries.Store(&seeded)
	return idx
}

// Top returns the n highest-ranked entries. The returned slice is a copy;
// callers may not see later refreshes through it.
func (idx *Index) Top(n int) []models.PopularityEntry {
	entries := *idx.entries.Load()
	if n > len(entries) {
		n = len(entries)
	}
	if n <= 0 {
		return nil
	}
	top := make([]models.PopularityEntry, n)
	copy(top, entries[:n])
	return top
}

// Len returns the current index size.
func (idx *Index) Len() int {
	return len(*idx.entries.Load())
}

// Refresh recomputes the ranking from source and atomically replaces the
// current index. On failure the old index stays in place.
func (idx *Index) Refresh(ctx context.Context, source AggregateSource) error {
	entries, err := source.PopularMovies(ctx, MaxEntries, idx.minRaters)
	if err != nil {
		metrics.PopularityRefreshTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("refreshing popularity index: %w", err)
	}
	if len(entries) == 0 {
		// An empty database is not a reason to drop the seed ranking.
		metrics.PopularityRefreshTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("refreshing popularity index: aggregate returned no movies")
	}

	ranked := rankEntries(entries)
	idx.entries.Store(&ranked)

	metrics.PopularityRefreshTotal.WithLabelValues("success").Inc()
	metrics.PopularityIndexSize.Set(float64(len(ranked)))
	return nil
}

// RefreshLoop refreshes the index every interval until ctx is cancelled.
// Failures are logged and the previous index keeps serving.
func (idx *Index) RefreshLoop(ctx context.Context, source AggregateSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := idx.Refresh(ctx, source); err != nil {
				logging.Warn().Err(err).Msg("popularity refresh failed, keeping previous index")
			}
		}
	}
}

// rankEntries sorts by score descending with lexicographic slug tie-break
// for determinism, truncates to MaxEntries, and assigns 1-based ranks.
func rankEntries(entries []models.PopularityEntry) []models.PopularityEntry {
	ranked := make([]models.PopularityEntry, len(entries))
	copy(ranked, entries)

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Slug < ranked[j].Slug
	})

	if len(ranked) > MaxEntries {
		ranked = ranked[:MaxEntries]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// seedEntries is the built-in fallback ranking, served before the first
// refresh or when no database is configured. Scores are on the same
// 0.5-5.0 scale as user ratings.
func seedEntries() []models.PopularityEntry {
	return []models.PopularityEntry{
		{Slug: "the-shawshank-redemption", Title: "The Shawshank Redemption", Score: 4.65},
		{Slug: "the-godfather", Title: "The Godfather", Score: 4.6},
		{Slug: "pulp-fiction", Title: "Pulp Fiction", Score: 4.45},
		{Slug: "fight-club", Title: "Fight Club", Score: 4.4},
		{Slug: "forrest-gump", Title: "Forrest Gump", Score: 4.4},
		{Slug: "the-matrix", Title: "The Matrix", Score: 4.35},
		{Slug: "goodfellas", Title: "Goodfellas", Score: 4.35},
		{Slug: "the-silence-of-the-lambs", Title: "The Silence of the Lambs", Score: 4.3},
		{Slug: "interstellar", Title: "Interstellar", Score: 4.3},
		{Slug: "the-departed", Title: "The Departed", Score: 4.25},
	}
}
