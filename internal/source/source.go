// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package source abstracts "get a user's rated movies": a persistent
// Postgres store, a live Letterboxd scrape, and a composite that tries the
// store first and persists scraped profiles. A circuit breaker wrapper
// degrades a dead dependency to fast failures instead of slow timeouts.
package source

import (
	"context"
	"errors"

	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

// Failure modes the orchestrator needs to distinguish. Implementations wrap
// these sentinels so callers can branch with errors.Is.
var (
	// ErrUserNotFound means the user does not exist at the source.
	ErrUserNotFound = errors.New("user not found")

	// ErrSourceUnreachable means the source could not be queried at all
	// (network failure, timeout, database down).
	ErrSourceUnreachable = errors.New("source unreachable")

	// ErrEmptyRatings means the user exists but has no rated films.
	// Callers treat this as a valid zero-entry snapshot, not a failure.
	ErrEmptyRatings = errors.New("user has no ratings")
)

// Source fetches a user's rated movies.
type Source interface {
	// Exists is a cheap existence probe. It must respect ctx; callers run
	// it under a short sub-deadline. A false result with a nil error means
	// the user definitively does not exist.
	Exists(ctx context.Context, username string) (bool, error)

	// FetchRatings returns the user's rated films. pageLimit bounds how
	// much source data is scanned; implementations backed by a single
	// query may ignore it.
	FetchRatings(ctx context.Context, username string, pageLimit int) ([]models.RatingEntry, error)
}

// Store is a persistent Source that additionally serves the popularity
// aggregate and accepts freshly scraped profiles.
type Store interface {
	Source

	// PopularMovies returns up to limit movies ranked by mean rating,
	// counting only films with at least minRaters ratings.
	PopularMovies(ctx context.Context, limit, minRaters int) ([]models.PopularityEntry, error)

	// SaveProfile persists a scraped profile (user, movies, ratings).
	SaveProfile(ctx context.Context, username string, entries []models.RatingEntry) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
