// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package models contains the shared data model for the recommendation
// pipeline: rating entries, user snapshots, popularity entries and the
// recommendations produced per request.
package models

import (
	"strings"
	"time"
	"unicode"
)

// RatingEntry is a single (movie, rating) pair from a user's Letterboxd
// profile. Entries are immutable once fetched.
type RatingEntry struct {
	// Slug is the Letterboxd film slug (e.g. "the-godfather"), used as the
	// stable movie identifier throughout the pipeline.
	Slug string `json:"movie_id"`

	// Title is the display title of the film.
	Title string `json:"title"`

	// Rating is the star rating on the 0.5-5.0 scale in 0.5 steps.
	// Watched-but-unrated films never enter a snapshot.
	Rating float64 `json:"rating"`

	// WatchedAt is when the film was logged, if the source exposes it.
	WatchedAt time.Time `json:"watched_at,omitempty"`
}

// UserSnapshot is a bounded, immutable copy of one user's ratings at fetch
// time. It is owned by the cache once stored and read-only to consumers.
type UserSnapshot struct {
	// Username is the unique cache key.
	Username string `json:"username"`

	// Ratings holds the user's top rated films, ordered by rating
	// descending and bounded to SnapshotLimit entries.
	Ratings []RatingEntry `json:"ratings"`

	// FetchedAt is when the snapshot was built from the source.
	FetchedAt time.Time `json:"fetched_at"`
}

// SnapshotLimit bounds how many ratings a snapshot carries.
const SnapshotLimit = 20

// RatedSet returns the set of movie slugs the user has rated.
// Used by the recommender as the exclusion set.
func (s UserSnapshot) RatedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Ratings))
	for _, r := range s.Ratings {
		set[r.Slug] = struct{}{}
	}
	return set
}

// MeanRating returns the user's average rating, or 0 for an empty snapshot.
func (s UserSnapshot) MeanRating() float64 {
	if len(s.Ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range s.Ratings {
		sum += r.Rating
	}
	return sum / float64(len(s.Ratings))
}

// PopularityEntry is one movie in the globally popular ranking.
type PopularityEntry struct {
	// Slug is the movie identifier.
	Slug string `json:"movie_id"`

	// Title is the display title.
	Title string `json:"title"`

	// Score is the aggregate popularity score (mean rating across raters,
	// gated on a minimum rater count).
	Score float64 `json:"score"`

	// Rank is the 1-based position in the index, assigned on refresh.
	Rank int `json:"rank"`
}

// Recommendation is one recommended movie, produced per request and never
// persisted.
type Recommendation struct {
	Slug  string  `json:"movie_id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Slugify derives a URL-style slug from a film title. The persistent store
// only records titles, so slugs for stored films are derived the same way
// Letterboxd derives them for the common case.
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
