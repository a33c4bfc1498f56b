// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

// PostgresStore persists users, movies and ratings and serves both the
// per-user snapshot query and the popularity aggregate. It implements Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool to the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreFromPool wraps an existing pool. Tests use this with a
// mock pool via the pgxpool interface surface.
func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS movies (
			id SERIAL PRIMARY KEY,
			title TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS ratings (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id),
			movie_id INTEGER NOT NULL REFERENCES movies(id),
			rating REAL NOT NULL,
			UNIQUE (user_id, movie_id)
		);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Exists reports whether the user has a row in the users table.
func (s *PostgresStore) Exists(ctx context.Context, username string) (bool, error) {
	var id int
	err := s.pool.QueryRow(ctx, "SELECT id FROM users WHERE username = $1", username).Scan(&id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("%w: querying user %s: %v", ErrSourceUnreachable, username, err)
	}
}

// FetchRatings returns the user's top rated films, ordered by rating
// descending and bounded to the snapshot limit. pageLimit is ignored: the
// store answers with a single query.
func (s *PostgresStore) FetchRatings(ctx context.Context, username string, _ int) ([]models.RatingEntry, error) {
	exists, err := s.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}

	const query = `
		SELECT m.title, r.rating
		FROM ratings r
		JOIN users u ON r.user_id = u.id
		JOIN movies m ON r.movie_id = m.id
		WHERE u.username = $1
		ORDER BY r.rating DESC, m.title ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, username, models.SnapshotLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying ratings for %s: %v", ErrSourceUnreachable, username, err)
	}
	defer rows.Close()

	var entries []models.RatingEntry
	for rows.Next() {
		var title string
		var rating float64
		if err := rows.Scan(&title, &rating); err != nil {
			return nil, fmt.Errorf("%w: scanning rating row: %v", ErrSourceUnreachable, err)
		}
		entries = append(entries, models.RatingEntry{
			Slug:   models.Slugify(title),
			Title:  title,
			Rating: rating,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading rating rows: %v", ErrSourceUnreachable, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRatings, username)
	}
	return entries, nil
}

// PopularMovies aggregates mean ratings across all users, keeping films
// rated by at least minRaters users.
func (s *PostgresStore) PopularMovies(ctx context.Context, limit, minRaters int) ([]models.PopularityEntry, error) {
	if minRaters < 1 {
		minRaters = 1
	}

	const query = `
		SELECT m.title, AVG(r.rating) AS avg_rating
		FROM ratings r
		JOIN movies m ON r.movie_id = m.id
		GROUP BY m.title
		HAVING COUNT(r.rating) >= $1
		ORDER BY AVG(r.rating) DESC, m.title ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, minRaters, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying popular movies: %v", ErrSourceUnreachable, err)
	}
	defer rows.Close()

	var entries []models.PopularityEntry
	for rows.Next() {
		var title string
		var score float64
		if err := rows.Scan(&title, &score); err != nil {
			return nil, fmt.Errorf("%w: scanning popularity row: %v", ErrSourceUnreachable, err)
		}
		entries = append(entries, models.PopularityEntry{
			Slug:  models.Slugify(title),
			Title: title,
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading popularity rows: %v", ErrSourceUnreachable, err)
	}
	return entries, nil
}

// SaveProfile upserts the user, their movies and their ratings in one
// transaction. Re-saving an existing profile overwrites prior ratings.
func (s *PostgresStore) SaveProfile(ctx context.Context, username string, entries []models.RatingEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning save for %s: %v", ErrSourceUnreachable, username, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var userID int
	err = tx.QueryRow(ctx, `
		INSERT INTO users (username) VALUES ($1)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id`, username).Scan(&userID)
	if err != nil {
		return fmt.Errorf("%w: upserting user %s: %v", ErrSourceUnreachable, username, err)
	}

	for _, entry := range entries {
		var movieID int
		err = tx.QueryRow(ctx, `
			INSERT INTO movies (title) VALUES ($1)
			ON CONFLICT (title) DO UPDATE SET title = EXCLUDED.title
			RETURNING id`, entry.Title).Scan(&movieID)
		if err != nil {
			return fmt.Errorf("%w: upserting movie %q: %v", ErrSourceUnreachable, entry.Title, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO ratings (user_id, movie_id, rating) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, movie_id) DO UPDATE SET rating = EXCLUDED.rating`,
			userID, movieID, entry.Rating)
		if err != nil {
			return fmt.Errorf("%w: upserting rating for %q: %v", ErrSourceUnreachable, entry.Title, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing profile for %s: %v", ErrSourceUnreachable, username, err)
	}
	return nil
}

// Ping reports store reachability.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
