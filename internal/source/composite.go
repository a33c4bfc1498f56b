// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package source

import (
	"context"
	"errors"
	"time"

	"github.com/antonioacampos/letterbesdbackend/internal/logging"
	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

// Composite answers from the persistent store when the user is already
// known and falls back to a live scrape otherwise, persisting the scraped
// profile so the next request is served from the store.
//
// Persistence is best-effort: a failed save is logged and the scraped
// ratings are still returned.
type Composite struct {
	store   Store
	scraper Source
}

// NewComposite builds a store-first source. store may be nil (no database
// configured), in which case every fetch goes to the scraper.
func NewComposite(store Store, scraper Source) *Composite {
	return &Composite{store: store, scraper: scraper}
}

// Exists probes the store first and only reaches the scraper for users the
// store has never seen. A store error falls through to the scraper so a
// down database does not hide a live profile.
func (c *Composite) Exists(ctx context.Context, username string) (bool, error) {
	if c.store != nil {
		known, err := c.store.Exists(ctx, username)
		if err == nil && known {
			return true, nil
		}
		if err != nil {
			logging.Warn().Err(err).Str("username", username).Msg("store existence check failed, trying scraper")
		}
	}
	return c.scraper.Exists(ctx, username)
}

// FetchRatings serves from the store when it has the user; otherwise it
// scrapes and persists.
func (c *Composite) FetchRatings(ctx context.Context, username string, pageLimit int) ([]models.RatingEntry, error) {
	if c.store != nil {
		entries, err := c.store.FetchRatings(ctx, username, pageLimit)
		switch {
		case err == nil:
			return entries, nil
		case errors.Is(err, ErrEmptyRatings):
			return nil, err
		case errors.Is(err, ErrUserNotFound):
			// Unknown to the store; scrape below.
		default:
			logging.Warn().Err(err).Str("username", username).Msg("store fetch failed, trying scraper")
		}
	}

	entries, err := c.scraper.FetchRatings(ctx, username, pageLimit)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		// Persist outside the request deadline: the scrape already
		// succeeded and the response should not hinge on the save.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		go func() {
			defer cancel()
			if err := c.store.SaveProfile(saveCtx, username, entries); err != nil {
				logging.Warn().Err(err).Str("username", username).Msg("persisting scraped profile failed")
			} else {
				logging.Info().Str("username", username).Int("ratings", len(entries)).Msg("persisted scraped profile")
			}
		}()
	}
	return entries, nil
}
