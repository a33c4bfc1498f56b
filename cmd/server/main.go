// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package main is the entry point for the Letterbesd backend server.
//
// Letterbesd scrapes a user's public Letterboxd ratings, caches them with a
// TTL, and serves a short personalized movie recommendation list. A
// Postgres ratings store is optional; without it the service runs
// scrape-only and popularity falls back to a built-in seed ranking.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML file, env vars)
//  2. Logging: zerolog structured logging
//  3. Database (optional): pgx connection pool with schema bootstrap
//  4. Source chain: Letterboxd scraper, store-first composite, circuit breaker
//  5. Popularity index: startup refresh plus periodic background refresh
//  6. HTTP server: chi router with rate limiting, CORS and Prometheus metrics
//
// # Configuration
//
// Key environment variables:
//   - HTTP_PORT: Listen port (default 8080)
//   - DATABASE_URL: Postgres DSN, empty disables the store
//   - CACHE_TTL: Snapshot cache TTL (default 5m)
//   - RATE_LIMIT_PER_MINUTE: Per-IP request budget (default 10)
//   - LOG_LEVEL, LOG_FORMAT: Logging settings
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the listener stops
// accepting connections and in-flight requests get the configured shutdown
// timeout to finish.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/antonioacampos/letterbesdbackend/internal/api"
	"github.com/antonioacampos/letterbesdbackend/internal/cache"
	"github.com/antonioacampos/letterbesdbackend/internal/config"
	"github.com/antonioacampos/letterbesdbackend/internal/logging"
	"github.com/antonioacampos/letterbesdbackend/internal/orchestrator"
	"github.com/antonioacampos/letterbesdbackend/internal/popularity"
	"github.com/antonioacampos/letterbesdbackend/internal/recommend"
	"github.com/antonioacampos/letterbesdbackend/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Int("port", cfg.Server.Port).
		Bool("database", cfg.Database.Enabled()).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("Starting Letterbesd backend")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Postgres store. A missing or unreachable database degrades
	// to scrape-only mode instead of refusing to start.
	var store source.Store
	if cfg.Database.Enabled() {
		pg, err := source.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logging.Warn().Err(err).Msg("Database unavailable, running scrape-only")
		} else {
			if err := pg.EnsureSchema(ctx); err != nil {
				logging.Warn().Err(err).Msg("Schema bootstrap failed, running scrape-only")
				pg.Close()
			} else {
				store = pg
				defer pg.Close()
				logging.Info().Msg("Postgres ratings store connected")
			}
		}
	}

	scraper := source.NewLetterboxdClient(
		source.WithBaseURL(cfg.Letterboxd.BaseURL),
		source.WithPageInterval(cfg.Letterboxd.PageInterval),
	)
	src := source.NewBreakerSource("letterboxd", source.NewComposite(store, scraper))

	snapshots := cache.New(cfg.Cache.TTL, cache.WithMaxEntries(cfg.Cache.MaxEntries))

	index := popularity.New(cfg.Database.MinRaters)
	if store != nil {
		refreshCtx, refreshCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := index.Refresh(refreshCtx, store); err != nil {
			logging.Warn().Err(err).Msg("Initial popularity refresh failed, serving seed ranking")
		}
		refreshCancel()
		go index.RefreshLoop(ctx, store, cfg.Recommend.RefreshInterval)
	}

	orch := orchestrator.New(
		snapshots,
		src,
		index,
		recommend.NewRecommender(recommend.NewHeuristicStrategy()),
		orchestrator.WithDeadline(cfg.Recommend.Deadline),
		orchestrator.WithTopN(cfg.Recommend.TopN),
	)

	serverOpts := []api.Option{
		api.WithRateLimit(cfg.RateLimit.RequestsPerMinute),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
	}
	if store != nil {
		serverOpts = append(serverOpts, api.WithDatabase(store))
	}
	apiServer := api.NewServer(orch, snapshots, serverOpts...)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
		_ = server.Close()
	}

	logging.Info().Msg("Application stopped gracefully")
}
