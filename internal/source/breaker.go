// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/antonioacampos/letterbesdbackend/internal/logging"
	"github.com/antonioacampos/letterbesdbackend/internal/metrics"
	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

// BreakerSource wraps a Source with a circuit breaker so a dead Letterboxd
// or database degrades to immediate ErrSourceUnreachable failures instead
// of a timeout per request. The orchestrator then falls back to the
// popularity index without burning its deadline.
//
// The breaker uses real time for its interval and timeout calculations;
// tests exercise the wrapped source directly.
type BreakerSource struct {
	source Source
	cb     *gobreaker.CircuitBreaker[[]models.RatingEntry]
	probe  *gobreaker.CircuitBreaker[bool]
	name   string
}

// NewBreakerSource wraps source. The circuit opens after a 60% failure
// rate over at least 10 requests, and probes recovery after 2 minutes.
func NewBreakerSource(name string, source Source) *BreakerSource {
	metrics.SourceBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", breakerStateString(from)).
				Str("to", breakerStateString(to)).
				Msg("circuit breaker state transition")
			metrics.SourceBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
		// A definitive not-found or empty profile is an answer, not a
		// source failure; only unreachability should trip the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrEmptyRatings)
		},
	}

	return &BreakerSource{
		source: source,
		cb:     gobreaker.NewCircuitBreaker[[]models.RatingEntry](settings),
		probe:  gobreaker.NewCircuitBreaker[bool](settings),
		name:   name,
	}
}

// Exists probes through the breaker.
func (b *BreakerSource) Exists(ctx context.Context, username string) (bool, error) {
	exists, err := b.probe.Execute(func() (bool, error) {
		return b.source.Exists(ctx, username)
	})
	if err != nil {
		return false, b.translate(err)
	}
	return exists, nil
}

// FetchRatings fetches through the breaker.
func (b *BreakerSource) FetchRatings(ctx context.Context, username string, pageLimit int) ([]models.RatingEntry, error) {
	entries, err := b.cb.Execute(func() ([]models.RatingEntry, error) {
		return b.source.FetchRatings(ctx, username, pageLimit)
	})
	if err != nil {
		return nil, b.translate(err)
	}
	return entries, nil
}

// translate maps breaker rejections onto the source error taxonomy.
func (b *BreakerSource) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit %s open", ErrSourceUnreachable, b.name)
	}
	return err
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
