// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

// Package recommend turns a user's rating snapshot plus the popularity
// ranking into a short personalized recommendation list. Scoring is pure:
// same snapshot and same candidates always yield the same output.
package recommend

import "github.com/antonioacampos/letterbesdbackend/internal/models"

// Tendency classifies how a user rates relative to the scale midpoint.
type Tendency string

const (
	TendencyHigh    Tendency = "high"
	TendencyLow     Tendency = "low"
	TendencyNeutral Tendency = "neutral"
)

// TasteProfile summarizes a rating snapshot for scoring.
type TasteProfile struct {
	Mean     float64
	Tendency Tendency
}

// BuildProfile derives a taste profile from a snapshot. A user tends high
// when more than half of their individual ratings are 4.0 or above, and
// low otherwise. Only an empty snapshot is neutral.
func BuildProfile(snapshot models.UserSnapshot) TasteProfile {
	profile := TasteProfile{Mean: snapshot.MeanRating(), Tendency: TendencyNeutral}
	if len(snapshot.Ratings) == 0 {
		return profile
	}

	var high int
	for _, r := range snapshot.Ratings {
		if r.Rating >= 4.0 {
			high++
		}
	}
	if high*2 > len(snapshot.Ratings) {
		profile.Tendency = TendencyHigh
	} else {
		profile.Tendency = TendencyLow
	}
	return profile
}

// ScoringStrategy scores a popularity candidate against a taste profile.
// Implementations must be deterministic and side-effect free.
type ScoringStrategy interface {
	Name() string
	Score(candidate models.PopularityEntry, profile TasteProfile) float64
}
