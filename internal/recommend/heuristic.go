// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package recommend

import (
	"math"

	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

// HeuristicStrategy boosts candidates whose popular score sits close to the
// user's mean rating, with extra affinity bonuses for pronounced high or
// low raters. Multipliers compound.
type HeuristicStrategy struct{}

// NewHeuristicStrategy returns the default scoring strategy.
func NewHeuristicStrategy() *HeuristicStrategy {
	return &HeuristicStrategy{}
}

func (s *HeuristicStrategy) Name() string { return "heuristic" }

// Score starts from the candidate's popular score and applies proximity
// and tendency multipliers.
func (s *HeuristicStrategy) Score(candidate models.PopularityEntry, profile TasteProfile) float64 {
	score := candidate.Score

	distance := math.Abs(candidate.Score - profile.Mean)
	switch {
	case distance < 0.5:
		score *= 1.2
	case distance < 1.0:
		score *= 1.1
	}

	switch profile.Tendency {
	case TendencyHigh:
		if candidate.Score >= 4.0 {
			score *= 1.15
		}
	case TendencyLow:
		if candidate.Score <= 3.5 {
			score *= 1.1
		}
	}

	if candidate.Score >= 4.5 {
		score *= 1.05
	}

	return score
}
