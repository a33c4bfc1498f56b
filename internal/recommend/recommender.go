// Letterbesd Backend - Letterboxd Ratings Cache and Movie Recommendations
// Copyright 2026 Antonio Campos (antonioacampos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/antonioacampos/letterbesdbackend

package recommend

import (
	"sort"

	"github.com/antonioacampos/letterbesdbackend/internal/models"
)

// CandidatePool is how many top popularity entries are considered per
// request after excluding already-rated movies.
const CandidatePool = 15

// DefaultTopN is the recommendation list length served by the API.
const DefaultTopN = 5

// Recommender scores popularity candidates against a user snapshot.
type Recommender struct {
	strategy ScoringStrategy
}

// NewRecommender builds a recommender. A nil strategy falls back to the
// heuristic one.
func NewRecommender(strategy ScoringStrategy) *Recommender {
	if strategy == nil {
		strategy = NewHeuristicStrategy()
	}
	return &Recommender{strategy: strategy}
}

// StrategyName reports the active scoring strategy.
func (r *Recommender) StrategyName() string { return r.strategy.Name() }

// Recommend returns up to n recommendations drawn from candidates, never
// including a movie present in the snapshot. With an empty snapshot the
// candidates pass through in popularity order.
//
// The pool is the top CandidatePool entries minus the exclusion set, so a
// user who has rated the entire top of the index gets a short or empty
// result rather than deeper-ranked substitutes.
func (r *Recommender) Recommend(snapshot models.UserSnapshot, candidates []models.PopularityEntry, n int) []models.Recommendation {
	if n <= 0 {
		n = DefaultTopN
	}

	if len(candidates) > CandidatePool {
		candidates = candidates[:CandidatePool]
	}
	rated := snapshot.RatedSet()
	pool := make([]models.PopularityEntry, 0, len(candidates))
	for _, c := range candidates {
		if _, seen := rated[c.Slug]; seen {
			continue
		}
		pool = append(pool, c)
	}

	if len(snapshot.Ratings) == 0 {
		return fromPopularity(pool, n)
	}

	profile := BuildProfile(snapshot)
	recs := make([]models.Recommendation, 0, len(pool))
	for _, c := range pool {
		recs = append(recs, models.Recommendation{
			Slug:  c.Slug,
			Title: c.Title,
			Score: r.strategy.Score(c, profile),
			Rank:  c.Rank,
		})
	}

	// Ties resolve by popularity rank so the output is deterministic.
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Rank < recs[j].Rank
	})

	if len(recs) > n {
		recs = recs[:n]
	}
	for i := range recs {
		recs[i].Rank = i + 1
	}
	return recs
}

// FromPopularity converts raw popularity entries into a recommendation
// list, used when no personalization is possible.
func FromPopularity(candidates []models.PopularityEntry, n int) []models.Recommendation {
	if n <= 0 {
		n = DefaultTopN
	}
	return fromPopularity(candidates, n)
}

func fromPopularity(candidates []models.PopularityEntry, n int) []models.Recommendation {
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	recs := make([]models.Recommendation, 0, len(candidates))
	for i, c := range candidates {
		recs = append(recs, models.Recommendation{
			Slug:  c.Slug,
			Title: c.Title,
			Score: c.Score,
			Rank:  i + 1,
		})
	}
	return recs
}
