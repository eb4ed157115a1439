// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank orders search candidates by a weighted blend of relevance,
// structural quality, reader helpfulness and recency.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// Ranker computes composite scores. Weights come from configuration.
type Ranker struct {
	cfg types.RankConfig

	// floor and ceiling bound raw vector similarity; see Calibrate.
	floor, ceiling float64

	// Now is the clock used for recency; tests replace it.
	Now func() time.Time
}

// New creates a Ranker.
func New(cfg types.RankConfig) *Ranker {
	if cfg.HalfLifeDays <= 0 {
		cfg.HalfLifeDays = 180
	}
	return &Ranker{cfg: cfg, Now: time.Now}
}

// Calibrate rescales vector similarity so that floor maps to relevance 0
// and ceiling to relevance 1. Keyword results are positional and pass
// through unchanged.
func (r *Ranker) Calibrate(floor, ceiling float64) *Ranker {
	if ceiling > floor {
		r.floor, r.ceiling = floor, ceiling
	}
	return r
}

// Relevance returns the calibrated relevance of a search result.
func (r *Ranker) Relevance(res types.SearchResult) float64 {
	if r.ceiling <= r.floor || res.Backend != "vector" {
		return clamp01(res.SimilarityScore)
	}
	return clamp01((res.SimilarityScore - r.floor) / (r.ceiling - r.floor))
}

// RecencyDecay maps article age to (0, 1]: 1 for an article updated now,
// 0.5 after one half-life. Future timestamps count as age zero.
func RecencyDecay(updatedAt, now time.Time, halfLifeDays float64) float64 {
	if updatedAt.IsZero() {
		return 0
	}
	ageDays := now.Sub(updatedAt).Hours() / 24
	if ageDays <= 0 {
		return 1
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// Score fills the signal components and RankScore for one candidate.
func (r *Ranker) Score(c types.Candidate, now time.Time) types.RankedResult {
	res := types.RankedResult{
		Candidate:   c,
		Relevance:   r.Relevance(c.SearchResult),
		Quality:     clamp01(float64(c.Article.QualityScore) / 100),
		Helpfulness: clamp01(c.Article.HelpfulnessRatio),
		Recency:     RecencyDecay(c.Article.UpdatedAt, now, r.cfg.HalfLifeDays),
	}
	res.RankScore = r.cfg.RelevanceWeight*res.Relevance +
		r.cfg.QualityWeight*res.Quality +
		r.cfg.HelpfulnessWeight*res.Helpfulness +
		r.cfg.RecencyWeight*res.Recency
	return res
}

// Rank scores candidates and sorts them by RankScore descending, then
// updated_at descending, then article id ascending. The input is not
// modified. No candidates yields an empty slice.
func (r *Ranker) Rank(candidates []types.Candidate) []types.RankedResult {
	now := r.Now()
	ranked := make([]types.RankedResult, len(candidates))
	for i, c := range candidates {
		ranked[i] = r.Score(c, now)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.RankScore != b.RankScore {
			return a.RankScore > b.RankScore
		}
		if !a.UpdatedAt().Equal(b.UpdatedAt()) {
			return a.UpdatedAt().After(b.UpdatedAt())
		}
		return a.ArticleID < b.ArticleID
	})
	return ranked
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
