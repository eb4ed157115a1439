// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SearchResult is a candidate article returned for a query. Results are
// transient and never persisted.
type SearchResult struct {
	ArticleID string `json:"article_id" yaml:"article_id"`

	// SimilarityScore is the best chunk similarity for the article, in [0, 1].
	SimilarityScore float64 `json:"similarity_score" yaml:"similarity_score"`

	Category string `json:"category" yaml:"category"`
	Title    string `json:"title" yaml:"title"`

	// Backend names the search strategy that produced the result
	// ("vector" or "keyword").
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
}

// Candidate is a search result annotated with the article fields the ranker
// needs. The searcher fills Article from the Article Store.
type Candidate struct {
	SearchResult
	Article Article `json:"article" yaml:"article"`
}

// RankedResult is a candidate with its final composite score. A ranked list
// is sorted by RankScore descending, then UpdatedAt descending, then
// ArticleID ascending.
type RankedResult struct {
	Candidate

	RankScore float64 `json:"rank_score" yaml:"rank_score"`

	// Components exposes the normalized signals behind RankScore.
	Relevance   float64 `json:"relevance" yaml:"relevance"`
	Quality     float64 `json:"quality" yaml:"quality"`
	Helpfulness float64 `json:"helpfulness" yaml:"helpfulness"`
	Recency     float64 `json:"recency" yaml:"recency"`
}

// UpdatedAt is a shortcut for the underlying article timestamp.
func (r RankedResult) UpdatedAt() time.Time {
	return r.Article.UpdatedAt
}

// SynthesizedAnswer is the final grounded answer returned to callers.
type SynthesizedAnswer struct {
	Answer string `json:"answer" yaml:"answer"`

	// Sources lists the article IDs the answer is grounded in.
	Sources []string `json:"sources" yaml:"sources"`

	// Confidence is in [0, 1]; 0 means no grounded answer was available.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Degraded is set when a collaborator failed and a fallback was used.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}
