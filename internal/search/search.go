// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search retrieves candidate articles for a query. The vector
// backend is primary; the keyword backend answers when the embedding
// collaborator fails.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/kb-engine/internal/llm"
	"github.com/pdiddy/kb-engine/internal/vectorstore"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// Query holds the search parameters. An empty Category matches every
// category.
type Query struct {
	Text     string
	Category string
	Limit    int
}

// Backend is one retrieval strategy. Results are ordered by descending
// similarity and hold at most one entry per article.
type Backend interface {
	Name() string
	Search(ctx context.Context, q Query) ([]types.SearchResult, error)
}

// ChunkQuerier is the read side of the vector store.
type ChunkQuerier interface {
	Query(ctx context.Context, vector []float32, filter vectorstore.Filter, limit int) ([]vectorstore.Match, error)
}

// KeywordSearcher runs full-text search over articles.
type KeywordSearcher interface {
	KeywordSearch(ctx context.Context, query, category string, limit int) ([]types.SearchResult, error)
}

// ArticleLookup loads articles by id.
type ArticleLookup interface {
	GetArticles(ctx context.Context, ids []string) (map[string]types.Article, error)
}

// chunkFanout is how many chunks per requested article the vector backend
// reads first. The read doubles while long articles crowd out distinct
// ones.
const chunkFanout = 4

// VectorBackend embeds the query and scores it against stored chunks.
type VectorBackend struct {
	chunks   ChunkQuerier
	embedder llm.Embedder
	floor    float64
}

// NewVectorBackend returns a vector backend that drops matches scoring
// below floor.
func NewVectorBackend(chunks ChunkQuerier, embedder llm.Embedder, floor float64) *VectorBackend {
	return &VectorBackend{chunks: chunks, embedder: embedder, floor: floor}
}

// Name returns "vector".
func (b *VectorBackend) Name() string { return "vector" }

// Search returns one result per article scored by its best chunk. It
// reads chunks until q.Limit distinct articles are found, the matches
// drop below the floor, or the store has no more chunks.
func (b *VectorBackend) Search(ctx context.Context, q Query) ([]types.SearchResult, error) {
	vec, err := llm.EmbedOne(ctx, b.embedder, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	fetch := q.Limit * chunkFanout
	for {
		matches, err := b.chunks.Query(ctx, vec, vectorstore.Filter{Category: q.Category}, fetch)
		if err != nil {
			return nil, err
		}
		results, belowFloor := b.collapse(matches, q.Limit)
		if len(results) == q.Limit || belowFloor || len(matches) < fetch {
			return results, nil
		}
		fetch *= 2
	}
}

// collapse keeps the best chunk of each article, in match order, up to
// limit articles. belowFloor reports that a match under the floor ended
// the scan.
func (b *VectorBackend) collapse(matches []vectorstore.Match, limit int) (results []types.SearchResult, belowFloor bool) {
	results = []types.SearchResult{}
	seen := make(map[string]bool)
	for _, m := range matches {
		if m.Score < b.floor || m.Score == 0 {
			return results, true
		}
		if seen[m.Chunk.ArticleID] {
			continue
		}
		seen[m.Chunk.ArticleID] = true
		results = append(results, types.SearchResult{
			ArticleID:       m.Chunk.ArticleID,
			SimilarityScore: m.Score,
			Category:        m.Chunk.Category,
			Title:           m.Chunk.Title,
			Backend:         b.Name(),
		})
		if len(results) == limit {
			break
		}
	}
	return results, false
}

// KeywordBackend queries the Article Store's full-text index.
type KeywordBackend struct {
	store KeywordSearcher
}

// NewKeywordBackend wraps a full-text searcher.
func NewKeywordBackend(store KeywordSearcher) *KeywordBackend {
	return &KeywordBackend{store: store}
}

// Name returns "keyword".
func (b *KeywordBackend) Name() string { return "keyword" }

// Search delegates to the store.
func (b *KeywordBackend) Search(ctx context.Context, q Query) ([]types.SearchResult, error) {
	return b.store.KeywordSearch(ctx, q.Text, q.Category, q.Limit)
}

// Searcher runs the primary backend and degrades to the fallback when the
// primary fails.
type Searcher struct {
	primary  Backend
	fallback Backend
	articles ArticleLookup
	limit    int
}

// New creates a Searcher. fallback may be nil to disable degradation.
func New(primary, fallback Backend, articles ArticleLookup, cfg types.SearchConfig) *Searcher {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	return &Searcher{primary: primary, fallback: fallback, articles: articles, limit: limit}
}

// Search returns at most q.Limit results ordered by descending
// similarity. No match is an empty slice, never an error. Every result
// matches q.Category when it is set.
func (s *Searcher) Search(ctx context.Context, q Query) ([]types.SearchResult, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return []types.SearchResult{}, nil
	}
	if q.Limit <= 0 {
		q.Limit = s.limit
	}

	results, err := s.primary.Search(ctx, q)
	if err != nil {
		if s.fallback == nil || ctx.Err() != nil {
			return nil, fmt.Errorf("%s search: %w", s.primary.Name(), err)
		}
		slog.Warn("search backend failed, falling back",
			"backend", s.primary.Name(), "fallback", s.fallback.Name(), "error", err)
		var fbErr error
		results, fbErr = s.fallback.Search(ctx, q)
		if fbErr != nil {
			return nil, errors.Join(
				fmt.Errorf("%s search: %w", s.primary.Name(), err),
				fmt.Errorf("%s search: %w", s.fallback.Name(), fbErr))
		}
	}

	out := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		if q.Category != "" && r.Category != q.Category {
			continue
		}
		out = append(out, r)
		if len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Candidates runs Search and annotates each result with its article.
// Results whose article no longer exists are dropped and logged; the
// vector store is a projection and a rebuild removes them.
func (s *Searcher) Candidates(ctx context.Context, q Query) ([]types.Candidate, error) {
	results, err := s.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	candidates := []types.Candidate{}
	if len(results) == 0 {
		return candidates, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ArticleID
	}
	articles, err := s.articles.GetArticles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading candidate articles: %w", err)
	}

	for _, r := range results {
		a, ok := articles[r.ArticleID]
		if !ok {
			slog.Warn("search hit has no article; rebuild the index", "article", r.ArticleID)
			continue
		}
		candidates = append(candidates, types.Candidate{SearchResult: r, Article: a})
	}
	return candidates, nil
}
