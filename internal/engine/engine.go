// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine is the composition root. It wires the article store, the
// vector projection, the LLM collaborators, and every stage once, and
// exposes the live answer path and the batch jobs built on them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/kb-engine/internal/advisor"
	"github.com/pdiddy/kb-engine/internal/faq"
	"github.com/pdiddy/kb-engine/internal/feedback"
	"github.com/pdiddy/kb-engine/internal/gaps"
	"github.com/pdiddy/kb-engine/internal/index"
	"github.com/pdiddy/kb-engine/internal/llm"
	"github.com/pdiddy/kb-engine/internal/quality"
	"github.com/pdiddy/kb-engine/internal/rank"
	"github.com/pdiddy/kb-engine/internal/search"
	"github.com/pdiddy/kb-engine/internal/store"
	"github.com/pdiddy/kb-engine/internal/suggest"
	"github.com/pdiddy/kb-engine/internal/synthesize"
	"github.com/pdiddy/kb-engine/internal/vectorstore"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// Engine holds the wired components. It is safe for concurrent use.
type Engine struct {
	cfg types.EngineConfig

	store   *store.Store
	vectors *vectorstore.Store

	indexer     *index.Indexer
	searcher    *search.Searcher
	ranker      *rank.Ranker
	synthesizer *synthesize.Synthesizer
	feedback    *feedback.Tracker
	advisor     *advisor.Advisor
	gaps        *gaps.Detector
	suggester   *suggest.Suggester
	faq         *faq.Generator
}

// Open opens the store under cfg.Store.DataDir, builds the configured LLM
// collaborators, and wires the engine.
func Open(ctx context.Context, cfg types.EngineConfig) (*Engine, error) {
	embedder, err := llm.NewEmbedder(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	generator, err := llm.NewGenerator(cfg.LLM)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, err
	}
	e, err := New(st, embedder, generator, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	return e, nil
}

// New wires an engine around an open store. generator may be nil for
// extractive answers. The engine takes ownership of st.
func New(st *store.Store, embedder llm.Embedder, generator llm.Generator, cfg types.EngineConfig) (*Engine, error) {
	vectors, err := vectorstore.New(st.DB(), st.ReadDB())
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	e := &Engine{cfg: cfg, store: st, vectors: vectors}

	var fallback search.Backend
	if cfg.Search.KeywordFallback {
		fallback = search.NewKeywordBackend(st)
	}
	e.indexer = index.New(vectors, embedder, cfg.Index)
	e.searcher = search.New(
		search.NewVectorBackend(vectors, embedder, cfg.Search.SimilarityFloor),
		fallback, st, cfg.Search)
	e.ranker = rank.New(cfg.Rank).Calibrate(cfg.Search.SimilarityFloor, cfg.Search.SimilarityCeiling)
	e.synthesizer = synthesize.New(generator, cfg.Synthesize)
	e.feedback = feedback.New(st, cfg.Feedback)
	e.advisor = advisor.New(cfg.Advisor, cfg.Feedback)
	e.gaps = gaps.New(st, coverage{e}, cfg.Gaps)
	e.suggester = suggest.New(st, cfg.Suggest, cfg.Gaps.SaturationFrequency)
	e.faq = faq.New(st, drafter{e}, cfg.FAQ)
	return e, nil
}

// SetClock replaces the clock of every time-dependent component.
func (e *Engine) SetClock(now func() time.Time) {
	e.store.Now = now
	e.ranker.Now = now
	e.feedback.Now = now
	e.advisor.Now = now
	e.gaps.Now = now
	e.suggester.Now = now
	e.faq.Now = now
}

// Store returns the article store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Config returns the configuration the engine was wired with.
func (e *Engine) Config() types.EngineConfig {
	return e.cfg
}

// Close releases the database.
func (e *Engine) Close() error {
	return e.store.Close()
}

// --- live path ---

// SearchAndSynthesize answers query from the knowledge base within the
// configured request timeout. It never fails: a timeout or an
// infrastructure error yields the insufficient-information answer rather
// than a partial one.
func (e *Engine) SearchAndSynthesize(ctx context.Context, query, category string) types.SynthesizedAnswer {
	if t := e.cfg.Synthesize.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	answer, err := e.answer(ctx, query, category)
	if err != nil {
		slog.Warn("answer unavailable", "query", query, "error", err)
		return synthesize.Insufficient()
	}
	if ctx.Err() != nil {
		slog.Warn("answer timed out", "query", query, "error", ctx.Err())
		return synthesize.Insufficient()
	}
	return answer
}

func (e *Engine) answer(ctx context.Context, query, category string) (types.SynthesizedAnswer, error) {
	ranked, err := e.Search(ctx, query, category, 0)
	if err != nil {
		return types.SynthesizedAnswer{}, err
	}
	return e.synthesizer.Synthesize(ctx, ranked, query), nil
}

// Search returns ranked candidates for query. limit <= 0 uses the
// configured default.
func (e *Engine) Search(ctx context.Context, query, category string, limit int) ([]types.RankedResult, error) {
	candidates, err := e.searcher.Candidates(ctx, search.Query{Text: query, Category: category, Limit: limit})
	if err != nil {
		return nil, err
	}
	return e.ranker.Rank(candidates), nil
}

// RecordFeedback logs one event from a caller and reports whether it
// changed the article counters.
func (e *Engine) RecordFeedback(ctx context.Context, articleID string, eventType types.EventType, actorID string) (bool, error) {
	return e.feedback.Record(ctx, articleID, eventType, actorID)
}

// RecordEvent logs a fully specified event, such as one read from a stream.
func (e *Engine) RecordEvent(ctx context.Context, ev types.FeedbackEvent) (types.FeedbackEvent, error) {
	return e.feedback.RecordEvent(ctx, ev)
}

// FeedbackStats reports feedback totals over the last windowDays days.
func (e *Engine) FeedbackStats(ctx context.Context, windowDays int) (feedback.Stats, error) {
	return e.feedback.Stats(ctx, windowDays)
}

// RebuildFeedback recomputes every article counter from the feedback log.
func (e *Engine) RebuildFeedback(ctx context.Context) (int, error) {
	return e.feedback.Rebuild(ctx)
}

// --- articles and indexing ---

// ImportSummary reports a batch article import.
type ImportSummary struct {
	Total     int
	Created   int
	Updated   int
	Unchanged int
	Failed    int
	Failures  []index.Failure
}

// SaveArticle scores a, stores it, and reindexes it when its text changed.
// The returned result has Success=false with a nil error for articles
// without indexable text.
func (e *Engine) SaveArticle(ctx context.Context, a types.Article) (store.UpsertResult, index.Result, error) {
	a.ID = strings.TrimSpace(a.ID)
	a.QualityScore = quality.Check(a).OverallScore

	up, err := e.store.UpsertArticle(ctx, a)
	if err != nil {
		return up, index.Result{}, err
	}
	if !up.Changed {
		return up, index.Result{ArticleID: a.ID, Success: true}, nil
	}
	res, err := e.indexer.Reindex(ctx, a)
	return up, res, err
}

// ImportArticles saves each article in turn. A failing article is
// recorded and the import continues. Cancellation stops between articles.
func (e *Engine) ImportArticles(ctx context.Context, articles []types.Article, w io.Writer) (ImportSummary, error) {
	if w == nil {
		w = io.Discard
	}
	summary := ImportSummary{Total: len(articles)}
	fail := func(id string, err error) {
		summary.Failed++
		summary.Failures = append(summary.Failures, index.Failure{ArticleID: id, Err: err})
		fmt.Fprintf(w, "failed  %s: %v\n", id, err)
	}

	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(w, "\n%d articles: import interrupted\n", summary.Total)
			return summary, err
		}
		up, res, err := e.SaveArticle(ctx, a)
		switch {
		case err != nil:
			slog.Warn("importing article failed", "article", a.ID, "error", err)
			fail(a.ID, err)
			continue
		case !res.Success:
			fmt.Fprintf(w, "stored  %s (nothing to index)\n", a.ID)
		case up.Changed:
			fmt.Fprintf(w, "indexed %s (%d chunks)\n", a.ID, res.ChunksCreated)
		}
		switch {
		case up.Created:
			summary.Created++
		case up.Changed:
			summary.Updated++
		default:
			summary.Unchanged++
		}
	}

	fmt.Fprintf(w, "\n%d articles: %d created, %d updated, %d unchanged, %d failed\n",
		summary.Total, summary.Created, summary.Updated, summary.Unchanged, summary.Failed)
	return summary, nil
}

// DeleteArticle removes an article and its chunks. It reports whether the
// article existed.
func (e *Engine) DeleteArticle(ctx context.Context, id string) (bool, error) {
	existed, err := e.store.DeleteArticle(ctx, id)
	if err != nil {
		return false, err
	}
	if _, err := e.indexer.Delete(ctx, id); err != nil {
		return existed, err
	}
	return existed, nil
}

// IndexAll indexes the given articles, or every article when ids is empty.
func (e *Engine) IndexAll(ctx context.Context, ids []string, w io.Writer) (index.IndexSummary, error) {
	articles, err := e.articles(ctx, ids)
	if err != nil {
		return index.IndexSummary{}, err
	}
	return e.indexer.IndexMany(ctx, articles, w)
}

// Rebuild drops the vector projection and rebuilds it from the Article
// Store.
func (e *Engine) Rebuild(ctx context.Context, w io.Writer) (index.IndexSummary, error) {
	articles, err := e.store.ListArticles(ctx, "")
	if err != nil {
		return index.IndexSummary{}, err
	}
	return e.indexer.Rebuild(ctx, articles, w)
}

func (e *Engine) articles(ctx context.Context, ids []string) ([]types.Article, error) {
	if len(ids) == 0 {
		return e.store.ListArticles(ctx, "")
	}
	found, err := e.store.GetArticles(ctx, ids)
	if err != nil {
		return nil, err
	}
	var out []types.Article
	var missing []string
	for _, id := range ids {
		a, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, a)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("articles %s: %w", strings.Join(missing, ", "), store.ErrNotFound)
	}
	return out, nil
}

// Consistency compares the Article Store with the vector projection.
type Consistency struct {
	Articles int `json:"articles" yaml:"articles"`
	Indexed  int `json:"indexed" yaml:"indexed"`

	// Unindexed articles have no chunks; Orphaned chunks have no article.
	Unindexed []string `json:"unindexed" yaml:"unindexed"`
	Orphaned  []string `json:"orphaned" yaml:"orphaned"`
}

// Consistent reports whether every article is indexed and no chunk is
// orphaned. Articles without text are expected to have no chunks.
func (c Consistency) Consistent() bool {
	return len(c.Unindexed) == 0 && len(c.Orphaned) == 0
}

// CheckConsistency reports divergence between articles and chunks. A
// divergent projection is repaired with Rebuild.
func (e *Engine) CheckConsistency(ctx context.Context) (Consistency, error) {
	articles, err := e.store.ListArticles(ctx, "")
	if err != nil {
		return Consistency{}, err
	}
	indexed, err := e.vectors.ArticleIDs(ctx)
	if err != nil {
		return Consistency{}, err
	}

	has := make(map[string]bool, len(indexed))
	for _, id := range indexed {
		has[id] = true
	}
	c := Consistency{Articles: len(articles), Unindexed: []string{}, Orphaned: []string{}}
	known := make(map[string]bool, len(articles))
	for _, a := range articles {
		known[a.ID] = true
		switch {
		case has[a.ID]:
			c.Indexed++
		case len(e.indexer.Chunks(a)) > 0:
			c.Unindexed = append(c.Unindexed, a.ID)
		}
	}
	for _, id := range indexed {
		if !known[id] {
			c.Orphaned = append(c.Orphaned, id)
		}
	}
	return c, nil
}

// --- quality and staleness ---

// CheckQuality scores one stored article.
func (e *Engine) CheckQuality(ctx context.Context, id string) (types.QualityReport, error) {
	a, err := e.store.GetArticle(ctx, id)
	if err != nil {
		return types.QualityReport{}, err
	}
	return quality.Check(a), nil
}

// AuditQuality scores every article in category (all when empty), stores
// changed scores, and returns the reports weakest first.
func (e *Engine) AuditQuality(ctx context.Context, category string) ([]types.QualityReport, error) {
	articles, err := e.store.ListArticles(ctx, category)
	if err != nil {
		return nil, err
	}
	reports := make([]types.QualityReport, 0, len(articles))
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r := quality.Check(a)
		if r.OverallScore != a.QualityScore {
			if err := e.store.SetQualityScore(ctx, a.ID, r.OverallScore); err != nil {
				return reports, err
			}
		}
		reports = append(reports, r)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		if reports[i].OverallScore != reports[j].OverallScore {
			return reports[i].OverallScore < reports[j].OverallScore
		}
		return reports[i].ArticleID < reports[j].ArticleID
	})
	return reports, nil
}

// CheckNeedsUpdate returns the update recommendation for one article.
func (e *Engine) CheckNeedsUpdate(ctx context.Context, id string) (types.UpdateRecommendation, error) {
	a, err := e.store.GetArticle(ctx, id)
	if err != nil {
		return types.UpdateRecommendation{}, err
	}
	return e.advisor.Check(a), nil
}

// AdviseAll returns recommendations for every article in category that
// needs an update, most urgent first.
func (e *Engine) AdviseAll(ctx context.Context, category string) ([]types.UpdateRecommendation, error) {
	articles, err := e.store.ListArticles(ctx, category)
	if err != nil {
		return nil, err
	}
	return e.advisor.CheckAll(articles), nil
}

// --- content loop ---

// ImportInteractions adds tickets and conversations to the interaction log.
func (e *Engine) ImportInteractions(ctx context.Context, items []types.Interaction) (int, error) {
	return e.store.AddInteractions(ctx, items)
}

// DetectGaps mines unanswered questions from the last lookbackDays days.
func (e *Engine) DetectGaps(ctx context.Context, lookbackDays, minFrequency int) ([]types.KnowledgeGap, error) {
	return e.gaps.Detect(ctx, lookbackDays, minFrequency)
}

// Suggest merges detected gaps with recurring ticket subjects and stores
// the result as the suggestion read model.
func (e *Engine) Suggest(ctx context.Context, detected []types.KnowledgeGap, lookbackDays int) ([]types.ArticleSuggestion, error) {
	suggestions, err := e.suggester.Suggest(ctx, detected, lookbackDays)
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return suggestions, nil
	}
	if err := e.store.SaveSuggestions(ctx, suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// GenerateFAQ builds FAQ candidates and stores them as drafts or pending
// review. When interrupted, the candidates drafted so far are still saved.
func (e *Engine) GenerateFAQ(ctx context.Context, lookbackDays, minFrequency, limit int) ([]types.FAQCandidate, error) {
	candidates, genErr := e.faq.Generate(ctx, lookbackDays, minFrequency, limit)
	if len(candidates) > 0 {
		if err := e.store.SaveFAQCandidates(context.WithoutCancel(ctx), candidates); err != nil {
			return nil, errors.Join(genErr, err)
		}
	}
	return candidates, genErr
}

// coverage answers the gap detector's "is this already covered" question
// with a knowledge-base search.
type coverage struct{ e *Engine }

func (c coverage) Covered(ctx context.Context, question string) (bool, error) {
	results, err := c.e.searcher.Search(ctx, search.Query{Text: question, Limit: 1})
	if err != nil {
		return false, err
	}
	// Keyword scores are positional, not similarities.
	if len(results) == 0 || results[0].Backend == "keyword" {
		return false, nil
	}
	return results[0].SimilarityScore >= c.e.cfg.Gaps.CoverageThreshold, nil
}

// drafter grounds FAQ drafts in the knowledge base. Batch drafting has no
// request timeout.
type drafter struct{ e *Engine }

func (d drafter) Draft(ctx context.Context, question string) (types.SynthesizedAnswer, error) {
	return d.e.answer(ctx, question, "")
}
