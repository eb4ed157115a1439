// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index maintains the vector-store projection of articles. Every
// write replaces an article's whole chunk set in one transaction, so a
// reader sees either the old set or the new one.
package index

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/kb-engine/internal/llm"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// ChunkWriter is the write side of the vector store.
type ChunkWriter interface {
	Replace(ctx context.Context, articleID string, chunks []types.Chunk) error
	Delete(ctx context.Context, articleID string) (int, error)
	Clear(ctx context.Context) error
}

// Result reports the outcome of indexing one article.
type Result struct {
	ArticleID     string
	ChunksCreated int

	// Success is false when the article had no indexable text or the
	// embedding call failed.
	Success bool
	Reason  string
}

// Failure is one failed article in a batch.
type Failure struct {
	ArticleID string
	Err       error
}

// IndexSummary holds counts from a batch indexing run.
type IndexSummary struct {
	Total      int
	Successful int
	Failed     int
	Failures   []Failure
}

// HasFailures reports whether any article failed.
func (s IndexSummary) HasFailures() bool {
	return s.Failed > 0
}

// ErrNoText marks an article with neither title nor content.
var ErrNoText = errors.New("no indexable text")

const lockStripes = 64

// Indexer chunks, embeds and stores articles.
type Indexer struct {
	store    ChunkWriter
	embedder llm.Embedder
	cfg      types.IndexConfig

	locks [lockStripes]sync.Mutex
}

// New creates an Indexer.
func New(store ChunkWriter, embedder llm.Embedder, cfg types.IndexConfig) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Indexer{store: store, embedder: embedder, cfg: cfg}
}

// lock serializes writes for one article id.
func (ix *Indexer) lock(articleID string) func() {
	h := fnv.New32a()
	h.Write([]byte(articleID))
	mu := &ix.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Chunks builds the chunk records for an article without vectors. A titled
// article gets one extra title-only chunk after its content chunks, so a
// short question scores against the title alone rather than being diluted
// by the body. Blank content leaves only the title chunk.
func (ix *Indexer) Chunks(a types.Article) []types.Chunk {
	texts := ChunkText(a.Content, ix.cfg.SingleChunkWords, ix.cfg.MaxChunkWords)
	if title := strings.TrimSpace(a.Title); title != "" && !(len(texts) == 1 && texts[0] == title) {
		texts = append(texts, title)
	}
	chunks := make([]types.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = types.Chunk{
			ArticleID: a.ID,
			Index:     i,
			Text:      text,
			Title:     a.Title,
			Category:  a.Category,
		}
	}
	return chunks
}

// Index embeds the article and replaces its chunk set. An article with
// no text yields Success=false and a nil error. The returned error is
// non-nil only for embedding or storage failures.
func (ix *Indexer) Index(ctx context.Context, a types.Article) (Result, error) {
	if a.ID == "" {
		return Result{}, fmt.Errorf("article id is required")
	}
	unlock := ix.lock(a.ID)
	defer unlock()
	return ix.index(ctx, a)
}

// Reindex is Delete followed by Index, held under the article lock. The
// swap itself is one transaction. When embedding fails the old chunks are
// still removed so stale content is never served.
func (ix *Indexer) Reindex(ctx context.Context, a types.Article) (Result, error) {
	if a.ID == "" {
		return Result{}, fmt.Errorf("article id is required")
	}
	unlock := ix.lock(a.ID)
	defer unlock()

	res, err := ix.index(ctx, a)
	if err != nil {
		if _, delErr := ix.store.Delete(context.WithoutCancel(ctx), a.ID); delErr != nil {
			return res, errors.Join(err, fmt.Errorf("removing stale chunks: %w", delErr))
		}
	}
	return res, err
}

func (ix *Indexer) index(ctx context.Context, a types.Article) (Result, error) {
	res := Result{ArticleID: a.ID}
	chunks := ix.Chunks(a)
	if len(chunks) == 0 {
		if _, err := ix.store.Delete(ctx, a.ID); err != nil {
			return res, fmt.Errorf("clearing chunks for %s: %w", a.ID, err)
		}
		res.Reason = ErrNoText.Error()
		return res, nil
	}

	inputs := make([]string, len(chunks))
	for i, c := range chunks {
		inputs[i] = embeddingInput(c)
	}
	vecs, err := ix.embedder.Embed(ctx, inputs)
	if err != nil {
		res.Reason = "embedding failed"
		return res, fmt.Errorf("embedding %s: %w", a.ID, err)
	}
	if len(vecs) != len(chunks) {
		res.Reason = "embedding failed"
		return res, fmt.Errorf("embedding %s: got %d vectors for %d chunks", a.ID, len(vecs), len(chunks))
	}
	for i := range chunks {
		chunks[i].Vector = vecs[i]
	}

	if err := ix.store.Replace(ctx, a.ID, chunks); err != nil {
		res.Reason = "storage failed"
		return res, fmt.Errorf("storing chunks for %s: %w", a.ID, err)
	}
	res.ChunksCreated = len(chunks)
	res.Success = true
	return res, nil
}

// embeddingInput prefixes the title so short chunks keep their topic.
func embeddingInput(c types.Chunk) string {
	if c.Title == "" || c.Text == strings.TrimSpace(c.Title) {
		return c.Text
	}
	return c.Title + "\n\n" + c.Text
}

// Delete removes every chunk of an article. It reports whether any chunk
// existed.
func (ix *Indexer) Delete(ctx context.Context, articleID string) (bool, error) {
	unlock := ix.lock(articleID)
	defer unlock()

	n, err := ix.store.Delete(ctx, articleID)
	if err != nil {
		return false, fmt.Errorf("deleting chunks for %s: %w", articleID, err)
	}
	return n > 0, nil
}

// IndexMany indexes articles concurrently. Each article is independent: a
// failure is recorded in the summary and the batch continues. Once ctx is
// done no new article is started; completed work stays in place and the
// context error is returned with the partial summary.
func (ix *Indexer) IndexMany(ctx context.Context, articles []types.Article, w io.Writer) (IndexSummary, error) {
	if w == nil {
		w = io.Discard
	}
	var (
		mu      sync.Mutex
		summary = IndexSummary{Total: len(articles)}
	)
	fail := func(id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		summary.Failed++
		summary.Failures = append(summary.Failures, Failure{ArticleID: id, Err: err})
		fmt.Fprintf(w, "failed  %s: %v\n", id, err)
	}

	p := pool.New().WithMaxGoroutines(ix.cfg.Workers)
	for _, a := range articles {
		if ctx.Err() != nil {
			fail(a.ID, ctx.Err())
			continue
		}
		p.Go(func() {
			if ctx.Err() != nil {
				fail(a.ID, ctx.Err())
				return
			}
			res, err := ix.Index(ctx, a)
			switch {
			case err != nil:
				slog.Warn("indexing failed", "article", a.ID, "error", err)
				fail(a.ID, err)
			case !res.Success:
				fail(a.ID, ErrNoText)
			default:
				mu.Lock()
				summary.Successful++
				fmt.Fprintf(w, "indexed %s (%d chunks)\n", a.ID, res.ChunksCreated)
				mu.Unlock()
			}
		})
	}
	p.Wait()

	fmt.Fprintf(w, "\n%d articles: %d indexed, %d failed\n", summary.Total, summary.Successful, summary.Failed)
	return summary, ctx.Err()
}

// Rebuild drops all vector state and reindexes articles from scratch.
func (ix *Indexer) Rebuild(ctx context.Context, articles []types.Article, w io.Writer) (IndexSummary, error) {
	if err := ix.store.Clear(ctx); err != nil {
		return IndexSummary{}, fmt.Errorf("clearing vector store: %w", err)
	}
	return ix.IndexMany(ctx, articles, w)
}
