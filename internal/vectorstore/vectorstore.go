// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vectorstore holds the chunk projection of the Article Store:
// one row per chunk with its metadata and embedding. It can always be
// rebuilt from articles and has no independent source of truth.
//
// Embeddings are stored in pgvector's text encoding so the table can move
// to a Postgres vector column without a format change. Similarity is
// cosine, computed in process.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/pgvector/pgvector-go"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// Filter narrows a query. An empty Category matches all chunks.
type Filter struct {
	Category string
}

// Match is one chunk scored against a query vector.
type Match struct {
	Chunk types.Chunk
	Score float64
}

// Store reads and writes the chunks table. Writes go through the
// single-writer pool shared with the Article Store.
type Store struct {
	writer *sql.DB
	reader *sql.DB
}

// New creates the chunks table if needed. reader may equal writer.
func New(writer, reader *sql.DB) (*Store, error) {
	if reader == nil {
		reader = writer
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			article_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			text TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			embedding TEXT NOT NULL,
			PRIMARY KEY (article_id, chunk_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_category ON chunks(category)`,
	}
	for _, stmt := range statements {
		if _, err := writer.Exec(stmt); err != nil {
			return nil, fmt.Errorf("creating chunks table: %w", err)
		}
	}
	return &Store{writer: writer, reader: reader}, nil
}

// Upsert inserts chunks, replacing rows with the same (article, index).
func (s *Store) Upsert(ctx context.Context, chunks []types.Chunk) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes every chunk of the article and returns how many existed.
func (s *Store) Delete(ctx context.Context, articleID string) (int, error) {
	res, err := s.writer.ExecContext(ctx, `DELETE FROM chunks WHERE article_id = ?`, articleID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for %s: %w", articleID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Replace swaps the article's chunk set for chunks in one transaction.
// Readers see either the old set or the new one, never a mix.
func (s *Store) Replace(ctx context.Context, articleID string, chunks []types.Chunk) error {
	for _, c := range chunks {
		if c.ArticleID != articleID {
			return fmt.Errorf("chunk %d belongs to %s, not %s", c.Index, c.ArticleID, articleID)
		}
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("deleting chunks for %s: %w", articleID, err)
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// Clear removes every chunk.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.writer.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (article_id, chunk_index, text, title, category, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Vector) == 0 {
			return fmt.Errorf("chunk %s/%d has no embedding", c.ArticleID, c.Index)
		}
		_, err := stmt.ExecContext(ctx,
			c.ArticleID, c.Index, c.Text, c.Title, c.Category, pgvector.NewVector(c.Vector))
		if err != nil {
			return fmt.Errorf("inserting chunk %s/%d: %w", c.ArticleID, c.Index, err)
		}
	}
	return nil
}

// Query scores every chunk passing filter against vector and returns the
// best limit matches by descending score, ties broken by article id and
// chunk index. Scores are cosine similarity clamped to [0, 1].
func (s *Store) Query(ctx context.Context, vector []float32, filter Filter, limit int) ([]Match, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, nil
	}

	query := `SELECT article_id, chunk_index, text, title, category, embedding FROM chunks`
	var args []any
	if filter.Category != "" {
		query += ` WHERE category = ?`
		args = append(args, filter.Category)
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			c   types.Chunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&c.ArticleID, &c.Index, &c.Text, &c.Title, &c.Category, &emb); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Vector = emb.Slice()
		score := math.Max(0, math.Min(1, Cosine(vector, c.Vector)))
		matches = append(matches, Match{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Chunk.ArticleID != matches[j].Chunk.ArticleID {
			return matches[i].Chunk.ArticleID < matches[j].Chunk.ArticleID
		}
		return matches[i].Chunk.Index < matches[j].Chunk.Index
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Chunks returns the stored chunks of one article in index order.
func (s *Store) Chunks(ctx context.Context, articleID string) ([]types.Chunk, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT article_id, chunk_index, text, title, category, embedding
		 FROM chunks WHERE article_id = ? ORDER BY chunk_index`, articleID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks for %s: %w", articleID, err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var (
			c   types.Chunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&c.ArticleID, &c.Index, &c.Text, &c.Title, &c.Category, &emb); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Vector = emb.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the total number of chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.reader.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// ArticleIDs returns the distinct article ids present in the projection.
func (s *Store) ArticleIDs(ctx context.Context) ([]string, error) {
	rows, err := s.reader.QueryContext(ctx, `SELECT DISTINCT article_id FROM chunks ORDER BY article_id`)
	if err != nil {
		return nil, fmt.Errorf("listing chunk articles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning article id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
