// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kb-engine/internal/cluster"
	"github.com/pdiddy/kb-engine/pkg/types"
)

const articleColumns = `id, title, content, category, quality_score, helpfulness_ratio,
	view_count, helpful_count, not_helpful_count, created_at, updated_at`

// UpsertResult reports what UpsertArticle changed.
type UpsertResult struct {
	Created bool

	// Changed is set when title, content, or category differ from the
	// stored article. Chunks must be regenerated when it is true.
	Changed bool
}

// UpsertArticle inserts a or updates its editable fields. updated_at moves
// only when title, content, or category change; it is taken from
// a.UpdatedAt when set and the clock otherwise. QualityScore is written as
// given. Feedback counters are never taken from a: they belong to the
// feedback log.
func (s *Store) UpsertArticle(ctx context.Context, a types.Article) (UpsertResult, error) {
	if strings.TrimSpace(a.ID) == "" {
		return UpsertResult{}, fmt.Errorf("article id is required")
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var title, content, category string
	err = tx.QueryRowContext(ctx,
		`SELECT title, content, category FROM articles WHERE id = ?`, a.ID,
	).Scan(&title, &content, &category)

	now := s.now()
	updatedAt := now
	if !a.UpdatedAt.IsZero() {
		updatedAt = a.UpdatedAt
	}

	var result UpsertResult
	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt := updatedAt
		if !a.CreatedAt.IsZero() {
			createdAt = a.CreatedAt
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO articles (id, title, content, category, quality_score, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Title, a.Content, a.Category, a.QualityScore,
			formatTime(createdAt), formatTime(updatedAt),
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("inserting article %s: %w", a.ID, err)
		}
		result = UpsertResult{Created: true, Changed: true}

	case err != nil:
		return UpsertResult{}, fmt.Errorf("loading article %s: %w", a.ID, err)

	case title != a.Title || content != a.Content || category != a.Category:
		_, err = tx.ExecContext(ctx,
			`UPDATE articles SET title = ?, content = ?, category = ?, quality_score = ?, updated_at = ?
			 WHERE id = ?`,
			a.Title, a.Content, a.Category, a.QualityScore, formatTime(updatedAt), a.ID,
		)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("updating article %s: %w", a.ID, err)
		}
		result = UpsertResult{Changed: true}

	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE articles SET quality_score = ? WHERE id = ?`, a.QualityScore, a.ID)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("updating quality score %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("committing article %s: %w", a.ID, err)
	}
	return result, nil
}

// SetQualityScore records the latest quality checker score.
func (s *Store) SetQualityScore(ctx context.Context, id string, score int) error {
	res, err := s.writer.ExecContext(ctx,
		`UPDATE articles SET quality_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return fmt.Errorf("updating quality score %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetArticle returns the article with the given id or ErrNotFound.
func (s *Store) GetArticle(ctx context.Context, id string) (types.Article, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Article{}, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Article{}, fmt.Errorf("loading article %s: %w", id, err)
	}
	return a, nil
}

// GetArticles returns the articles with the given ids keyed by id. Unknown
// ids are absent from the map.
func (s *Store) GetArticles(ctx context.Context, ids []string) (map[string]types.Article, error) {
	out := make(map[string]types.Article, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id IN (?` +
		strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading articles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// ListArticles returns all articles, or those in category when it is set,
// ordered by id.
func (s *Store) ListArticles(ctx context.Context, category string) ([]types.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY id`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}
	defer rows.Close()

	var out []types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteArticle removes the article and its current votes. Feedback events
// stay in the log. It reports whether the article existed.
func (s *Store) DeleteArticle(ctx context.Context, id string) (bool, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting article %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE article_id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting votes for %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// KeywordSearch runs an FTS5 query built from the content words of query
// and returns matches in bm25 order. Similarity scores are positional:
// the best match scores 1.0 and the last 0.1.
func (s *Store) KeywordSearch(ctx context.Context, query, category string, limit int) ([]types.SearchResult, error) {
	tokens := cluster.Tokens(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"*`
	}

	q := `SELECT a.id, a.title, a.category
		FROM articles_fts
		JOIN articles a ON a.rowid = articles_fts.rowid
		WHERE articles_fts MATCH ?`
	args := []any{strings.Join(terms, " OR ")}
	if category != "" {
		q += ` AND a.category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY articles_fts.rank, a.id LIMIT ?`
	args = append(args, limit)

	rows, err := s.reader.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var r types.SearchResult
		if err := rows.Scan(&r.ArticleID, &r.Title, &r.Category); err != nil {
			return nil, fmt.Errorf("scanning keyword result: %w", err)
		}
		r.Backend = "keyword"
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	n := len(results)
	for i := range results {
		if n == 1 {
			results[i].SimilarityScore = 1.0
		} else {
			results[i].SimilarityScore = 1.0 - float64(i)/float64(n-1)*0.9
		}
	}
	return results, nil
}

// ReadArticlesYAML parses a YAML list of articles from path.
func ReadArticlesYAML(path string) ([]types.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var articles []types.Article
	if err := yaml.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return articles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (types.Article, error) {
	var (
		a                types.Article
		created, updated string
	)
	err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &a.QualityScore,
		&a.HelpfulnessRatio, &a.ViewCount, &a.HelpfulCount, &a.NotHelpfulCount,
		&created, &updated)
	if err != nil {
		return types.Article{}, err
	}
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return a, nil
}
