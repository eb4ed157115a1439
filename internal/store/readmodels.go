// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/kb-engine/internal/cluster"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// SaveSuggestions upserts suggestions keyed by normalized title. An
// existing suggestion keeps its id and created_at; every other field takes
// the latest run's value. The passed slice is updated with the stored ids.
func (s *Store) SaveSuggestions(ctx context.Context, suggestions []types.ArticleSuggestion) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range suggestions {
		sg := &suggestions[i]
		if sg.ID == "" {
			sg.ID = uuid.NewString()
		}
		if sg.CreatedAt.IsZero() {
			sg.CreatedAt = s.now()
		}
		evidence, _ := json.Marshal(sg.Evidence)
		norm := cluster.Normalize(sg.Title)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO suggestions (id, norm_title, title, category, frequency, priority, source, evidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(norm_title) DO UPDATE SET
				title=excluded.title, category=excluded.category, frequency=excluded.frequency,
				priority=excluded.priority, source=excluded.source, evidence=excluded.evidence`,
			sg.ID, norm, sg.Title, sg.Category, sg.Frequency, sg.Priority,
			string(sg.Source), string(evidence), formatTime(sg.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("saving suggestion %q: %w", sg.Title, err)
		}

		var created string
		if err := tx.QueryRowContext(ctx,
			`SELECT id, created_at FROM suggestions WHERE norm_title = ?`, norm,
		).Scan(&sg.ID, &created); err != nil {
			return fmt.Errorf("reloading suggestion %q: %w", sg.Title, err)
		}
		sg.CreatedAt = parseTime(created)
	}

	return tx.Commit()
}

// ListSuggestions returns stored suggestions by priority descending.
func (s *Store) ListSuggestions(ctx context.Context) ([]types.ArticleSuggestion, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, title, category, frequency, priority, source, evidence, created_at
		 FROM suggestions ORDER BY priority DESC, norm_title`)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	defer rows.Close()

	var out []types.ArticleSuggestion
	for rows.Next() {
		var (
			sg       types.ArticleSuggestion
			source   string
			evidence sql.NullString
			created  string
		)
		if err := rows.Scan(&sg.ID, &sg.Title, &sg.Category, &sg.Frequency, &sg.Priority,
			&source, &evidence, &created); err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		sg.Source = types.SuggestionSource(source)
		if evidence.Valid {
			json.Unmarshal([]byte(evidence.String), &sg.Evidence)
		}
		sg.CreatedAt = parseTime(created)
		out = append(out, sg)
	}
	return out, rows.Err()
}

// SaveFAQCandidates upserts candidates keyed by normalized question. Status
// is always one of the unpublished states.
func (s *Store) SaveFAQCandidates(ctx context.Context, candidates []types.FAQCandidate) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range candidates {
		c := &candidates[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
		}
		if c.Status != types.FAQPendingReview {
			c.Status = types.FAQDraft
		}
		variants, _ := json.Marshal(c.Variants)
		sources, _ := json.Marshal(c.Sources)
		norm := cluster.Normalize(c.Question)

		_, err := tx.ExecContext(ctx,
			`INSERT INTO faq_candidates (id, norm_question, question, draft_answer, frequency, status, variants, sources, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(norm_question) DO UPDATE SET
				question=excluded.question, draft_answer=excluded.draft_answer,
				frequency=excluded.frequency, status=excluded.status,
				variants=excluded.variants, sources=excluded.sources`,
			c.ID, norm, c.Question, c.DraftAnswer, c.Frequency, string(c.Status),
			string(variants), string(sources), formatTime(c.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("saving FAQ candidate %q: %w", c.Question, err)
		}

		var created string
		if err := tx.QueryRowContext(ctx,
			`SELECT id, created_at FROM faq_candidates WHERE norm_question = ?`, norm,
		).Scan(&c.ID, &created); err != nil {
			return fmt.Errorf("reloading FAQ candidate %q: %w", c.Question, err)
		}
		c.CreatedAt = parseTime(created)
	}

	return tx.Commit()
}

// ListFAQCandidates returns stored candidates by frequency descending.
func (s *Store) ListFAQCandidates(ctx context.Context) ([]types.FAQCandidate, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, question, draft_answer, frequency, status, variants, sources, created_at
		 FROM faq_candidates ORDER BY frequency DESC, norm_question`)
	if err != nil {
		return nil, fmt.Errorf("listing FAQ candidates: %w", err)
	}
	defer rows.Close()

	var out []types.FAQCandidate
	for rows.Next() {
		var (
			c                 types.FAQCandidate
			status            string
			variants, sources sql.NullString
			created           string
		)
		if err := rows.Scan(&c.ID, &c.Question, &c.DraftAnswer, &c.Frequency, &status,
			&variants, &sources, &created); err != nil {
			return nil, fmt.Errorf("scanning FAQ candidate: %w", err)
		}
		c.Status = types.FAQStatus(status)
		if variants.Valid {
			json.Unmarshal([]byte(variants.String), &c.Variants)
		}
		if sources.Valid {
			json.Unmarshal([]byte(sources.String), &c.Sources)
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}
