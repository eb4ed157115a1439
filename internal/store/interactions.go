// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// AddInteractions inserts or replaces interactions by id. Interactions
// without an id get a random one; those without a timestamp get the clock.
func (s *Store) AddInteractions(ctx context.Context, items []types.Interaction) (int, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO interactions
			(id, text, subject, resolved, topic, category, channel, answer_confidence, impact, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = s.now()
		}
		if it.Channel == "" {
			it.Channel = types.ChannelTicket
		}
		_, err := stmt.ExecContext(ctx,
			it.ID, it.Text, it.Subject, it.Resolved, it.Topic, it.Category,
			it.Channel, it.AnswerConfidence, it.Impact, formatTime(it.CreatedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting interaction %s: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing interactions: %w", err)
	}
	return len(items), nil
}

// Interactions returns interactions created in [from, to), oldest first.
// A zero to means no upper bound. This is the read-only ticket and
// conversation query the batch jobs run against.
func (s *Store) Interactions(ctx context.Context, from, to time.Time) ([]types.Interaction, error) {
	query := `SELECT id, text, subject, resolved, topic, category, channel,
			answer_confidence, impact, created_at
		FROM interactions WHERE created_at >= ?`
	args := []any{formatTime(from)}
	if !to.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, formatTime(to))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	var out []types.Interaction
	for rows.Next() {
		var (
			it      types.Interaction
			created string
		)
		if err := rows.Scan(&it.ID, &it.Text, &it.Subject, &it.Resolved, &it.Topic,
			&it.Category, &it.Channel, &it.AnswerConfidence, &it.Impact, &created); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		it.CreatedAt = parseTime(created)
		out = append(out, it)
	}
	return out, rows.Err()
}

// ReadInteractionsYAML parses a YAML list of interactions from path.
func ReadInteractionsYAML(path string) ([]types.Interaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var items []types.Interaction
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return items, nil
}
