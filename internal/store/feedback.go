// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// VotePolicy decides how repeated votes from one actor count.
type VotePolicy int

const (
	// CountEveryVote counts every helpful/not_helpful event.
	CountEveryVote VotePolicy = iota

	// OneVotePerActor keeps a single vote per (article, actor): repeating
	// the same vote is logged untracked, and switching moves the vote and
	// untracks the superseded event. Events without an actor always count.
	OneVotePerActor
)

// RecordFeedback appends ev to the feedback log and applies it to the
// article counters in the same IMMEDIATE transaction, so concurrent events
// on one article never lose updates. The returned event carries its
// assigned ID, timestamp, and Tracked flag. Unknown articles return
// ErrNotFound and a replayed event ID returns ErrDuplicate; nothing is
// logged in either case.
func (s *Store) RecordFeedback(ctx context.Context, ev types.FeedbackEvent, policy VotePolicy) (types.FeedbackEvent, error) {
	if !ev.EventType.Valid() {
		return ev, fmt.Errorf("unknown event type %q", ev.EventType)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return ev, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE id = ?`, ev.ArticleID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ev, fmt.Errorf("article %s: %w", ev.ArticleID, ErrNotFound)
	}
	if err != nil {
		return ev, fmt.Errorf("loading article %s: %w", ev.ArticleID, err)
	}

	err = tx.QueryRowContext(ctx, `SELECT 1 FROM feedback_events WHERE id = ?`, ev.ID).Scan(&exists)
	if err == nil {
		return ev, fmt.Errorf("feedback event %s: %w", ev.ID, ErrDuplicate)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ev, fmt.Errorf("checking feedback event %s: %w", ev.ID, err)
	}

	ev.Tracked, err = applyEvent(ctx, tx, ev, policy)
	if err != nil {
		return ev, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO feedback_events (id, article_id, event_type, actor_id, timestamp, tracked)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ArticleID, string(ev.EventType), ev.ActorID, formatTime(ev.Timestamp), ev.Tracked,
	)
	if err != nil {
		return ev, fmt.Errorf("appending feedback event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ev, fmt.Errorf("committing feedback: %w", err)
	}
	return ev, nil
}

// applyEvent updates counters (and the votes table under OneVotePerActor)
// for one event and reports whether the counters changed.
func applyEvent(ctx context.Context, tx *sql.Tx, ev types.FeedbackEvent, policy VotePolicy) (bool, error) {
	if ev.EventType == types.EventView {
		_, err := tx.ExecContext(ctx,
			`UPDATE articles SET view_count = view_count + 1 WHERE id = ?`, ev.ArticleID)
		if err != nil {
			return false, fmt.Errorf("incrementing views: %w", err)
		}
		return true, nil
	}

	var dHelpful, dNotHelpful int
	bump := func(t types.EventType, n int) {
		if t == types.EventHelpful {
			dHelpful += n
		} else {
			dNotHelpful += n
		}
	}

	if policy == OneVotePerActor && ev.ActorID != "" {
		var prev string
		err := tx.QueryRowContext(ctx,
			`SELECT event_type FROM votes WHERE article_id = ? AND actor_id = ?`,
			ev.ArticleID, ev.ActorID,
		).Scan(&prev)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return false, fmt.Errorf("loading vote: %w", err)
		case types.EventType(prev) == ev.EventType:
			return false, nil
		default:
			bump(types.EventType(prev), -1)
			_, err = tx.ExecContext(ctx,
				`UPDATE feedback_events SET tracked = 0
				 WHERE seq = (SELECT MAX(seq) FROM feedback_events
					WHERE article_id = ? AND actor_id = ? AND event_type = ? AND tracked = 1)`,
				ev.ArticleID, ev.ActorID, prev,
			)
			if err != nil {
				return false, fmt.Errorf("superseding vote: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO votes (article_id, actor_id, event_type) VALUES (?, ?, ?)
			 ON CONFLICT(article_id, actor_id) DO UPDATE SET event_type = excluded.event_type`,
			ev.ArticleID, ev.ActorID, string(ev.EventType),
		)
		if err != nil {
			return false, fmt.Errorf("storing vote: %w", err)
		}
	}
	bump(ev.EventType, 1)

	_, err := tx.ExecContext(ctx,
		`UPDATE articles SET
			helpful_count = helpful_count + ?,
			not_helpful_count = not_helpful_count + ?
		 WHERE id = ?`,
		dHelpful, dNotHelpful, ev.ArticleID,
	)
	if err != nil {
		return false, fmt.Errorf("updating vote counters: %w", err)
	}
	if err := recomputeRatio(ctx, tx, ev.ArticleID); err != nil {
		return false, err
	}
	return true, nil
}

func recomputeRatio(ctx context.Context, tx *sql.Tx, articleID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE articles SET helpfulness_ratio = CASE
			WHEN helpful_count + not_helpful_count = 0 THEN 0.0
			ELSE CAST(helpful_count AS REAL) / (helpful_count + not_helpful_count)
		 END WHERE id = ?`, articleID)
	if err != nil {
		return fmt.Errorf("recomputing helpfulness ratio: %w", err)
	}
	return nil
}

// RebuildCounters resets every article's counters and votes and replays
// the whole feedback log under policy. Events for deleted articles are
// skipped. The tracked flag of each replayed event is rewritten to match,
// so tracked events always sum to the counters.
func (s *Store) RebuildCounters(ctx context.Context, policy VotePolicy) (int, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	resets := []string{
		`UPDATE articles SET view_count = 0, helpful_count = 0, not_helpful_count = 0, helpfulness_ratio = 0`,
		`DELETE FROM votes`,
		`UPDATE feedback_events SET tracked = 0 WHERE article_id IN (SELECT id FROM articles)`,
	}
	for _, stmt := range resets {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("resetting counters: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT e.seq, e.article_id, e.event_type, e.actor_id
		 FROM feedback_events e JOIN articles a ON a.id = e.article_id
		 ORDER BY e.seq`)
	if err != nil {
		return 0, fmt.Errorf("reading feedback log: %w", err)
	}
	type logged struct {
		seq int64
		ev  types.FeedbackEvent
	}
	var events []logged
	for rows.Next() {
		var (
			l         logged
			eventType string
		)
		if err := rows.Scan(&l.seq, &l.ev.ArticleID, &eventType, &l.ev.ActorID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning feedback event: %w", err)
		}
		l.ev.EventType = types.EventType(eventType)
		events = append(events, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading feedback log: %w", err)
	}

	for _, l := range events {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		tracked, err := applyEvent(ctx, tx, l.ev, policy)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE feedback_events SET tracked = ? WHERE seq = ?`, tracked, l.seq); err != nil {
			return 0, fmt.Errorf("updating tracked flag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(events), nil
}

// ArticleActivity is the tracked feedback one article received in a window.
type ArticleActivity struct {
	ArticleID  string
	Views      int64
	Helpful    int64
	NotHelpful int64
}

// FeedbackActivity aggregates tracked events with timestamp >= since per
// article, ordered by article id. A zero since covers the whole log, and
// then matches the article counters.
func (s *Store) FeedbackActivity(ctx context.Context, since time.Time) ([]ArticleActivity, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT article_id,
			SUM(CASE WHEN event_type = 'view' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = 'helpful' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = 'not_helpful' THEN 1 ELSE 0 END)
		 FROM feedback_events
		 WHERE tracked = 1 AND timestamp >= ?
		 GROUP BY article_id
		 ORDER BY article_id`,
		formatTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating feedback: %w", err)
	}
	defer rows.Close()

	var out []ArticleActivity
	for rows.Next() {
		var a ArticleActivity
		if err := rows.Scan(&a.ArticleID, &a.Views, &a.Helpful, &a.NotHelpful); err != nil {
			return nil, fmt.Errorf("scanning feedback aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FeedbackEvents returns the log for one article in append order.
func (s *Store) FeedbackEvents(ctx context.Context, articleID string) ([]types.FeedbackEvent, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, article_id, event_type, actor_id, timestamp, tracked
		 FROM feedback_events WHERE article_id = ? ORDER BY seq`, articleID)
	if err != nil {
		return nil, fmt.Errorf("reading feedback log: %w", err)
	}
	defer rows.Close()

	var out []types.FeedbackEvent
	for rows.Next() {
		var (
			ev        types.FeedbackEvent
			eventType string
			ts        string
		)
		if err := rows.Scan(&ev.ID, &ev.ArticleID, &eventType, &ev.ActorID, &ts, &ev.Tracked); err != nil {
			return nil, fmt.Errorf("scanning feedback event: %w", err)
		}
		ev.EventType = types.EventType(eventType)
		ev.Timestamp = parseTime(ts)
		out = append(out, ev)
	}
	return out, rows.Err()
}
