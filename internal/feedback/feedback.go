// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feedback records reader feedback against articles and reports
// windowed usage and helpfulness statistics.
package feedback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/kb-engine/internal/store"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// Store is the part of the Article Store the tracker uses.
type Store interface {
	RecordFeedback(ctx context.Context, ev types.FeedbackEvent, policy store.VotePolicy) (types.FeedbackEvent, error)
	RebuildCounters(ctx context.Context, policy store.VotePolicy) (int, error)
	FeedbackActivity(ctx context.Context, since time.Time) ([]store.ArticleActivity, error)
	ListArticles(ctx context.Context, category string) ([]types.Article, error)
}

// LowHelpfulness is an article readers rate poorly.
type LowHelpfulness struct {
	ArticleID        string  `json:"article_id" yaml:"article_id"`
	Title            string  `json:"title" yaml:"title"`
	HelpfulnessRatio float64 `json:"helpfulness_ratio" yaml:"helpfulness_ratio"`
	Votes            int64   `json:"votes" yaml:"votes"`
}

// Stats summarizes feedback received within a window.
type Stats struct {
	WindowDays      int   `json:"window_days" yaml:"window_days"`
	TotalViews      int64 `json:"total_views" yaml:"total_views"`
	TotalHelpful    int64 `json:"total_helpful" yaml:"total_helpful"`
	TotalNotHelpful int64 `json:"total_not_helpful" yaml:"total_not_helpful"`

	// AvgHelpfulnessRatio averages the in-window ratio of every article
	// that received at least one vote in the window.
	AvgHelpfulnessRatio float64 `json:"avg_helpfulness_ratio" yaml:"avg_helpfulness_ratio"`

	// LowHelpfulnessArticles uses lifetime counters, worst first.
	LowHelpfulnessArticles []LowHelpfulness `json:"low_helpfulness_articles" yaml:"low_helpfulness_articles"`
}

// Tracker records feedback under the configured vote policy.
type Tracker struct {
	store Store
	cfg   types.FeedbackConfig

	// Now is the clock used for stats windows; tests replace it.
	Now func() time.Time
}

// New creates a Tracker.
func New(s Store, cfg types.FeedbackConfig) *Tracker {
	if cfg.MinVotes <= 0 {
		cfg.MinVotes = 5
	}
	return &Tracker{store: s, cfg: cfg, Now: time.Now}
}

// Policy returns the vote policy derived from configuration.
func (t *Tracker) Policy() store.VotePolicy {
	if t.cfg.DedupVotes {
		return store.OneVotePerActor
	}
	return store.CountEveryVote
}

// Record logs one event and reports whether it changed the counters. A
// repeated vote from the same actor is logged but not tracked when votes
// are deduplicated.
func (t *Tracker) Record(ctx context.Context, articleID string, eventType types.EventType, actorID string) (bool, error) {
	ev, err := t.RecordEvent(ctx, types.FeedbackEvent{
		ArticleID: articleID,
		EventType: eventType,
		ActorID:   actorID,
	})
	return ev.Tracked, err
}

// RecordEvent logs a fully specified event, keeping a caller-supplied ID
// and timestamp. Replaying a stream with the same event IDs is rejected
// by the store's unique constraint.
func (t *Tracker) RecordEvent(ctx context.Context, ev types.FeedbackEvent) (types.FeedbackEvent, error) {
	ev.ArticleID = strings.TrimSpace(ev.ArticleID)
	if ev.ArticleID == "" {
		return ev, fmt.Errorf("article id is required")
	}
	return t.store.RecordFeedback(ctx, ev, t.Policy())
}

// Rebuild recomputes every counter from the feedback log.
func (t *Tracker) Rebuild(ctx context.Context) (int, error) {
	return t.store.RebuildCounters(ctx, t.Policy())
}

// Stats reports totals over the last windowDays days. windowDays <= 0
// covers the whole log. A longer window never reports smaller totals.
func (t *Tracker) Stats(ctx context.Context, windowDays int) (Stats, error) {
	var since time.Time
	if windowDays > 0 {
		since = t.Now().AddDate(0, 0, -windowDays)
	}
	activity, err := t.store.FeedbackActivity(ctx, since)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{WindowDays: windowDays, LowHelpfulnessArticles: []LowHelpfulness{}}
	var ratioSum float64
	var voted int
	for _, a := range activity {
		stats.TotalViews += a.Views
		stats.TotalHelpful += a.Helpful
		stats.TotalNotHelpful += a.NotHelpful
		if a.Helpful+a.NotHelpful > 0 {
			ratioSum += types.HelpfulnessRatio(a.Helpful, a.NotHelpful)
			voted++
		}
	}
	if voted > 0 {
		stats.AvgHelpfulnessRatio = ratioSum / float64(voted)
	}

	low, err := t.LowHelpfulness(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.LowHelpfulnessArticles = low
	return stats, nil
}

// LowHelpfulness lists articles whose ratio is below the threshold and
// that have at least MinVotes votes.
func (t *Tracker) LowHelpfulness(ctx context.Context) ([]LowHelpfulness, error) {
	articles, err := t.store.ListArticles(ctx, "")
	if err != nil {
		return nil, err
	}
	out := []LowHelpfulness{}
	for _, a := range articles {
		if !IsLowHelpfulness(a, t.cfg) {
			continue
		}
		out = append(out, LowHelpfulness{
			ArticleID:        a.ID,
			Title:            a.Title,
			HelpfulnessRatio: a.HelpfulnessRatio,
			Votes:            a.Votes(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HelpfulnessRatio != out[j].HelpfulnessRatio {
			return out[i].HelpfulnessRatio < out[j].HelpfulnessRatio
		}
		return out[i].ArticleID < out[j].ArticleID
	})
	return out, nil
}

// IsLowHelpfulness applies the flagging rule to one article.
func IsLowHelpfulness(a types.Article, cfg types.FeedbackConfig) bool {
	return a.Votes() >= cfg.MinVotes && a.HelpfulnessRatio < cfg.LowHelpfulnessThreshold
}
