// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the records shared by the kb-engine stages: articles
// and their derived chunks, feedback events, retrieval results, synthesized
// answers, and the content-quality read models (gaps, suggestions, FAQ
// candidates, update recommendations).
package types

import "time"

// Article is a knowledge-base article as owned by the Article Store.
// Counters are aggregates over the feedback log and can be rebuilt from it.
type Article struct {
	// ID is a stable identifier chosen by the author or importer.
	ID string `json:"id" yaml:"id"`

	Title    string `json:"title" yaml:"title"`
	Content  string `json:"content" yaml:"content"`
	Category string `json:"category" yaml:"category"`

	// QualityScore is the structural completeness score (0-100) last
	// computed by the quality checker.
	QualityScore int `json:"quality_score" yaml:"quality_score"`

	// HelpfulnessRatio is helpful / (helpful + not_helpful), 0 with no votes.
	HelpfulnessRatio float64 `json:"helpfulness_ratio" yaml:"helpfulness_ratio"`

	ViewCount       int64 `json:"view_count" yaml:"view_count"`
	HelpfulCount    int64 `json:"helpful_count" yaml:"helpful_count"`
	NotHelpfulCount int64 `json:"not_helpful_count" yaml:"not_helpful_count"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Votes returns the total number of helpful and not-helpful votes.
func (a Article) Votes() int64 {
	return a.HelpfulCount + a.NotHelpfulCount
}

// HelpfulnessRatio computes helpful / (helpful + notHelpful). It returns 0
// when there are no votes, so the result is always within [0, 1].
func HelpfulnessRatio(helpful, notHelpful int64) float64 {
	if helpful < 0 {
		helpful = 0
	}
	if notHelpful < 0 {
		notHelpful = 0
	}
	total := helpful + notHelpful
	if total == 0 {
		return 0
	}
	return float64(helpful) / float64(total)
}

// Chunk is a bounded slice of one article's content together with its
// embedding. Chunks are regenerated wholesale whenever the article changes.
type Chunk struct {
	ArticleID string    `json:"article_id" yaml:"article_id"`
	Index     int       `json:"chunk_index" yaml:"chunk_index"`
	Text      string    `json:"text" yaml:"text"`
	Title     string    `json:"title" yaml:"title"`
	Category  string    `json:"category" yaml:"category"`
	Vector    []float32 `json:"-" yaml:"-"`
}

// EventType classifies a feedback event.
type EventType string

const (
	EventView       EventType = "view"
	EventHelpful    EventType = "helpful"
	EventNotHelpful EventType = "not_helpful"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventHelpful, EventNotHelpful:
		return true
	}
	return false
}

// IsVote reports whether t is a helpful or not-helpful vote.
func (t EventType) IsVote() bool {
	return t == EventHelpful || t == EventNotHelpful
}

// FeedbackEvent is one entry in the append-only feedback log.
type FeedbackEvent struct {
	ID        string    `json:"id" yaml:"id"`
	ArticleID string    `json:"article_id" yaml:"article_id" validate:"required"`
	EventType EventType `json:"event_type" yaml:"event_type" validate:"required,oneof=view helpful not_helpful"`
	ActorID   string    `json:"actor_id" yaml:"actor_id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Tracked records whether the event counts in the article counters. A
	// vote superseded by the same actor's later opposite vote is untracked.
	Tracked bool `json:"tracked" yaml:"tracked"`
}
