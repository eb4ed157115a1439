// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Interaction is a support ticket or conversation turn read from the
// ticket/conversation store. Batch jobs only ever read interactions.
type Interaction struct {
	ID string `json:"id" yaml:"id"`

	// Text is the user's question or request as written.
	Text string `json:"text" yaml:"text"`

	// Subject is the ticket subject line, empty for conversations.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`

	Resolved bool   `json:"resolved" yaml:"resolved"`
	Topic    string `json:"topic,omitempty" yaml:"topic,omitempty"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Channel is "ticket" or "conversation".
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`

	// AnswerConfidence is the confidence of the answer the user received,
	// 0 when unknown.
	AnswerConfidence float64 `json:"answer_confidence,omitempty" yaml:"answer_confidence,omitempty"`

	// Impact is an optional business-impact weight in [0, 1] (for example
	// derived from the customer's plan).
	Impact float64 `json:"impact,omitempty" yaml:"impact,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Channel values for Interaction.
const (
	ChannelTicket       = "ticket"
	ChannelConversation = "conversation"
)

// KnowledgeGap is a cluster of recurring unresolved questions. Gaps are
// recomputed on every detection run.
type KnowledgeGap struct {
	Topic                   string   `json:"topic" yaml:"topic"`
	Category                string   `json:"category,omitempty" yaml:"category,omitempty"`
	RepresentativeQuestions []string `json:"representative_questions" yaml:"representative_questions"`
	Frequency               int      `json:"frequency" yaml:"frequency"`

	// PriorityScore is in [0, 100].
	PriorityScore float64 `json:"priority_score" yaml:"priority_score"`
}

// SuggestionSource tags where an article suggestion came from.
type SuggestionSource string

const (
	SourceGapDetection SuggestionSource = "gap_detection"
	SourceTicketMining SuggestionSource = "ticket_mining"
)

// ArticleSuggestion is a "create this article" recommendation.
type ArticleSuggestion struct {
	ID        string           `json:"id" yaml:"id"`
	Title     string           `json:"title" yaml:"title"`
	Category  string           `json:"category" yaml:"category"`
	Frequency int              `json:"frequency" yaml:"frequency"`
	Priority  float64          `json:"priority" yaml:"priority"`
	Source    SuggestionSource `json:"source" yaml:"source"`
	Evidence  []string         `json:"evidence" yaml:"evidence"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
}

// FAQStatus is the editorial state of an FAQ candidate. The engine never
// produces a published state.
type FAQStatus string

const (
	FAQDraft         FAQStatus = "draft"
	FAQPendingReview FAQStatus = "pending_review"
)

// FAQCandidate is a canonical question drafted from recurring phrasings.
type FAQCandidate struct {
	ID          string    `json:"id" yaml:"id"`
	Question    string    `json:"question" yaml:"question"`
	DraftAnswer string    `json:"draft_answer" yaml:"draft_answer"`
	Frequency   int       `json:"frequency" yaml:"frequency"`
	Status      FAQStatus `json:"status" yaml:"status"`
	Variants    []string  `json:"variants,omitempty" yaml:"variants,omitempty"`
	Sources     []string  `json:"sources,omitempty" yaml:"sources,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Issue is a typed finding with a human-readable detail.
type Issue struct {
	Type   string `json:"type" yaml:"type"`
	Detail string `json:"detail" yaml:"detail"`
}

// QualityReport is the structural assessment of one article.
type QualityReport struct {
	ArticleID    string  `json:"article_id" yaml:"article_id"`
	OverallScore int     `json:"overall_score" yaml:"overall_score"`
	Issues       []Issue `json:"issues" yaml:"issues"`
}

// UpdatePriority ranks how urgently an article needs editing.
type UpdatePriority string

const (
	PriorityCritical UpdatePriority = "critical"
	PriorityHigh     UpdatePriority = "high"
	PriorityMedium   UpdatePriority = "medium"
	PriorityLow      UpdatePriority = "low"
)

// Rank orders priorities: critical=4 ... low=1, none=0.
func (p UpdatePriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Effort is a coarse estimate of the editing work a recommendation implies.
type Effort string

const (
	EffortNone     Effort = "none"
	EffortMinor    Effort = "minor"
	EffortModerate Effort = "moderate"
	EffortMajor    Effort = "major"
)

// UpdateRecommendation is the staleness advisor's verdict for one article.
type UpdateRecommendation struct {
	ArticleID       string         `json:"article_id" yaml:"article_id"`
	Title           string         `json:"title" yaml:"title"`
	NeedsUpdate     bool           `json:"needs_update" yaml:"needs_update"`
	Reasons         []Issue        `json:"reasons" yaml:"reasons"`
	UpdatePriority  UpdatePriority `json:"update_priority,omitempty" yaml:"update_priority,omitempty"`
	Suggestions     []string       `json:"suggestions" yaml:"suggestions"`
	EstimatedEffort Effort         `json:"estimated_effort" yaml:"estimated_effort"`
}
