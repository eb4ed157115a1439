// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package faq clusters recurring question phrasings into canonical FAQ
// candidates with drafted answers. Candidates are never published here;
// they leave as drafts or pending review.
package faq

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/kb-engine/internal/cluster"
	"github.com/pdiddy/kb-engine/internal/gaps"
	"github.com/pdiddy/kb-engine/pkg/types"
)

const maxVariants = 5

var interrogatives = []string{
	"how", "what", "why", "when", "where", "which", "who", "can", "could",
	"do", "does", "is", "are", "should", "will", "would",
}

// QuestionSource reads the ticket and conversation log.
type QuestionSource interface {
	Interactions(ctx context.Context, from, to time.Time) ([]types.Interaction, error)
}

// Drafter answers a canonical question, typically by searching the
// knowledge base and synthesizing from what it finds.
type Drafter interface {
	Draft(ctx context.Context, question string) (types.SynthesizedAnswer, error)
}

// Generator builds FAQ candidates.
type Generator struct {
	source  QuestionSource
	drafter Drafter
	cfg     types.FAQConfig

	// Now stamps candidates and anchors the lookback window; tests replace it.
	Now func() time.Time
}

// New creates a Generator. drafter may be nil, in which case candidates
// carry no draft answer.
func New(source QuestionSource, drafter Drafter, cfg types.FAQConfig) *Generator {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.5
	}
	return &Generator{source: source, drafter: drafter, cfg: cfg, Now: time.Now}
}

// IsQuestion reports whether text reads as a question.
func IsQuestion(text string) bool {
	t := strings.TrimSpace(text)
	if strings.HasSuffix(t, "?") {
		return true
	}
	first, _, _ := strings.Cut(cluster.Normalize(t), " ")
	for _, w := range interrogatives {
		if first == w {
			return true
		}
	}
	return false
}

// Canonical picks the wording that represents a cluster: question-like
// phrasings first, then the most frequent, then the shortest.
func Canonical(phrasings []cluster.Phrasing) string {
	if len(phrasings) == 0 {
		return ""
	}
	best := phrasings[0]
	for _, p := range phrasings[1:] {
		if better(p, best) {
			best = p
		}
	}
	return best.Text
}

func better(a, b cluster.Phrasing) bool {
	if qa, qb := IsQuestion(a.Text), IsQuestion(b.Text); qa != qb {
		return qa
	}
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return len([]rune(a.Text)) < len([]rune(b.Text))
}

// Generate clusters the questions asked in the last lookbackDays days and
// returns up to limit candidates seen at least minFrequency times, most
// frequent first. limit <= 0 means no limit. Too little data yields an
// empty list. Cancellation is checked between candidates; drafting stops
// and the drafted candidates so far are returned with the error.
func (g *Generator) Generate(ctx context.Context, lookbackDays, minFrequency, limit int) ([]types.FAQCandidate, error) {
	if minFrequency < 1 {
		minFrequency = 1
	}
	now := g.Now()
	var from time.Time
	if lookbackDays > 0 {
		from = now.AddDate(0, 0, -lookbackDays)
	}
	interactions, err := g.source.Interactions(ctx, from, time.Time{})
	if err != nil {
		return nil, err
	}

	var texts []string
	for _, it := range interactions {
		if q := gaps.QuestionText(it); q != "" {
			texts = append(texts, q)
		}
	}

	candidates := []types.FAQCandidate{}
	if len(texts) < minFrequency {
		return candidates, nil
	}

	for _, members := range cluster.Group(texts, g.cfg.SimilarityThreshold) {
		if len(members) < minFrequency {
			continue
		}
		wordings := make([]string, len(members))
		for i, m := range members {
			wordings[i] = texts[m]
		}
		phrasings := cluster.Phrasings(wordings)
		c := types.FAQCandidate{
			Question:  Canonical(phrasings),
			Frequency: len(members),
			Status:    types.FAQDraft,
			CreatedAt: now,
		}
		for _, p := range phrasings {
			if p.Text != c.Question && len(c.Variants) < maxVariants {
				c.Variants = append(c.Variants, p.Text)
			}
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Frequency != candidates[j].Frequency {
			return candidates[i].Frequency > candidates[j].Frequency
		}
		return candidates[i].Question < candidates[j].Question
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if g.drafter == nil {
		return candidates, nil
	}
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return candidates[:i], err
		}
		g.draft(ctx, &candidates[i])
	}
	return candidates, nil
}

func (g *Generator) draft(ctx context.Context, c *types.FAQCandidate) {
	answer, err := g.drafter.Draft(ctx, c.Question)
	if err != nil {
		slog.Warn("drafting FAQ answer failed", "question", c.Question, "error", err)
		return
	}
	if answer.Confidence <= 0 {
		slog.Debug("no grounded answer for FAQ question", "question", c.Question)
		return
	}
	c.DraftAnswer = answer.Answer
	c.Sources = answer.Sources
	if answer.Confidence >= g.cfg.ReviewConfidence {
		c.Status = types.FAQPendingReview
	}
}
