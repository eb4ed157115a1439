// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package suggest turns knowledge gaps and recurring ticket subjects into
// deduplicated "create this article" recommendations.
package suggest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/kb-engine/internal/cluster"
	"github.com/pdiddy/kb-engine/internal/gaps"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// maxEvidence bounds the example questions kept per suggestion.
const maxEvidence = 5

// questionPrefixes are rewritten to "How to" in suggested titles.
var questionPrefixes = []string{
	"how do i ", "how can i ", "how do you ", "how do we ", "how can we ", "how to ",
}

// TicketSource reads the ticket and conversation log.
type TicketSource interface {
	Interactions(ctx context.Context, from, to time.Time) ([]types.Interaction, error)
}

// Suggester merges gap-derived and ticket-mined suggestions.
type Suggester struct {
	tickets    TicketSource
	cfg        types.SuggestConfig
	saturation int

	// Now stamps suggestions and anchors the lookback window; tests replace it.
	Now func() time.Time
}

// New creates a Suggester. tickets may be nil to disable ticket mining.
// saturation is the frequency at which priority maxes out, shared with gap
// detection so the two sources score on the same scale.
func New(tickets TicketSource, cfg types.SuggestConfig, saturation int) *Suggester {
	if cfg.DedupThreshold <= 0 || cfg.DedupThreshold > 1 {
		cfg.DedupThreshold = 1
	}
	if cfg.MinTicketFrequency < 1 {
		cfg.MinTicketFrequency = 3
	}
	if saturation < 1 {
		saturation = 50
	}
	return &Suggester{tickets: tickets, cfg: cfg, saturation: saturation, Now: time.Now}
}

// Title phrases a gap topic as an article title. Question topics become
// "How to ..." titles; other topics are kept as written.
func Title(topic string) string {
	t := strings.TrimSpace(topic)
	t = strings.TrimRight(t, "?!. ")
	lower := strings.ToLower(t)
	for _, p := range questionPrefixes {
		if strings.HasPrefix(lower, p) && len(t) > len(p) {
			return "How to " + strings.TrimSpace(t[len(p):])
		}
	}
	return t
}

// Suggest builds suggestions from gaps and from ticket subjects seen in the
// last lookbackDays days. No two results share a normalized title, and the
// list is ordered by priority descending.
func (s *Suggester) Suggest(ctx context.Context, detected []types.KnowledgeGap, lookbackDays int) ([]types.ArticleSuggestion, error) {
	now := s.Now()
	var candidates []types.ArticleSuggestion

	for _, g := range detected {
		title := Title(g.Topic)
		if cluster.Normalize(title) == "" {
			continue
		}
		candidates = append(candidates, types.ArticleSuggestion{
			Title:     title,
			Category:  g.Category,
			Frequency: g.Frequency,
			Priority:  g.PriorityScore,
			Source:    types.SourceGapDetection,
			Evidence:  limit(g.RepresentativeQuestions, maxEvidence),
			CreatedAt: now,
		})
	}

	if s.tickets != nil {
		mined, err := s.mineTickets(ctx, now, lookbackDays)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, mined...)
	}

	return s.merge(candidates), nil
}

func (s *Suggester) mineTickets(ctx context.Context, now time.Time, lookbackDays int) ([]types.ArticleSuggestion, error) {
	var from time.Time
	if lookbackDays > 0 {
		from = now.AddDate(0, 0, -lookbackDays)
	}
	interactions, err := s.tickets.Interactions(ctx, from, time.Time{})
	if err != nil {
		return nil, err
	}

	var subjects []types.Interaction
	for _, it := range interactions {
		if strings.TrimSpace(it.Subject) != "" {
			subjects = append(subjects, it)
		}
	}
	texts := make([]string, len(subjects))
	for i, it := range subjects {
		texts[i] = it.Subject
	}

	var out []types.ArticleSuggestion
	for _, members := range cluster.Group(texts, s.cfg.DedupThreshold) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(members) < s.cfg.MinTicketFrequency {
			continue
		}
		var wordings, categories []string
		for _, m := range members {
			wordings = append(wordings, texts[m])
			if c := subjects[m].Category; c != "" {
				categories = append(categories, c)
			}
		}
		phrasings := cluster.Phrasings(wordings)
		sg := types.ArticleSuggestion{
			Title:     Title(phrasings[0].Text),
			Frequency: len(members),
			Priority:  gaps.PriorityScore(len(members), s.saturation, 0, false),
			Source:    types.SourceTicketMining,
			CreatedAt: now,
		}
		if cats := cluster.Phrasings(categories); len(cats) > 0 {
			sg.Category = cats[0].Text
		}
		for i := 0; i < len(phrasings) && i < maxEvidence; i++ {
			sg.Evidence = append(sg.Evidence, phrasings[i].Text)
		}
		out = append(out, sg)
	}
	return out, nil
}

// merge folds near-duplicate titles into the highest-priority suggestion,
// which keeps its own source tag.
func (s *Suggester) merge(candidates []types.ArticleSuggestion) []types.ArticleSuggestion {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	out := []types.ArticleSuggestion{}
	for _, c := range candidates {
		if i := s.duplicateOf(out, c.Title); i >= 0 {
			kept := &out[i]
			kept.Frequency = max(kept.Frequency, c.Frequency)
			if kept.Category == "" {
				kept.Category = c.Category
			}
			kept.Evidence = appendDistinct(kept.Evidence, c.Evidence, maxEvidence)
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Title < out[j].Title
	})
	return out
}

func (s *Suggester) duplicateOf(kept []types.ArticleSuggestion, title string) int {
	norm := cluster.Normalize(title)
	for i, k := range kept {
		if cluster.Normalize(k.Title) == norm || cluster.Similarity(k.Title, title) >= s.cfg.DedupThreshold {
			return i
		}
	}
	return -1
}

func appendDistinct(dst, src []string, n int) []string {
	seen := make(map[string]bool, len(dst))
	for _, d := range dst {
		seen[cluster.Normalize(d)] = true
	}
	for _, v := range src {
		if len(dst) >= n {
			break
		}
		key := cluster.Normalize(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, v)
	}
	return dst
}

func limit(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return append([]string(nil), s...)
}
