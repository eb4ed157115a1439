// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gaps mines support interactions for recurring questions the
// knowledge base does not answer.
package gaps

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/kb-engine/internal/cluster"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// InteractionSource is the read-only ticket and conversation store.
type InteractionSource interface {
	Interactions(ctx context.Context, from, to time.Time) ([]types.Interaction, error)
}

// CoverageChecker reports whether an existing article already answers a
// question.
type CoverageChecker interface {
	Covered(ctx context.Context, question string) (bool, error)
}

// Detector clusters unanswered questions into gaps.
type Detector struct {
	source   InteractionSource
	coverage CoverageChecker
	cfg      types.GapConfig

	// Now is the clock used for the lookback window; tests replace it.
	Now func() time.Time
}

// New creates a Detector. coverage may be nil.
func New(source InteractionSource, coverage CoverageChecker, cfg types.GapConfig) *Detector {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.5
	}
	if cfg.SaturationFrequency <= 0 {
		cfg.SaturationFrequency = 50
	}
	if cfg.MaxRepresentatives <= 0 {
		cfg.MaxRepresentatives = 3
	}
	return &Detector{source: source, coverage: coverage, cfg: cfg, Now: time.Now}
}

// Unanswered reports whether an interaction counts as gap evidence: it
// was never resolved, or it was resolved with a weak answer.
func Unanswered(it types.Interaction, lowConfidence float64) bool {
	if !it.Resolved {
		return true
	}
	return it.AnswerConfidence > 0 && it.AnswerConfidence < lowConfidence
}

// QuestionText is the text clustered for an interaction.
func QuestionText(it types.Interaction) string {
	if t := strings.TrimSpace(it.Text); t != "" {
		return t
	}
	return strings.TrimSpace(it.Subject)
}

// Detect returns gaps from the last lookbackDays days whose cluster holds
// at least minFrequency questions, highest priority first. Too little data
// yields an empty list.
func (d *Detector) Detect(ctx context.Context, lookbackDays, minFrequency int) ([]types.KnowledgeGap, error) {
	if minFrequency < 1 {
		minFrequency = 1
	}
	now := d.Now()
	var from time.Time
	if lookbackDays > 0 {
		from = now.AddDate(0, 0, -lookbackDays)
	}
	interactions, err := d.source.Interactions(ctx, from, time.Time{})
	if err != nil {
		return nil, err
	}

	var evidence []types.Interaction
	for _, it := range interactions {
		if Unanswered(it, d.cfg.LowConfidence) && QuestionText(it) != "" {
			evidence = append(evidence, it)
		}
	}

	gaps := []types.KnowledgeGap{}
	if len(evidence) < minFrequency {
		return gaps, nil
	}

	texts := make([]string, len(evidence))
	for i, it := range evidence {
		texts[i] = QuestionText(it)
	}

	for _, members := range cluster.Group(texts, d.cfg.SimilarityThreshold) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(members) < minFrequency {
			continue
		}
		group := make([]types.Interaction, len(members))
		for i, m := range members {
			group[i] = evidence[m]
		}
		gap := d.buildGap(group)

		if d.coverage != nil && d.cfg.CoverageThreshold > 0 {
			covered, err := d.coverage.Covered(ctx, gap.Topic)
			if err != nil {
				slog.Warn("coverage check failed; keeping gap", "topic", gap.Topic, "error", err)
			} else if covered {
				slog.Debug("gap already covered", "topic", gap.Topic)
				continue
			}
		}
		gaps = append(gaps, gap)
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].PriorityScore != gaps[j].PriorityScore {
			return gaps[i].PriorityScore > gaps[j].PriorityScore
		}
		if gaps[i].Frequency != gaps[j].Frequency {
			return gaps[i].Frequency > gaps[j].Frequency
		}
		return gaps[i].Topic < gaps[j].Topic
	})
	return gaps, nil
}

func (d *Detector) buildGap(group []types.Interaction) types.KnowledgeGap {
	texts := make([]string, len(group))
	topics := make([]string, 0, len(group))
	categories := make([]string, 0, len(group))
	var impactSum float64
	var impactN int
	for i, it := range group {
		texts[i] = QuestionText(it)
		if it.Topic != "" {
			topics = append(topics, it.Topic)
		}
		if it.Category != "" {
			categories = append(categories, it.Category)
		}
		if it.Impact > 0 {
			impactSum += math.Min(1, it.Impact)
			impactN++
		}
	}

	phrasings := cluster.Phrasings(texts)
	gap := types.KnowledgeGap{
		Topic:     phrasings[0].Text,
		Frequency: len(group),
	}
	// A tagged topic wins when most of the cluster agrees on it.
	if tagged := cluster.Phrasings(topics); len(tagged) > 0 && tagged[0].Count*2 > len(group) {
		gap.Topic = tagged[0].Text
	}
	if cats := cluster.Phrasings(categories); len(cats) > 0 {
		gap.Category = cats[0].Text
	}
	for i := 0; i < len(phrasings) && i < d.cfg.MaxRepresentatives; i++ {
		gap.RepresentativeQuestions = append(gap.RepresentativeQuestions, phrasings[i].Text)
	}

	var avgImpact float64
	if impactN > 0 {
		avgImpact = impactSum / float64(len(group))
	}
	gap.PriorityScore = PriorityScore(len(group), d.cfg.SaturationFrequency, avgImpact, impactN > 0)
	return gap
}

// PriorityScore maps cluster frequency, and business impact when any
// member carries it, to [0, 100]. Frequency grows logarithmically and
// saturates at the configured size.
func PriorityScore(frequency, saturation int, avgImpact float64, hasImpact bool) float64 {
	if frequency <= 0 {
		return 0
	}
	freq := math.Min(1, math.Log2(1+float64(frequency))/math.Log2(1+float64(saturation)))
	score := 100 * freq
	if hasImpact {
		score = 100 * (0.7*freq + 0.3*math.Min(1, avgImpact))
	}
	return math.Round(score*10) / 10
}
