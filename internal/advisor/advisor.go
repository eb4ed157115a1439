// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package advisor decides whether an article needs editing. It combines
// age, reader feedback, retired product terms and structural quality into
// one recommendation whose priority grows with the total severity.
package advisor

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/kb-engine/internal/feedback"
	"github.com/pdiddy/kb-engine/internal/quality"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// Reason types.
const (
	ReasonOutdated            = "outdated"
	ReasonLowHelpfulness      = "low_helpfulness"
	ReasonDeprecatedReference = "deprecated_reference"
	ReasonLowQuality          = "low_quality"
)

// Severity levels per signal.
const (
	severityMild   = 2
	severitySevere = 3
)

// veryUnhelpful marks a helpfulness ratio as severe.
const veryUnhelpful = 0.3

type deprecatedTerm struct {
	types.DeprecatedTerm
	re *regexp.Regexp
}

// Advisor evaluates articles against configured thresholds.
type Advisor struct {
	cfg      types.AdvisorConfig
	feedback types.FeedbackConfig
	terms    []deprecatedTerm

	// Now is the clock used for age; tests replace it.
	Now func() time.Time
}

// New creates an Advisor and compiles the deprecated term list. Terms
// match case-insensitively on word boundaries.
func New(cfg types.AdvisorConfig, fb types.FeedbackConfig) *Advisor {
	a := &Advisor{cfg: cfg, feedback: fb, Now: time.Now}
	for _, t := range cfg.DeprecatedTerms {
		term := strings.TrimSpace(t.Term)
		if term == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(term) + `(?:$|[^\p{L}\p{N}_])`)
		a.terms = append(a.terms, deprecatedTerm{DeprecatedTerm: t, re: re})
	}
	return a
}

// Check returns the recommendation for one article. Any signal alone sets
// NeedsUpdate; UpdatePriority is empty when nothing triggered.
func (a *Advisor) Check(article types.Article) types.UpdateRecommendation {
	rec := types.UpdateRecommendation{
		ArticleID:       article.ID,
		Title:           article.Title,
		Reasons:         []types.Issue{},
		Suggestions:     []string{},
		EstimatedEffort: types.EffortNone,
	}
	severity := 0
	add := func(kind string, sev int, detail string, suggestions ...string) {
		rec.Reasons = append(rec.Reasons, types.Issue{Type: kind, Detail: detail})
		rec.Suggestions = append(rec.Suggestions, suggestions...)
		severity += sev
	}

	report := quality.Check(article)
	lowQuality := report.OverallScore < a.cfg.QualityThreshold
	lowHelpfulness := feedback.IsLowHelpfulness(article, a.feedback)

	threshold := a.cfg.StaleDays
	if lowQuality || lowHelpfulness {
		threshold = a.cfg.WeakStaleDays
	}
	if age := a.ageDays(article); threshold > 0 && age > threshold {
		sev := severityMild
		if age > 2*threshold {
			sev = severitySevere
		}
		add(ReasonOutdated, sev,
			fmt.Sprintf("last updated %d days ago; the limit for this article is %d days", age, threshold),
			fmt.Sprintf("Walk through every step against the current product; nothing has changed in %d days", age))
	}

	if lowHelpfulness {
		sev := severityMild
		if article.HelpfulnessRatio < veryUnhelpful {
			sev = severitySevere
		}
		pct := int(math.Round(article.HelpfulnessRatio * 100))
		add(ReasonLowHelpfulness, sev,
			fmt.Sprintf("%d%% of %d votes were helpful", pct, article.Votes()),
			fmt.Sprintf("Find where readers get stuck: only %d%% of %d voters found the article helpful", pct, article.Votes()))
	}

	if found := a.deprecatedMentions(article); len(found) > 0 {
		var names, fixes []string
		for _, t := range found {
			names = append(names, fmt.Sprintf("%q", t.Term))
			if t.Replacement != "" {
				fixes = append(fixes, fmt.Sprintf("Replace %q with %q", t.Term, t.Replacement))
			} else {
				fixes = append(fixes, fmt.Sprintf("Remove or rewrite the passages about %q, which is retired", t.Term))
			}
		}
		add(ReasonDeprecatedReference, severitySevere,
			"mentions retired "+strings.Join(names, ", "), fixes...)
	}

	if lowQuality {
		sev := severityMild
		if report.OverallScore < a.cfg.CriticalQuality {
			sev = severitySevere
		}
		var fixes []string
		for _, issue := range report.Issues {
			fixes = append(fixes, capitalize(issue.Detail))
		}
		add(ReasonLowQuality, sev,
			fmt.Sprintf("quality score %d/100 is below %d", report.OverallScore, a.cfg.QualityThreshold), fixes...)
	}

	rec.NeedsUpdate = len(rec.Reasons) > 0
	rec.UpdatePriority = Priority(severity)
	rec.EstimatedEffort = Effort(severity)
	return rec
}

// CheckAll returns the recommendations that need an update, most urgent
// first.
func (a *Advisor) CheckAll(articles []types.Article) []types.UpdateRecommendation {
	out := []types.UpdateRecommendation{}
	for _, article := range articles {
		if rec := a.Check(article); rec.NeedsUpdate {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].UpdatePriority.Rank(), out[j].UpdatePriority.Rank()
		if pi != pj {
			return pi > pj
		}
		if len(out[i].Reasons) != len(out[j].Reasons) {
			return len(out[i].Reasons) > len(out[j].Reasons)
		}
		return out[i].ArticleID < out[j].ArticleID
	})
	return out
}

// Priority maps a total severity to a priority bucket.
func Priority(severity int) types.UpdatePriority {
	switch {
	case severity >= 8:
		return types.PriorityCritical
	case severity >= 5:
		return types.PriorityHigh
	case severity >= 3:
		return types.PriorityMedium
	case severity > 0:
		return types.PriorityLow
	}
	return ""
}

// Effort maps a total severity to an editing effort bucket.
func Effort(severity int) types.Effort {
	switch {
	case severity == 0:
		return types.EffortNone
	case severity <= 3:
		return types.EffortMinor
	case severity <= 6:
		return types.EffortModerate
	}
	return types.EffortMajor
}

func (a *Advisor) ageDays(article types.Article) int {
	if article.UpdatedAt.IsZero() {
		return 0
	}
	return int(a.Now().Sub(article.UpdatedAt).Hours() / 24)
}

func (a *Advisor) deprecatedMentions(article types.Article) []types.DeprecatedTerm {
	text := article.Title + "\n" + article.Content
	var found []types.DeprecatedTerm
	for _, t := range a.terms {
		if t.re.MatchString(text) {
			found = append(found, t.DeprecatedTerm)
		}
	}
	return found
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
