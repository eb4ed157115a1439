// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/kb-engine/pkg/types"
)

const richContent = `Use this guide to move your workspace to a higher plan.

## Before you start

You need the Owner role. Billing changes apply to the whole workspace.

## Steps

1. Open Settings and choose Billing.
2. Select Change plan.
3. Pick the new plan and confirm.

For example, moving from Starter to Team with 12 seats charges the prorated difference today.

## Troubleshooting

If the Change plan button is missing, ask an Owner to grant you billing access.
See https://example.com/billing for invoices.`

func TestRichArticleBeatsOneSentence(t *testing.T) {
	rich := Check(types.Article{ID: "rich", Title: "Upgrade your plan", Content: richContent})
	oneSentence := Check(types.Article{ID: "short", Title: "Upgrade your plan", Content: "Go to billing and upgrade."})

	assert.Greater(t, rich.OverallScore, oneSentence.OverallScore)
	assert.GreaterOrEqual(t, rich.OverallScore, 70)
	assert.LessOrEqual(t, oneSentence.OverallScore, singleSentenceCap)
	assert.Contains(t, issueTypes(oneSentence), IssueSingleSentence)
	assert.NotContains(t, issueTypes(rich), IssueNoExamples)
	assert.NotContains(t, issueTypes(rich), IssueNoTroubleshooting)
}

func TestCheckIssues(t *testing.T) {
	tests := []struct {
		name       string
		article    types.Article
		wantIssues []string
		wantScore  int
	}{
		{
			name:       "title only",
			article:    types.Article{Title: "Upgrade your plan"},
			wantIssues: []string{IssueTitleOnly},
			wantScore:  5,
		},
		{
			name:       "nothing at all",
			article:    types.Article{},
			wantIssues: []string{IssueMissingTitle, IssueTitleOnly},
			wantScore:  0,
		},
		{
			name:    "one sentence",
			article: types.Article{Title: "Upgrade", Content: "Go to billing and upgrade."},
			wantIssues: []string{IssueTooShort, IssueNoHeadings, IssueNoExamples,
				IssueNoTroubleshooting, IssueNoSteps, IssueSingleSentence},
			wantScore: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Check(tt.article)
			assert.Equal(t, tt.wantIssues, issueTypes(report))
			assert.Equal(t, tt.wantScore, report.OverallScore)
		})
	}
}

func TestCheckIsDeterministic(t *testing.T) {
	a := types.Article{ID: "a", Title: "Upgrade your plan", Content: richContent}
	first := Check(a)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Check(a))
	}

	// Usage counters never affect the score.
	a.ViewCount, a.HelpfulCount, a.HelpfulnessRatio = 1000, 900, 0.9
	assert.Equal(t, first, Check(a))
}

func TestScoreBounds(t *testing.T) {
	long := "# Intro\n\n# Steps\n\n- one\n- two\n\nFor example this.\n\n## FAQ\n\nhttps://x.io\n\n" + strings.Repeat("word ", 600)
	report := Check(types.Article{Title: "Full", Content: long})
	assert.Equal(t, 100, report.OverallScore)
	assert.Empty(t, report.Issues)
}

// --- test helpers ---

func issueTypes(r types.QualityReport) []string {
	out := []string{}
	for _, i := range r.Issues {
		out = append(out, i.Type)
	}
	return out
}
