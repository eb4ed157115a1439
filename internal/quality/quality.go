// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality scores the structural completeness of an article. The
// score depends only on title and content, never on usage, so the same
// article always gets the same report.
package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// Issue types reported by Check.
const (
	IssueTitleOnly         = "title_only"
	IssueMissingTitle      = "missing_title"
	IssueSingleSentence    = "single_sentence"
	IssueTooShort          = "too_short"
	IssueNoHeadings        = "no_headings"
	IssueNoExamples        = "no_examples"
	IssueNoTroubleshooting = "no_troubleshooting"
	IssueNoSteps           = "no_steps"
)

// Component maxima. They sum to 100.
const (
	lengthPoints          = 25
	headingPoints         = 20
	examplePoints         = 15
	troubleshootingPoints = 15
	stepPoints            = 10
	titlePoints           = 5
	linkPoints            = 5
	paragraphPoints       = 5
)

// Score caps for degenerate content.
const (
	singleSentenceCap = 10
	titleOnlyCap      = 5
)

// TargetWords is the length at which an article earns full length points.
const TargetWords = 300

var (
	headingRe      = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	listItemRe     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+\S`)
	linkRe         = regexp.MustCompile(`https?://|\]\(`)
	sentenceEndRe  = regexp.MustCompile(`[.!?](?:\s|$)`)
	exampleRe      = regexp.MustCompile(`(?i)\bfor example\b|\bexample\b|\be\.g\.|\bsample\b`)
	troubleshootRe = regexp.MustCompile(`(?i)troubleshoot|\bfaq\b|frequently asked|common (?:issues|problems|errors)|if (?:this|that|it) (?:does not|doesn't) work`)
)

// Check scores a and lists what is missing. Issues come in a fixed order.
func Check(a types.Article) types.QualityReport {
	report := types.QualityReport{ArticleID: a.ID, Issues: []types.Issue{}}
	add := func(kind, detail string) {
		report.Issues = append(report.Issues, types.Issue{Type: kind, Detail: detail})
	}

	title := strings.TrimSpace(a.Title)
	content := strings.TrimSpace(a.Content)
	score := 0

	if title != "" {
		score += titlePoints
	} else {
		add(IssueMissingTitle, "the article has no title")
	}

	if content == "" {
		add(IssueTitleOnly, "the article has no body text")
		report.OverallScore = min(score, titleOnlyCap)
		return report
	}

	words := len(strings.Fields(content))
	score += lengthScore(words)
	if words < TargetWords/2 {
		add(IssueTooShort, fmt.Sprintf("%d words; aim for at least %d", words, TargetWords/2))
	}

	switch headings := len(headingRe.FindAllString(content, -1)); {
	case headings >= 2:
		score += headingPoints
	case headings == 1:
		score += headingPoints / 2
	default:
		add(IssueNoHeadings, "add section headings so readers can scan the article")
	}

	if strings.Contains(content, "```") || exampleRe.MatchString(content) {
		score += examplePoints
	} else {
		add(IssueNoExamples, "add a worked example or sample input and output")
	}

	if troubleshootRe.MatchString(content) {
		score += troubleshootingPoints
	} else {
		add(IssueNoTroubleshooting, "add a troubleshooting or FAQ section for common problems")
	}

	if len(listItemRe.FindAllString(content, -1)) >= 2 {
		score += stepPoints
	} else {
		add(IssueNoSteps, "break the procedure into numbered steps")
	}

	if linkRe.MatchString(content) {
		score += linkPoints
	}
	if paragraphs(content) >= 3 {
		score += paragraphPoints
	}

	if sentences(content) <= 1 {
		add(IssueSingleSentence, "the body is a single sentence")
		score = min(score, singleSentenceCap)
	}

	report.OverallScore = max(0, min(100, score))
	return report
}

func lengthScore(words int) int {
	switch {
	case words >= TargetWords:
		return lengthPoints
	case words >= TargetWords/2:
		return 18
	case words >= TargetWords/4:
		return 10
	case words >= 30:
		return 5
	}
	return 0
}

func paragraphs(content string) int {
	n := 0
	for _, p := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

// sentences counts terminated sentences plus list items and headings,
// which stand on their own without punctuation.
func sentences(content string) int {
	n := len(sentenceEndRe.FindAllString(content, -1))
	n += len(listItemRe.FindAllString(content, -1))
	n += len(headingRe.FindAllString(content, -1))
	if n == 0 {
		return 1
	}
	return n
}
