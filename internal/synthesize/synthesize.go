// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesize turns a ranked result list into a grounded answer
// with citations and a confidence score.
package synthesize

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/pdiddy/kb-engine/internal/llm"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// InsufficientAnswer is returned when nothing grounds an answer.
const InsufficientAnswer = "There is insufficient information in the knowledge base to answer this question."

// Confidence weights for the top result's signals.
const (
	relevanceWeight = 0.45
	qualityWeight   = 0.35
	rankWeight      = 0.20
)

// excerptRunes bounds the article text placed in a prompt per source.
const excerptRunes = 1500

var answerPromptTmpl = template.Must(template.New("answer").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Answer the customer's question using only the knowledge base articles below.
If the articles do not contain the answer, say that the information is not available. Do not invent steps, settings, or prices.
Keep the answer short and practical.

Question: {{.Query}}
{{range $i, $s := .Sources}}
Article {{inc $i}}: {{$s.Title}}
{{$s.Excerpt}}
{{end}}`))

type promptSource struct {
	Title   string
	Excerpt string
}

// Synthesizer builds answers. A nil generator selects the extractive
// answer built from the source articles.
type Synthesizer struct {
	generator llm.Generator
	cfg       types.SynthesizeConfig
}

// New creates a Synthesizer.
func New(generator llm.Generator, cfg types.SynthesizeConfig) *Synthesizer {
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	if cfg.FallbackConfidenceCap <= 0 {
		cfg.FallbackConfidenceCap = 0.6
	}
	return &Synthesizer{generator: generator, cfg: cfg}
}

// Insufficient returns the zero-confidence answer.
func Insufficient() types.SynthesizedAnswer {
	return types.SynthesizedAnswer{Answer: InsufficientAnswer, Sources: []string{}}
}

// Confidence scores how well the top result grounds an answer. Only the
// best result counts, so weak secondary sources never dilute it.
func Confidence(top types.RankedResult) float64 {
	c := relevanceWeight*top.Relevance + qualityWeight*top.Quality + rankWeight*top.RankScore
	return math.Max(0, math.Min(1, c))
}

// Sources picks the grounding set: the top result plus any of the next
// TopN-1 results relevant enough to contribute.
func (s *Synthesizer) Sources(ranked []types.RankedResult) []types.RankedResult {
	var out []types.RankedResult
	for i, r := range ranked {
		if i >= s.cfg.TopN {
			break
		}
		if i == 0 || r.Relevance >= s.cfg.MinSourceRelevance {
			out = append(out, r)
		}
	}
	return out
}

// Synthesize answers query from ranked, which must already be sorted.
// It never fails: generation errors degrade to the extractive answer with
// capped confidence.
func (s *Synthesizer) Synthesize(ctx context.Context, ranked []types.RankedResult, query string) types.SynthesizedAnswer {
	if len(ranked) == 0 {
		return Insufficient()
	}

	sources := s.Sources(ranked)
	answer := types.SynthesizedAnswer{
		Sources:    make([]string, len(sources)),
		Confidence: Confidence(ranked[0]),
	}
	for i, src := range sources {
		answer.Sources[i] = src.ArticleID
	}

	for _, src := range sources {
		if src.Backend == "keyword" {
			answer.Degraded = true
			break
		}
	}

	if s.generator != nil {
		text, err := s.generate(ctx, sources, query)
		if err == nil && text != "" {
			answer.Answer = text
		} else {
			slog.Warn("answer generation failed, using extractive answer", "error", err)
			answer.Degraded = true
		}
	}
	if answer.Answer == "" {
		answer.Answer = Extractive(sources)
	}
	if answer.Degraded {
		answer.Confidence = math.Min(answer.Confidence, s.cfg.FallbackConfidenceCap)
	}
	return answer
}

func (s *Synthesizer) generate(ctx context.Context, sources []types.RankedResult, query string) (string, error) {
	data := struct {
		Query   string
		Sources []promptSource
	}{Query: query}
	for _, src := range sources {
		data.Sources = append(data.Sources, promptSource{
			Title:   src.Article.Title,
			Excerpt: truncate(strings.TrimSpace(src.Article.Content), excerptRunes),
		})
	}

	var buf bytes.Buffer
	if err := answerPromptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	text, err := s.generator.Generate(ctx, buf.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Extractive quotes the opening of each source, most relevant first.
func Extractive(sources []types.RankedResult) string {
	if len(sources) == 0 {
		return InsufficientAnswer
	}
	var b strings.Builder
	for i, src := range sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := src.Article.Title
		if title == "" {
			title = src.Title
		}
		lead := leadSentences(src.Article.Content, 2)
		if lead == "" {
			fmt.Fprintf(&b, "See %q.", title)
			continue
		}
		fmt.Fprintf(&b, "From %q: %s", title, lead)
	}
	return b.String()
}

// leadSentences returns the first n sentences of the plain text, skipping
// markdown headings and list markers.
func leadSentences(content string, n int) string {
	var words []string
	sentences := 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimLeft(line, "-*> ")
		for _, w := range strings.Fields(line) {
			words = append(words, w)
			if strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?") {
				sentences++
				if sentences == n {
					return strings.Join(words, " ")
				}
			}
		}
	}
	return truncate(strings.Join(words, " "), 400)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
