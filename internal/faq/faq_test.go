// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package faq

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/internal/cluster"
	"github.com/pdiddy/kb-engine/pkg/types"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name      string
		phrasings []cluster.Phrasing
		want      string
	}{
		{"empty", nil, ""},
		{"question beats frequency", []cluster.Phrasing{
			{Text: "password reset steps", Count: 4},
			{Text: "How do I reset my password?", Count: 1},
		}, "How do I reset my password?"},
		{"frequency among questions", []cluster.Phrasing{
			{Text: "Reset password?", Count: 1},
			{Text: "How do I reset my password?", Count: 3},
		}, "How do I reset my password?"},
		{"shortest on ties", []cluster.Phrasing{
			{Text: "export data", Count: 3},
			{Text: "How do I export data?", Count: 1},
			{Text: "Export data?", Count: 1},
		}, "Export data?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.phrasings))
		})
	}
}

func TestIsQuestion(t *testing.T) {
	assert.True(t, IsQuestion("Export data?"))
	assert.True(t, IsQuestion("can I export my data"))
	assert.True(t, IsQuestion("How to reset password"))
	assert.False(t, IsQuestion("password reset steps"))
	assert.False(t, IsQuestion(""))
}

func TestGenerateClustersPhrasings(t *testing.T) {
	items := questions(
		"How do I reset my password?", "password reset steps", "Reset password",
		"How do I reset my password?",
		"Where can I download invoices?", "download invoices",
		"Delete workspace",
	)
	drafter := drafterFunc(func(_ context.Context, q string) (types.SynthesizedAnswer, error) {
		if strings.Contains(q, "password") {
			return types.SynthesizedAnswer{Answer: "Open Settings.", Sources: []string{"kb-1"}, Confidence: 0.85}, nil
		}
		return types.SynthesizedAnswer{Answer: "Maybe billing.", Sources: []string{"kb-2"}, Confidence: 0.3}, nil
	})

	got, err := testGenerator(items, drafter).Generate(context.Background(), 30, 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "How do I reset my password?", got[0].Question)
	assert.Equal(t, 4, got[0].Frequency)
	assert.ElementsMatch(t, []string{"password reset steps", "Reset password"}, got[0].Variants)
	assert.Equal(t, types.FAQPendingReview, got[0].Status)
	assert.Equal(t, "Open Settings.", got[0].DraftAnswer)
	assert.Equal(t, []string{"kb-1"}, got[0].Sources)

	assert.Equal(t, "Where can I download invoices?", got[1].Question)
	assert.Equal(t, types.FAQDraft, got[1].Status, "weakly grounded drafts stay drafts")
	assert.Equal(t, "Maybe billing.", got[1].DraftAnswer)
}

func TestGenerateNeverPublishes(t *testing.T) {
	items := questions("How do I export data?", "export data", "Export my data?")
	tests := []struct {
		name    string
		drafter Drafter
		want    types.FAQStatus
	}{
		{"no drafter", nil, types.FAQDraft},
		{"drafter fails", drafterFunc(func(context.Context, string) (types.SynthesizedAnswer, error) {
			return types.SynthesizedAnswer{}, errors.New("llm down")
		}), types.FAQDraft},
		{"nothing found", drafterFunc(func(context.Context, string) (types.SynthesizedAnswer, error) {
			return types.SynthesizedAnswer{Answer: "insufficient", Sources: []string{}}, nil
		}), types.FAQDraft},
		{"well grounded", drafterFunc(func(context.Context, string) (types.SynthesizedAnswer, error) {
			return types.SynthesizedAnswer{Answer: "Use Export.", Sources: []string{"kb-9"}, Confidence: 0.9}, nil
		}), types.FAQPendingReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testGenerator(items, tt.drafter).Generate(context.Background(), 30, 2, 0)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Status)
			if tt.want == types.FAQDraft {
				assert.Empty(t, got[0].DraftAnswer)
			}
		})
	}
}

func TestGenerateLimitAndMinFrequency(t *testing.T) {
	items := questions(
		"export data", "export data", "export data",
		"reset password", "reset password",
		"delete account",
	)
	g := testGenerator(items, nil)

	got, err := g.Generate(context.Background(), 30, 2, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "export data", got[0].Question)

	got, err = g.Generate(context.Background(), 30, 2, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = g.Generate(context.Background(), 30, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGenerateStopsOnCancel(t *testing.T) {
	items := questions("export data", "export data", "reset password", "reset password")
	ctx, cancel := context.WithCancel(context.Background())
	drafter := drafterFunc(func(context.Context, string) (types.SynthesizedAnswer, error) {
		cancel()
		return types.SynthesizedAnswer{Answer: "a", Sources: []string{"x"}, Confidence: 0.9}, nil
	})

	got, err := testGenerator(items, drafter).Generate(ctx, 30, 2, 0)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, got, 1, "completed drafts are kept")
	assert.Equal(t, types.FAQPendingReview, got[0].Status)
}

// --- test helpers ---

type fakeSource []types.Interaction

func (f fakeSource) Interactions(_ context.Context, from, _ time.Time) ([]types.Interaction, error) {
	var out []types.Interaction
	for _, it := range f {
		if !it.CreatedAt.Before(from) {
			out = append(out, it)
		}
	}
	return out, nil
}

type drafterFunc func(ctx context.Context, question string) (types.SynthesizedAnswer, error)

func (f drafterFunc) Draft(ctx context.Context, question string) (types.SynthesizedAnswer, error) {
	return f(ctx, question)
}

func testGenerator(items []types.Interaction, drafter Drafter) *Generator {
	g := New(fakeSource(items), drafter, types.FAQConfig{SimilarityThreshold: 0.5, ReviewConfidence: 0.5})
	g.Now = func() time.Time { return now }
	return g
}

func questions(texts ...string) []types.Interaction {
	out := make([]types.Interaction, len(texts))
	for i, text := range texts {
		out[i] = types.Interaction{
			Text:      text,
			Channel:   types.ChannelConversation,
			Resolved:  true,
			CreatedAt: now.AddDate(0, 0, -i),
		}
	}
	return out
}
