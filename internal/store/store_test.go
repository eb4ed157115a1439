// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// --- test helpers ---

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	s.Now = func() time.Time { return baseTime }
	t.Cleanup(func() { s.Close() })
	return s
}

func seedArticle(t *testing.T, s *Store, id, title, content, category string) {
	t.Helper()
	_, err := s.UpsertArticle(context.Background(), types.Article{
		ID: id, Title: title, Content: content, Category: category,
	})
	require.NoError(t, err)
}

func record(t *testing.T, s *Store, policy VotePolicy, articleID string, et types.EventType, actor string, ts time.Time) bool {
	t.Helper()
	ev, err := s.RecordFeedback(context.Background(), types.FeedbackEvent{
		ArticleID: articleID, EventType: et, ActorID: actor, Timestamp: ts,
	}, policy)
	require.NoError(t, err)
	return ev.Tracked
}

// --- articles ---

func TestUpsertArticle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	res, err := s.UpsertArticle(ctx, types.Article{ID: "a1", Title: "Billing", Content: "v1", Category: "billing", QualityScore: 40})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Created: true, Changed: true}, res)

	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, baseTime, got.CreatedAt)
	assert.Equal(t, baseTime, got.UpdatedAt)
	assert.Equal(t, 40, got.QualityScore)

	later := baseTime.Add(48 * time.Hour)
	s.Now = func() time.Time { return later }

	// Same content: only the score moves.
	res, err = s.UpsertArticle(ctx, types.Article{ID: "a1", Title: "Billing", Content: "v1", Category: "billing", QualityScore: 45})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{}, res)
	got, err = s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, baseTime, got.UpdatedAt)
	assert.Equal(t, 45, got.QualityScore)

	res, err = s.UpsertArticle(ctx, types.Article{ID: "a1", Title: "Billing", Content: "v2", Category: "billing"})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Changed: true}, res)
	got, err = s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, later, got.UpdatedAt)
	assert.Equal(t, baseTime, got.CreatedAt)
	assert.Equal(t, "v2", got.Content)
}

func TestUpsertArticleIgnoresCounters(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	_, err := s.UpsertArticle(ctx, types.Article{ID: "a1", Title: "T", Content: "c", HelpfulCount: 99, ViewCount: 5})
	require.NoError(t, err)
	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Zero(t, got.HelpfulCount)
	assert.Zero(t, got.ViewCount)
}

func TestUpsertArticleRequiresID(t *testing.T) {
	s := testStore(t)
	_, err := s.UpsertArticle(context.Background(), types.Article{Title: "no id"})
	assert.Error(t, err)
}

func TestGetArticleNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetArticle(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndDeleteArticles(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seedArticle(t, s, "b", "B", "content", "billing")
	seedArticle(t, s, "a", "A", "content", "account")
	seedArticle(t, s, "c", "C", "content", "billing")

	all, err := s.ListArticles(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	billing, err := s.ListArticles(ctx, "billing")
	require.NoError(t, err)
	assert.Len(t, billing, 2)

	byID, err := s.GetArticles(ctx, []string{"a", "c", "zzz"})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, "C", byID["c"].Title)

	ok, err := s.DeleteArticle(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeleteArticle(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err = s.ListArticles(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestKeywordSearch(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seedArticle(t, s, "billing", "Upgrade your plan", "Open billing settings and choose a new plan to upgrade.", "billing")
	seedArticle(t, s, "export", "Export data", "Use the export button to download a CSV.", "data")
	seedArticle(t, s, "misc", "Team settings", "Invite teammates from the team page.", "account")

	results, err := s.KeywordSearch(ctx, "How do I upgrade my plan?", "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "billing", results[0].ArticleID)
	assert.Equal(t, 1.0, results[0].SimilarityScore)
	assert.Equal(t, "keyword", results[0].Backend)

	results, err = s.KeywordSearch(ctx, "upgrade plan", "data", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.KeywordSearch(ctx, "how do i", "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Content edits are visible to FTS through the update trigger.
	seedArticle(t, s, "misc", "Team settings", "You can also upgrade seats here.", "account")
	results, err = s.KeywordSearch(ctx, "upgrade", "account", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "misc", results[0].ArticleID)
}

func TestReadArticlesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.yaml")
	content := `- id: billing-upgrade
  title: Upgrade your plan
  category: billing
  content: |
    ## Steps
    1. Open billing.
- id: reset-password
  title: Reset your password
  category: account
  content: Click "Forgot password".
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	articles, err := ReadArticlesYAML(path)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "billing-upgrade", articles[0].ID)
	assert.Contains(t, articles[0].Content, "## Steps")

	_, err = ReadArticlesYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestShippedFixturesLoad(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	articles, err := ReadArticlesYAML(filepath.Join("..", "..", "fixtures", "articles.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, articles)
	for _, a := range articles {
		_, err := s.UpsertArticle(ctx, a)
		require.NoError(t, err, a.ID)
	}

	items, err := ReadInteractionsYAML(filepath.Join("..", "..", "fixtures", "interactions.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, items)
	for _, it := range items {
		assert.NotEmpty(t, it.Text)
		assert.Contains(t, []string{types.ChannelTicket, types.ChannelConversation}, it.Channel)
	}
	n, err := s.AddInteractions(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, len(items), n)
}

// --- feedback ---

func TestHelpfulnessRatioAfterVotes(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seedArticle(t, s, "a1", "T", "c", "")

	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.HelpfulnessRatio)

	for i := 0; i < 3; i++ {
		record(t, s, CountEveryVote, "a1", types.EventHelpful, "", baseTime)
	}
	record(t, s, CountEveryVote, "a1", types.EventNotHelpful, "", baseTime)
	record(t, s, CountEveryVote, "a1", types.EventView, "", baseTime)

	got, err = s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.HelpfulCount)
	assert.Equal(t, int64(1), got.NotHelpfulCount)
	assert.Equal(t, int64(1), got.ViewCount)
	assert.InDelta(t, 0.75, got.HelpfulnessRatio, 1e-9)
}

func TestRecordFeedbackUnknownArticle(t *testing.T) {
	s := testStore(t)
	_, err := s.RecordFeedback(context.Background(), types.FeedbackEvent{
		ArticleID: "missing", EventType: types.EventView,
	}, OneVotePerActor)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.RecordFeedback(context.Background(), types.FeedbackEvent{
		ArticleID: "missing", EventType: "bogus",
	}, OneVotePerActor)
	assert.Error(t, err)
}

func TestRecordFeedbackRejectsReplayedID(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seedArticle(t, s, "a1", "T", "c", "")

	ev := types.FeedbackEvent{ID: "evt-1", ArticleID: "a1", EventType: types.EventHelpful}
	_, err := s.RecordFeedback(ctx, ev, CountEveryVote)
	require.NoError(t, err)

	_, err = s.RecordFeedback(ctx, ev, CountEveryVote)
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.HelpfulCount)
}

func TestVotePolicies(t *testing.T) {
	tests := []struct {
		name           string
		policy         VotePolicy
		wantTracked    []bool
		wantLogged     []bool
		wantHelpful    int64
		wantNotHelpful int64
	}{
		{
			name:           "one vote per actor",
			policy:         OneVotePerActor,
			wantTracked:    []bool{true, false, true, true, true},
			wantLogged:     []bool{false, false, true, true, true},
			wantHelpful:    1,
			wantNotHelpful: 2,
		},
		{
			name:           "count every vote",
			policy:         CountEveryVote,
			wantTracked:    []bool{true, true, true, true, true},
			wantLogged:     []bool{true, true, true, true, true},
			wantHelpful:    3,
			wantNotHelpful: 2,
		},
	}

	// u1 helpful, u1 helpful again, u1 switches to not_helpful,
	// anonymous not_helpful, u2 helpful.
	votes := []struct {
		et    types.EventType
		actor string
	}{
		{types.EventHelpful, "u1"},
		{types.EventHelpful, "u1"},
		{types.EventNotHelpful, "u1"},
		{types.EventNotHelpful, ""},
		{types.EventHelpful, "u2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := testStore(t)
			seedArticle(t, s, "a1", "T", "c", "")

			var tracked []bool
			for _, v := range votes {
				tracked = append(tracked, record(t, s, tt.policy, "a1", v.et, v.actor, baseTime))
			}
			assert.Equal(t, tt.wantTracked, tracked)

			got, err := s.GetArticle(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantHelpful, got.HelpfulCount)
			assert.Equal(t, tt.wantNotHelpful, got.NotHelpfulCount)
			assert.InDelta(t,
				types.HelpfulnessRatio(tt.wantHelpful, tt.wantNotHelpful),
				got.HelpfulnessRatio, 1e-9)

			// Counters are reconstructable from the log.
			n, err := s.RebuildCounters(ctx, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, len(votes), n)
			rebuilt, err := s.GetArticle(ctx, "a1")
			require.NoError(t, err)
			assert.Equal(t, got, rebuilt)

			events, err := s.FeedbackEvents(ctx, "a1")
			require.NoError(t, err)
			require.Len(t, events, len(votes))
			for i, ev := range events {
				assert.Equal(t, tt.wantLogged[i], ev.Tracked, "event %d", i)
				assert.NotEmpty(t, ev.ID)
			}

			activity, err := s.FeedbackActivity(ctx, time.Time{})
			require.NoError(t, err)
			require.Len(t, activity, 1)
			assert.Equal(t, tt.wantHelpful, activity[0].Helpful, "tracked events sum to the counters")
			assert.Equal(t, tt.wantNotHelpful, activity[0].NotHelpful)
		})
	}
}

func TestSwitchedVotesKeepLogAndCountersInStep(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seedArticle(t, s, "a1", "T", "c", "")

	for _, et := range []types.EventType{types.EventHelpful, types.EventNotHelpful, types.EventHelpful, types.EventNotHelpful} {
		assert.True(t, record(t, s, OneVotePerActor, "a1", et, "u1", baseTime))
	}

	check := func(stage string) {
		got, err := s.GetArticle(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.HelpfulCount, stage)
		assert.Equal(t, int64(1), got.NotHelpfulCount, stage)

		activity, err := s.FeedbackActivity(ctx, time.Time{})
		require.NoError(t, err)
		require.Len(t, activity, 1, stage)
		assert.Equal(t, ArticleActivity{ArticleID: "a1", NotHelpful: 1}, activity[0], stage)
	}
	check("recorded")

	_, err := s.RebuildCounters(ctx, OneVotePerActor)
	require.NoError(t, err)
	check("rebuilt")
}

func TestRebuildCountersSwitchesPolicy(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seedArticle(t, s, "a1", "T", "c", "")
	for i := 0; i < 3; i++ {
		record(t, s, CountEveryVote, "a1", types.EventHelpful, "u1", baseTime)
	}

	_, err := s.RebuildCounters(ctx, OneVotePerActor)
	require.NoError(t, err)
	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.HelpfulCount)
}

func TestRecordFeedbackConcurrent(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seedArticle(t, s, "a1", "T", "c", "")

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			et := types.EventView
			if i%2 == 0 {
				et = types.EventHelpful
			}
			_, err := s.RecordFeedback(ctx, types.FeedbackEvent{ArticleID: "a1", EventType: et}, OneVotePerActor)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetArticle(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(n/2), got.ViewCount)
	assert.Equal(t, int64(n/2), got.HelpfulCount)
}

func TestFeedbackActivityWindows(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	seedArticle(t, s, "a1", "T", "c", "")
	seedArticle(t, s, "a2", "T2", "c", "")

	record(t, s, OneVotePerActor, "a1", types.EventView, "", baseTime.AddDate(0, 0, -5))
	record(t, s, OneVotePerActor, "a1", types.EventView, "", baseTime.AddDate(0, 0, -60))
	record(t, s, OneVotePerActor, "a2", types.EventHelpful, "u1", baseTime.AddDate(0, 0, -10))
	record(t, s, OneVotePerActor, "a2", types.EventHelpful, "u1", baseTime.AddDate(0, 0, -1)) // untracked

	recent, err := s.FeedbackActivity(ctx, baseTime.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, []ArticleActivity{
		{ArticleID: "a1", Views: 1},
		{ArticleID: "a2", Helpful: 1},
	}, recent)

	all, err := s.FeedbackActivity(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []ArticleActivity{
		{ArticleID: "a1", Views: 2},
		{ArticleID: "a2", Helpful: 1},
	}, all)
}

// --- interactions ---

func TestInteractionsWindow(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	n, err := s.AddInteractions(ctx, []types.Interaction{
		{ID: "t1", Text: "How do I export data?", CreatedAt: baseTime.AddDate(0, 0, -40)},
		{ID: "t2", Text: "How do I export data?", CreatedAt: baseTime.AddDate(0, 0, -10), Resolved: true},
		{ID: "t3", Text: "How do I import data?", CreatedAt: baseTime.AddDate(0, 0, -2), Channel: types.ChannelConversation},
		{Text: "no id"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := s.Interactions(ctx, baseTime.AddDate(0, 0, -30), time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "t2", got[0].ID)
	assert.True(t, got[0].Resolved)
	assert.Equal(t, types.ChannelTicket, got[0].Channel)
	assert.Equal(t, types.ChannelConversation, got[1].Channel)
	assert.NotEmpty(t, got[2].ID)

	got, err = s.Interactions(ctx, baseTime.AddDate(0, 0, -30), baseTime.AddDate(0, 0, -5))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].ID)
}

// --- read models ---

func TestSaveSuggestionsUpsertsByNormalizedTitle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	first := []types.ArticleSuggestion{
		{Title: "How to export data", Frequency: 5, Priority: 40, Source: types.SourceGapDetection},
		{Title: "Invoice download", Frequency: 3, Priority: 70, Source: types.SourceTicketMining},
	}
	require.NoError(t, s.SaveSuggestions(ctx, first))
	id := first[0].ID

	second := []types.ArticleSuggestion{
		{Title: "how to  EXPORT data!", Frequency: 9, Priority: 80, Source: types.SourceGapDetection, Evidence: []string{"q1"}},
	}
	require.NoError(t, s.SaveSuggestions(ctx, second))
	assert.Equal(t, id, second[0].ID)

	got, err := s.ListSuggestions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, 9, got[0].Frequency)
	assert.Equal(t, []string{"q1"}, got[0].Evidence)
	assert.Equal(t, "Invoice download", got[1].Title)
}

func TestSaveFAQCandidatesNeverPublished(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	require.NoError(t, s.SaveFAQCandidates(ctx, []types.FAQCandidate{
		{Question: "How do I reset my password?", DraftAnswer: "Use the reset link.", Frequency: 4, Status: "published"},
		{Question: "How do I export data?", DraftAnswer: "Use export.", Frequency: 7, Status: types.FAQPendingReview, Sources: []string{"export"}},
	}))

	got, err := s.ListFAQCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "How do I export data?", got[0].Question)
	assert.Equal(t, types.FAQPendingReview, got[0].Status)
	assert.Equal(t, []string{"export"}, got[0].Sources)
	assert.Equal(t, types.FAQDraft, got[1].Status)
}
