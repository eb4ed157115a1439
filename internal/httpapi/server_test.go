// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/internal/feedback"
	"github.com/pdiddy/kb-engine/internal/store"
	"github.com/pdiddy/kb-engine/pkg/types"
)

func TestHealth(t *testing.T) {
	rec := serve(t, newFakeService(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnswer(t *testing.T) {
	svc := newFakeService()
	rec := serve(t, svc, http.MethodPost, "/api/v1/answer", `{"query":"upgrade plan","category":"billing"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.SynthesizedAnswer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Go to Billing.", got.Answer)
	assert.Equal(t, []string{"kb-1"}, got.Sources)
	assert.Equal(t, "upgrade plan|billing", svc.lastQuery)
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"answer missing query", "/api/v1/answer", `{"category":"billing"}`},
		{"answer malformed", "/api/v1/answer", `{"query":`},
		{"answer unknown field", "/api/v1/answer", `{"query":"x","top_k":3}`},
		{"search limit too large", "/api/v1/search", `{"query":"x","limit":1000}`},
		{"feedback missing article", "/api/v1/feedback", `{"event_type":"helpful"}`},
		{"feedback bad event", "/api/v1/feedback", `{"article_id":"kb-1","event_type":"love"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, newFakeService(), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestSearch(t *testing.T) {
	svc := newFakeService()
	rec := serve(t, svc, http.MethodPost, "/api/v1/search", `{"query":"upgrade","limit":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Results, 1)
	assert.Equal(t, "kb-1", got.Results[0].Article.ID)
	assert.Equal(t, 3, svc.lastLimit)

	rec = serve(t, svc, http.MethodPost, "/api/v1/search", `{"query":"nothing"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestFeedback(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"tracked", `{"article_id":"kb-1","event_type":"helpful","actor_id":"u1"}`, http.StatusAccepted, `{"tracked":true}`},
		{"repeated vote", `{"article_id":"kb-1","event_type":"helpful","actor_id":"u1"}`, http.StatusAccepted, `{"tracked":false}`},
		{"unknown article", `{"article_id":"missing","event_type":"view"}`, http.StatusNotFound, ""},
	}
	svc := newFakeService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, svc, http.MethodPost, "/api/v1/feedback", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestArticleChecks(t *testing.T) {
	svc := newFakeService()

	rec := serve(t, svc, http.MethodGet, "/api/v1/articles/kb-1/quality", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report types.QualityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "kb-1", report.ArticleID)
	assert.Equal(t, 80, report.OverallScore)

	rec = serve(t, svc, http.MethodGet, "/api/v1/articles/kb-1/update-check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var upd types.UpdateRecommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upd))
	assert.True(t, upd.NeedsUpdate)
	assert.Equal(t, types.PriorityHigh, upd.UpdatePriority)

	rec = serve(t, svc, http.MethodGet, "/api/v1/articles/missing/quality", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(t, svc, http.MethodGet, "/api/v1/articles/missing/update-check", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedbackStats(t *testing.T) {
	svc := newFakeService()

	rec := serve(t, svc, http.MethodGet, "/api/v1/feedback/stats?days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats feedback.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 7, stats.WindowDays)

	rec = serve(t, svc, http.MethodGet, "/api/v1/feedback/stats?days=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.statsErr = errors.New("disk on fire")
	rec = serve(t, svc, http.MethodGet, "/api/v1/feedback/stats", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(t, newFakeService(), http.MethodGet, "/api/v1/answer", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	s := New(newFakeService(), types.ServerConfig{Addr: ":0", AllowedOrigins: []string{"https://kb.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://kb.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://kb.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// --- test helpers ---

type fakeService struct {
	lastQuery string
	lastLimit int
	votes     map[string]bool
	statsErr  error
}

func newFakeService() *fakeService {
	return &fakeService{votes: map[string]bool{}}
}

func (f *fakeService) SearchAndSynthesize(_ context.Context, query, category string) types.SynthesizedAnswer {
	f.lastQuery = query + "|" + category
	return types.SynthesizedAnswer{Answer: "Go to Billing.", Sources: []string{"kb-1"}, Confidence: 0.9}
}

func (f *fakeService) Search(_ context.Context, query, _ string, limit int) ([]types.RankedResult, error) {
	f.lastLimit = limit
	if query == "nothing" {
		return nil, nil
	}
	return []types.RankedResult{{
		Candidate: types.Candidate{Article: types.Article{ID: "kb-1", Title: "Upgrade your plan"}},
		RankScore: 0.8,
	}}, nil
}

func (f *fakeService) RecordFeedback(_ context.Context, articleID string, eventType types.EventType, actorID string) (bool, error) {
	if articleID != "kb-1" {
		return false, fmt.Errorf("article %s: %w", articleID, store.ErrNotFound)
	}
	key := articleID + "|" + string(eventType) + "|" + actorID
	if f.votes[key] {
		return false, nil
	}
	f.votes[key] = true
	return true, nil
}

func (f *fakeService) FeedbackStats(_ context.Context, windowDays int) (feedback.Stats, error) {
	if f.statsErr != nil {
		return feedback.Stats{}, f.statsErr
	}
	return feedback.Stats{WindowDays: windowDays, LowHelpfulnessArticles: []feedback.LowHelpfulness{}}, nil
}

func (f *fakeService) CheckQuality(_ context.Context, id string) (types.QualityReport, error) {
	if id != "kb-1" {
		return types.QualityReport{}, fmt.Errorf("article %s: %w", id, store.ErrNotFound)
	}
	return types.QualityReport{ArticleID: id, OverallScore: 80, Issues: []types.Issue{}}, nil
}

func (f *fakeService) CheckNeedsUpdate(_ context.Context, id string) (types.UpdateRecommendation, error) {
	if id != "kb-1" {
		return types.UpdateRecommendation{}, fmt.Errorf("article %s: %w", id, store.ErrNotFound)
	}
	return types.UpdateRecommendation{ArticleID: id, NeedsUpdate: true, UpdatePriority: types.PriorityHigh}, nil
}

func serve(t *testing.T, svc Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	s := New(svc, types.ServerConfig{Addr: ":0"})
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}
