// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httpapi exposes the engine's live operations over HTTP: answer,
// search, feedback, per-article quality and update checks, and feedback
// stats.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/pdiddy/kb-engine/internal/feedback"
	"github.com/pdiddy/kb-engine/internal/store"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// Service is the subset of the engine the HTTP surface calls.
type Service interface {
	SearchAndSynthesize(ctx context.Context, query, category string) types.SynthesizedAnswer
	Search(ctx context.Context, query, category string, limit int) ([]types.RankedResult, error)
	RecordFeedback(ctx context.Context, articleID string, eventType types.EventType, actorID string) (bool, error)
	FeedbackStats(ctx context.Context, windowDays int) (feedback.Stats, error)
	CheckQuality(ctx context.Context, id string) (types.QualityReport, error)
	CheckNeedsUpdate(ctx context.Context, id string) (types.UpdateRecommendation, error)
}

// AnswerRequest is the body of POST /api/v1/answer.
type AnswerRequest struct {
	Query    string `json:"query" validate:"required,max=2000"`
	Category string `json:"category,omitempty"`
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query    string `json:"query" validate:"required,max=2000"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

// FeedbackRequest is the body of POST /api/v1/feedback.
type FeedbackRequest struct {
	ArticleID string          `json:"article_id" validate:"required"`
	EventType types.EventType `json:"event_type" validate:"required,oneof=view helpful not_helpful"`
	ActorID   string          `json:"actor_id,omitempty"`
}

// FeedbackResponse reports whether a recorded event changed the counters.
type FeedbackResponse struct {
	Tracked bool `json:"tracked"`
}

// SearchResponse wraps ranked results.
type SearchResponse struct {
	Results []types.RankedResult `json:"results"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc      Service
	router   *mux.Router
	server   *http.Server
	validate *validator.Validate
}

// New builds the router and the http.Server listening on cfg.Addr.
func New(svc Service, cfg types.ServerConfig) *Server {
	s := &Server{
		svc:      svc,
		router:   mux.NewRouter(),
		validate: validator.New(),
	}
	s.routes()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      c.Handler(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/answer", s.handleAnswer).Methods(http.MethodPost)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/feedback", s.handleFeedback).Methods(http.MethodPost)
	api.HandleFunc("/feedback/stats", s.handleFeedbackStats).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}/quality", s.handleQuality).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}/update-check", s.handleUpdateCheck).Methods(http.MethodGet)
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.server.Addr)
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("http server shutting down")
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.SearchAndSynthesize(r.Context(), req.Query, req.Category))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	results, err := s.svc.Search(r.Context(), req.Query, req.Category, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if results == nil {
		results = []types.RankedResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	tracked, err := s.svc.RecordFeedback(r.Context(), req.ArticleID, req.EventType, req.ActorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, FeedbackResponse{Tracked: tracked})
}

func (s *Server) handleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "days must be a non-negative integer"})
			return
		}
		days = n
	}
	stats, err := s.svc.FeedbackStats(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.CheckQuality(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.CheckNeedsUpdate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, store.ErrDuplicate):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}
