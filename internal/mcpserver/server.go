// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mcpserver exposes answer synthesis and feedback recording as MCP
// tools over stdio, so support agents and assistants can query the
// knowledge base directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// Tool names.
const (
	ToolSearchAndSynthesize = "search_and_synthesize"
	ToolRecordFeedback      = "record_feedback"
)

// Service is the subset of the engine the tools call.
type Service interface {
	SearchAndSynthesize(ctx context.Context, query, category string) types.SynthesizedAnswer
	RecordFeedback(ctx context.Context, articleID string, eventType types.EventType, actorID string) (bool, error)
}

// SearchParams are the search_and_synthesize arguments.
type SearchParams struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
}

// FeedbackParams are the record_feedback arguments.
type FeedbackParams struct {
	ArticleID string `json:"article_id"`
	EventType string `json:"event_type"`
	ActorID   string `json:"actor_id,omitempty"`
}

// New creates an MCP server with both tools registered.
func New(svc Service, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "kb-engine",
		Version: version,
	}, &mcpsdk.ServerOptions{
		InitializedHandler: func(context.Context, *mcpsdk.ServerSession, *mcpsdk.InitializedParams) {
			slog.Info("mcp client initialized")
		},
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name: ToolSearchAndSynthesize,
		Description: "Answer a customer question from the knowledge base. Returns a JSON object with answer, " +
			"sources (article ids) and confidence in [0,1]. Use {\"query\":\"...\",\"category\":\"billing\"}; category is optional.",
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[SearchParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return HandleSearch(ctx, svc, params.Arguments)
	})

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name: ToolRecordFeedback,
		Description: "Record a view or a helpfulness vote for an article. event_type is one of view, helpful, " +
			"not_helpful. Returns whether the event changed the article counters.",
	}, func(ctx context.Context, _ *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[FeedbackParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return HandleFeedback(ctx, svc, params.Arguments)
	})

	return server
}

// Run serves the tools on stdin/stdout until ctx is cancelled or the
// client disconnects.
func Run(ctx context.Context, svc Service, version string) error {
	if err := New(svc, version).Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// HandleSearch answers params.Query. An empty query is a tool error.
func HandleSearch(ctx context.Context, svc Service, params SearchParams) (*mcpsdk.CallToolResultFor[any], error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return errorResult("query is required")
	}
	answer := svc.SearchAndSynthesize(ctx, query, strings.TrimSpace(params.Category))
	slog.Debug("mcp answer", "query", query, "confidence", answer.Confidence, "sources", len(answer.Sources))
	return jsonResult(answer)
}

// HandleFeedback records one event. Unknown articles and invalid event
// types are reported as tool errors.
func HandleFeedback(ctx context.Context, svc Service, params FeedbackParams) (*mcpsdk.CallToolResultFor[any], error) {
	articleID := strings.TrimSpace(params.ArticleID)
	if articleID == "" {
		return errorResult("article_id is required")
	}
	eventType := types.EventType(strings.TrimSpace(params.EventType))
	if !eventType.Valid() {
		return errorResult(fmt.Sprintf("event_type must be one of view, helpful, not_helpful; got %q", params.EventType))
	}
	tracked, err := svc.RecordFeedback(ctx, articleID, eventType, strings.TrimSpace(params.ActorID))
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(map[string]any{"article_id": articleID, "event_type": eventType, "tracked": tracked})
}

func jsonResult(v any) (*mcpsdk.CallToolResultFor[any], error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encoding result: %v", err))
	}
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(msg string) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "Error: " + msg}},
		IsError: true,
	}, nil
}
