// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/kb-engine/internal/httputil"
	"github.com/pdiddy/kb-engine/pkg/types"
)

// HTTPEmbedder posts {"model", "input"} to BaseURL + "/embeddings" and
// reads an OpenAI-shaped {"data": [{"index", "embedding"}]} response. It
// suits self-hosted inference servers that expose only that route.
type HTTPEmbedder struct {
	url        string
	model      string
	apiKey     string
	client     *http.Client
	maxRetries int
}

type httpEmbedRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

type httpEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewHTTPEmbedder validates cfg and returns an embedder.
func NewHTTPEmbedder(cfg types.LLMConfig) (*HTTPEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http embedder requires a base URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		url:        strings.TrimRight(cfg.BaseURL, "/") + "/embeddings",
		model:      cfg.EmbeddingModel,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Embed sends all texts in one request. Rate limiting and transient 5xx
// responses are retried by httputil.DoWithRetry.
func (h *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(httpEmbedRequest{Model: h.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, h.client, req, h.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded httpEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vecs := make([][]float64, len(texts))
	for _, d := range decoded.Data {
		if d.Index >= 0 && d.Index < len(vecs) {
			vecs[d.Index] = d.Embedding
		}
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return toFloat32(vecs), nil
}
