// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"

	ollamaEmbed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/cloudwego/eino/components/embedding"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// EinoEmbedder adapts any eino embedding component to Embedder.
type EinoEmbedder struct {
	inner embedding.Embedder
}

// NewEinoEmbedder wraps an eino embedder.
func NewEinoEmbedder(inner embedding.Embedder) *EinoEmbedder {
	return &EinoEmbedder{inner: inner}
}

// NewOllamaEmbedder connects to a local Ollama server through eino.
func NewOllamaEmbedder(ctx context.Context, cfg types.LLMConfig) (*EinoEmbedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = "nomic-embed-text"
	}
	inner, err := ollamaEmbed.NewEmbedder(ctx, &ollamaEmbed.EmbeddingConfig{
		BaseURL: baseURL,
		Model:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ollama embedder: %w", err)
	}
	return NewEinoEmbedder(inner), nil
}

// Embed converts eino's float64 vectors to float32.
func (e *EinoEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.inner.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding via eino: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("eino returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return toFloat32(vecs), nil
}

func toFloat32(vecs [][]float64) [][]float32 {
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		f := make([]float32, len(v))
		for j, x := range v {
			f[j] = float32(x)
		}
		out[i] = f
	}
	return out
}
