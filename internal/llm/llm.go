// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm defines the embedding and generation collaborators and their
// providers: OpenAI-compatible APIs, a local Ollama server, a plain JSON
// HTTP endpoint, and an offline feature-hashing embedder.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// Embedder turns texts into vectors. Implementations return one vector per
// input text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = 250 * time.Millisecond

func withRetry[T any](ctx context.Context, maxRetries int, call func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoffBase << (attempt - 1)):
			}
		}
		out, err := call()
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		lastErr = err
	}
	return zero, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}

type retryEmbedder struct {
	next       Embedder
	maxRetries int
}

// EmbedderWithRetry retries failed Embed calls with exponential backoff.
func EmbedderWithRetry(e Embedder, maxRetries int) Embedder {
	if maxRetries <= 0 {
		return e
	}
	return &retryEmbedder{next: e, maxRetries: maxRetries}
}

func (r *retryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, r.maxRetries, func() ([][]float32, error) {
		vecs, err := r.next.Embed(ctx, texts)
		if err == nil && len(vecs) != len(texts) {
			err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		return vecs, err
	})
}

type retryGenerator struct {
	next       Generator
	maxRetries int
}

// GeneratorWithRetry retries failed Generate calls with exponential backoff.
func GeneratorWithRetry(g Generator, maxRetries int) Generator {
	if maxRetries <= 0 {
		return g
	}
	return &retryGenerator{next: g, maxRetries: maxRetries}
}

func (r *retryGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return withRetry(ctx, r.maxRetries, func() (string, error) {
		return r.next.Generate(ctx, prompt)
	})
}

// NewEmbedder builds the configured embedding provider wrapped in retries.
func NewEmbedder(ctx context.Context, cfg types.LLMConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case types.ProviderHash, "":
		return NewHashEmbedder(cfg.Dimensions), nil
	case types.ProviderOpenAI:
		e = NewOpenAI(cfg)
	case types.ProviderOllama:
		e, err = NewOllamaEmbedder(ctx, cfg)
	case types.ProviderHTTP:
		// Status retries happen inside the HTTP embedder.
		h, err := NewHTTPEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return EmbedderWithRetry(e, cfg.MaxRetries), nil
}

// NewGenerator builds the configured generation provider, or returns nil
// when generation is disabled.
func NewGenerator(cfg types.LLMConfig) (Generator, error) {
	switch cfg.GenerationProvider {
	case "":
		return nil, nil
	case types.ProviderOpenAI:
		return GeneratorWithRetry(NewOpenAI(cfg), cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", cfg.GenerationProvider)
	}
}
