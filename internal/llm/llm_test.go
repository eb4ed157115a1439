// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/internal/httputil"
	"github.com/pdiddy/kb-engine/internal/vectorstore"
	"github.com/pdiddy/kb-engine/pkg/types"
)

func init() {
	backoffBase = time.Millisecond
	httputil.RetryBaseDelay = time.Millisecond
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(128)

	vecs, err := h.Embed(ctx, []string{
		"How do I upgrade my plan?",
		"Upgrade your plan from the billing page",
		"Reset a forgotten password",
		"how do I?",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	for _, v := range vecs {
		assert.Len(t, v, 128)
	}

	again, err := h.Embed(ctx, []string{"How do I upgrade my plan?"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], again[0], "embedding is deterministic")

	related := vectorstore.Cosine(vecs[0], vecs[1])
	unrelated := vectorstore.Cosine(vecs[0], vecs[2])
	assert.Greater(t, related, 0.5)
	assert.Greater(t, related, unrelated)
	assert.Equal(t, 0.0, vectorstore.Cosine(vecs[0], vecs[3]), "stop words only map to zero")
}

func TestEmbedOne(t *testing.T) {
	v, err := EmbedOne(context.Background(), NewHashEmbedder(32), "export data")
	require.NoError(t, err)
	assert.Len(t, v, 32)

	broken := EmbedderFunc(func(context.Context, []string) ([][]float32, error) { return nil, nil })
	_, err = EmbedOne(context.Background(), broken, "x")
	assert.Error(t, err)
}

func TestEmbedderWithRetry(t *testing.T) {
	var calls int32
	flaky := EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("transient")
		}
		return [][]float32{{1}}, nil
	})

	vecs, err := EmbedderWithRetry(flaky, 3).Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}}, vecs)
	assert.Equal(t, int32(3), calls)

	calls = 0
	_, err = EmbedderWithRetry(flaky, 1).Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 retries")
}

func TestGeneratorWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	g := GeneratorFunc(func(context.Context, string) (string, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return "", context.Canceled
	})

	_, err := GeneratorWithRetry(g, 5).Generate(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls)
}

func TestHTTPEmbedder(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req httpEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Reply out of order; the embedder reorders by index.
		fmt.Fprintf(w, `{"data":[{"index":1,"embedding":[0,%d]},{"index":0,"embedding":[%d,0]}]}`,
			len(req.Input[1]), len(req.Input[0]))
	}))
	defer ts.Close()

	e, err := NewHTTPEmbedder(types.LLMConfig{BaseURL: ts.URL + "/v1/", APIKey: "k", MaxRetries: 2})
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"abc", "hello"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 0}, {0, 5}}, vecs)
	assert.Equal(t, int32(2), calls)
}

func TestHTTPEmbedderErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer ts.Close()

	e, err := NewHTTPEmbedder(types.LLMConfig{BaseURL: ts.URL})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "missing embedding for input 1")

	_, err = NewHTTPEmbedder(types.LLMConfig{})
	assert.Error(t, err)
}

func TestOpenAI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/embeddings":
			w.Write([]byte(`{"object":"list","model":"m","data":[
				{"object":"embedding","index":0,"embedding":[0.1,0.2]},
				{"object":"embedding","index":1,"embedding":[0.3,0.4]}]}`))
		case "/v1/chat/completions":
			w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"m","choices":[
				{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Open billing.  "}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	client := NewOpenAI(types.LLMConfig{APIKey: "k", BaseURL: ts.URL + "/v1"})

	vecs, err := client.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vecs)

	text, err := client.Generate(context.Background(), "How do I upgrade?")
	require.NoError(t, err)
	assert.Equal(t, "Open billing.", text)
}

func TestOpenAISendsConfiguredModels(t *testing.T) {
	tests := []struct {
		name               string
		cfg                types.LLMConfig
		wantEmbed, wantGen string
	}{
		{"defaults", types.LLMConfig{}, "text-embedding-3-small", "gpt-4o-mini"},
		{"configured", types.LLMConfig{EmbeddingModel: "text-embedding-3-large", Model: "gpt-4o"}, "text-embedding-3-large", "gpt-4o"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := map[string]string{}
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body struct {
					Model string `json:"model"`
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				models[r.URL.Path] = body.Model
				w.Header().Set("Content-Type", "application/json")
				switch r.URL.Path {
				case "/v1/embeddings":
					w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,0]}]}`))
				default:
					w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[
						{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`))
				}
			}))
			defer ts.Close()

			cfg := tt.cfg
			cfg.APIKey = "k"
			cfg.BaseURL = ts.URL + "/v1"
			client := NewOpenAI(cfg)

			_, err := client.Embed(context.Background(), []string{"upgrade plan"})
			require.NoError(t, err)
			_, err = client.Generate(context.Background(), "How do I upgrade?")
			require.NoError(t, err)

			assert.Equal(t, tt.wantEmbed, models["/v1/embeddings"])
			assert.Equal(t, tt.wantGen, models["/v1/chat/completions"])
		})
	}
}

func TestNewEmbedderAndGenerator(t *testing.T) {
	e, err := NewEmbedder(context.Background(), types.LLMConfig{Provider: types.ProviderHash, Dimensions: 64})
	require.NoError(t, err)
	assert.IsType(t, &HashEmbedder{}, e)

	_, err = NewEmbedder(context.Background(), types.LLMConfig{Provider: "bogus"})
	assert.Error(t, err)

	_, err = NewEmbedder(context.Background(), types.LLMConfig{Provider: types.ProviderHTTP})
	assert.Error(t, err)

	g, err := NewGenerator(types.LLMConfig{})
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = NewGenerator(types.LLMConfig{GenerationProvider: types.ProviderOpenAI, APIKey: "k", MaxRetries: 2})
	require.NoError(t, err)
	assert.NotNil(t, g)
}
