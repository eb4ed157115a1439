// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kb-engine/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), nil)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Rank, cfg.Rank)
	assert.Equal(t, d.Index, cfg.Index)
	assert.Equal(t, 800*time.Millisecond, cfg.Synthesize.Timeout)
	assert.True(t, cfg.Feedback.DedupVotes)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb-engine.yaml")
	content := `store:
  data_dir: /var/lib/kb
rank:
  quality_weight: 0.3
  recency_weight: 0.1
synthesize:
  timeout: 2s
advisor:
  deprecated_terms:
    - term: legacy dashboard
      replacement: Insights workspace
    - term: API v1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v, nil)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/kb", cfg.Store.DataDir)
	assert.InDelta(t, 0.3, cfg.Rank.QualityWeight, 1e-9)
	assert.InDelta(t, 0.1, cfg.Rank.RecencyWeight, 1e-9)
	assert.Equal(t, 2*time.Second, cfg.Synthesize.Timeout)
	require.Len(t, cfg.Advisor.DeprecatedTerms, 2)
	assert.Equal(t, "legacy dashboard", cfg.Advisor.DeprecatedTerms[0].Term)
	assert.Equal(t, "Insights workspace", cfg.Advisor.DeprecatedTerms[0].Replacement)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("KB_ENGINE_SEARCH_LIMIT", "25")
	cfg, err := Load(viper.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.Limit)
}

func TestLoadAPIKeyFromSecrets(t *testing.T) {
	t.Setenv("KB_ENGINE_LLM_PROVIDER", "openai")
	cfg, err := Load(viper.New(), map[string]string{SecretOpenAIKey: "sk-secret"})
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.EngineConfig)
	}{
		{"recency outweighs quality", func(c *types.EngineConfig) { c.Rank.RecencyWeight = 0.5 }},
		{"single chunk above max", func(c *types.EngineConfig) { c.Index.SingleChunkWords = 500 }},
		{"weak stale above stale", func(c *types.EngineConfig) { c.Advisor.WeakStaleDays = 400 }},
		{"unknown provider", func(c *types.EngineConfig) { c.LLM.Provider = "bogus" }},
		{"openai without key", func(c *types.EngineConfig) { c.LLM.Provider = types.ProviderOpenAI }},
		{"http without base url", func(c *types.EngineConfig) { c.LLM.Provider = types.ProviderHTTP }},
		{"empty deprecated term", func(c *types.EngineConfig) {
			c.Advisor.DeprecatedTerms = []types.DeprecatedTerm{{Term: ""}}
		}},
		{"floor out of range", func(c *types.EngineConfig) { c.Search.SimilarityFloor = 1.5 }},
		{"ceiling at floor", func(c *types.EngineConfig) { c.Search.SimilarityCeiling = c.Search.SimilarityFloor }},
		{"ceiling above one", func(c *types.EngineConfig) { c.Search.SimilarityCeiling = 1.2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
