// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads and validates the engine configuration from viper
// (config file, KB_ENGINE_* environment variables, bound flags).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pdiddy/kb-engine/pkg/types"
)

// EnvPrefix is the environment variable prefix (KB_ENGINE_STORE_DATA_DIR, ...).
const EnvPrefix = "KB_ENGINE"

// SecretOpenAIKey is the .secrets/ file name holding the OpenAI API key.
const SecretOpenAIKey = "openai-api-key"

var validate = validator.New()

// Default returns the built-in configuration.
func Default() types.EngineConfig {
	return types.EngineConfig{
		Store: types.StoreConfig{DataDir: "kb-data"},
		LLM: types.LLMConfig{
			Provider:       types.ProviderHash,
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Dimensions:     256,
			MaxRetries:     3,
			Timeout:        20 * time.Second,
		},
		Index: types.IndexConfig{
			SingleChunkWords: 300,
			MaxChunkWords:    350,
			Workers:          4,
		},
		Search: types.SearchConfig{
			Limit:             10,
			SimilarityFloor:   0.3,
			SimilarityCeiling: 0.85,
			KeywordFallback:   true,
		},
		Rank: types.RankConfig{
			RelevanceWeight:   0.5,
			QualityWeight:     0.2,
			HelpfulnessWeight: 0.15,
			RecencyWeight:     0.15,
			HalfLifeDays:      180,
		},
		Synthesize: types.SynthesizeConfig{
			TopN:                  3,
			MinSourceRelevance:    0.5,
			FallbackConfidenceCap: 0.6,
			Timeout:               800 * time.Millisecond,
		},
		Feedback: types.FeedbackConfig{
			DedupVotes:              true,
			LowHelpfulnessThreshold: 0.5,
			MinVotes:                5,
		},
		Advisor: types.AdvisorConfig{
			StaleDays:        365,
			WeakStaleDays:    180,
			QualityThreshold: 60,
			CriticalQuality:  35,
		},
		Gaps: types.GapConfig{
			SimilarityThreshold: 0.5,
			LowConfidence:       0.5,
			SaturationFrequency: 50,
			CoverageThreshold:   0.75,
			MaxRepresentatives:  3,
		},
		Suggest: types.SuggestConfig{
			DedupThreshold:     0.8,
			MinTicketFrequency: 3,
		},
		FAQ: types.FAQConfig{
			SimilarityThreshold: 0.5,
			ReviewConfidence:    0.5,
		},
		Server: types.ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Stream: types.StreamConfig{
			Topic:   "kb-feedback",
			GroupID: "kb-engine",
		},
	}
}

// SetDefaults registers every default with v so that config files and
// environment variables only need to name the keys they override.
func SetDefaults(v *viper.Viper) {
	d := Default()
	defaults := map[string]any{
		"store.data_dir":                     d.Store.DataDir,
		"llm.provider":                       string(d.LLM.Provider),
		"llm.generation_provider":            string(d.LLM.GenerationProvider),
		"llm.model":                          d.LLM.Model,
		"llm.embedding_model":                d.LLM.EmbeddingModel,
		"llm.api_key":                        "",
		"llm.base_url":                       "",
		"llm.dimensions":                     d.LLM.Dimensions,
		"llm.max_retries":                    d.LLM.MaxRetries,
		"llm.timeout":                        d.LLM.Timeout,
		"index.single_chunk_words":           d.Index.SingleChunkWords,
		"index.max_chunk_words":              d.Index.MaxChunkWords,
		"index.workers":                      d.Index.Workers,
		"search.limit":                       d.Search.Limit,
		"search.similarity_floor":            d.Search.SimilarityFloor,
		"search.similarity_ceiling":          d.Search.SimilarityCeiling,
		"search.keyword_fallback":            d.Search.KeywordFallback,
		"rank.relevance_weight":              d.Rank.RelevanceWeight,
		"rank.quality_weight":                d.Rank.QualityWeight,
		"rank.helpfulness_weight":            d.Rank.HelpfulnessWeight,
		"rank.recency_weight":                d.Rank.RecencyWeight,
		"rank.half_life_days":                d.Rank.HalfLifeDays,
		"synthesize.top_n":                   d.Synthesize.TopN,
		"synthesize.min_source_relevance":    d.Synthesize.MinSourceRelevance,
		"synthesize.fallback_confidence_cap": d.Synthesize.FallbackConfidenceCap,
		"synthesize.timeout":                 d.Synthesize.Timeout,
		"feedback.dedup_votes":               d.Feedback.DedupVotes,
		"feedback.low_helpfulness_threshold": d.Feedback.LowHelpfulnessThreshold,
		"feedback.min_votes":                 d.Feedback.MinVotes,
		"advisor.stale_days":                 d.Advisor.StaleDays,
		"advisor.weak_stale_days":            d.Advisor.WeakStaleDays,
		"advisor.quality_threshold":          d.Advisor.QualityThreshold,
		"advisor.critical_quality":           d.Advisor.CriticalQuality,
		"advisor.deprecated_terms":           []map[string]string{},
		"gaps.similarity_threshold":          d.Gaps.SimilarityThreshold,
		"gaps.low_confidence":                d.Gaps.LowConfidence,
		"gaps.saturation_frequency":          d.Gaps.SaturationFrequency,
		"gaps.coverage_threshold":            d.Gaps.CoverageThreshold,
		"gaps.max_representatives":           d.Gaps.MaxRepresentatives,
		"suggest.dedup_threshold":            d.Suggest.DedupThreshold,
		"suggest.min_ticket_frequency":       d.Suggest.MinTicketFrequency,
		"faq.similarity_threshold":           d.FAQ.SimilarityThreshold,
		"faq.review_confidence":              d.FAQ.ReviewConfidence,
		"server.addr":                        d.Server.Addr,
		"server.allowed_origins":             d.Server.AllowedOrigins,
		"stream.brokers":                     []string{},
		"stream.topic":                       d.Stream.Topic,
		"stream.group_id":                    d.Stream.GroupID,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Load unmarshals v into an EngineConfig, fills the API key from secrets or
// OPENAI_API_KEY when the config leaves it empty, and validates the result.
func Load(v *viper.Viper, secrets map[string]string) (types.EngineConfig, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	var cfg types.EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return types.EngineConfig{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		if key, ok := secrets[SecretOpenAIKey]; ok {
			cfg.LLM.APIKey = key
		} else {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if err := Validate(cfg); err != nil {
		return types.EngineConfig{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg types.EngineConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	needsKey := cfg.LLM.Provider == types.ProviderOpenAI || cfg.LLM.GenerationProvider == types.ProviderOpenAI
	if needsKey && cfg.LLM.APIKey == "" && cfg.LLM.BaseURL == "" {
		return fmt.Errorf("invalid configuration: llm.api_key is required for the openai provider")
	}
	if cfg.LLM.Provider == types.ProviderHTTP && cfg.LLM.BaseURL == "" {
		return fmt.Errorf("invalid configuration: llm.base_url is required for the http provider")
	}
	return nil
}
