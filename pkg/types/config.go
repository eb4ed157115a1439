// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StoreConfig locates the SQLite database and exports.
type StoreConfig struct {
	// DataDir holds kb.db and the exports/ directory.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir" validate:"required"`
}

// LLMProvider selects the embedding/generation backend.
type LLMProvider string

const (
	ProviderHash   LLMProvider = "hash"
	ProviderOpenAI LLMProvider = "openai"
	ProviderOllama LLMProvider = "ollama"
	ProviderHTTP   LLMProvider = "http"
)

// LLMConfig holds settings for the embedding and generation collaborators.
type LLMConfig struct {
	// Provider is used for embeddings: hash, openai, ollama, or http.
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider" validate:"oneof=hash openai ollama http"`

	// GenerationProvider is used for answers; empty disables generation and
	// the synthesizer composes extractive answers instead.
	GenerationProvider LLMProvider `json:"generation_provider" yaml:"generation_provider" mapstructure:"generation_provider" validate:"omitempty,oneof=openai"`

	Model          string `json:"model" yaml:"model" mapstructure:"model"`
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model" mapstructure:"embedding_model"`
	APIKey         string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Dimensions is the vector size of the hash embedder.
	Dimensions int `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions" validate:"gte=16"`

	// MaxRetries is the number of retries for failed collaborator calls.
	MaxRetries int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// IndexConfig controls chunking and batch indexing.
type IndexConfig struct {
	// SingleChunkWords: content with fewer words becomes exactly one chunk.
	SingleChunkWords int `json:"single_chunk_words" yaml:"single_chunk_words" mapstructure:"single_chunk_words" validate:"gte=1,ltefield=MaxChunkWords"`

	// MaxChunkWords bounds every chunk (embedding model input limit).
	MaxChunkWords int `json:"max_chunk_words" yaml:"max_chunk_words" mapstructure:"max_chunk_words" validate:"gte=1"`

	// Workers is the number of articles indexed concurrently in a batch.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers" validate:"gte=1"`
}

// SearchConfig controls candidate retrieval.
type SearchConfig struct {
	// Limit is the default maximum number of results.
	Limit int `json:"limit" yaml:"limit" mapstructure:"limit" validate:"gte=1"`

	// SimilarityFloor drops vector matches below this cosine similarity.
	SimilarityFloor float64 `json:"similarity_floor" yaml:"similarity_floor" mapstructure:"similarity_floor" validate:"gte=0,lte=1"`

	// SimilarityCeiling is the cosine similarity treated as a perfect match.
	// Vector scores between the floor and the ceiling are rescaled onto
	// relevance [0, 1] before ranking and confidence.
	SimilarityCeiling float64 `json:"similarity_ceiling" yaml:"similarity_ceiling" mapstructure:"similarity_ceiling" validate:"gt=0,lte=1,gtfield=SimilarityFloor"`

	// KeywordFallback enables FTS search when embedding the query fails.
	KeywordFallback bool `json:"keyword_fallback" yaml:"keyword_fallback" mapstructure:"keyword_fallback"`
}

// RankConfig holds the composite score weights.
type RankConfig struct {
	RelevanceWeight   float64 `json:"relevance_weight" yaml:"relevance_weight" mapstructure:"relevance_weight" validate:"gte=0,lte=1"`
	QualityWeight     float64 `json:"quality_weight" yaml:"quality_weight" mapstructure:"quality_weight" validate:"gte=0,lte=1,gtefield=RecencyWeight"`
	HelpfulnessWeight float64 `json:"helpfulness_weight" yaml:"helpfulness_weight" mapstructure:"helpfulness_weight" validate:"gte=0,lte=1"`
	RecencyWeight     float64 `json:"recency_weight" yaml:"recency_weight" mapstructure:"recency_weight" validate:"gte=0,lte=1"`

	// HalfLifeDays is the age at which recency decay reaches 0.5.
	HalfLifeDays float64 `json:"half_life_days" yaml:"half_life_days" mapstructure:"half_life_days" validate:"gt=0"`
}

// SynthesizeConfig controls answer synthesis.
type SynthesizeConfig struct {
	// TopN is the number of ranked sources used to ground an answer.
	TopN int `json:"top_n" yaml:"top_n" mapstructure:"top_n" validate:"gte=1"`

	// MinSourceRelevance excludes weakly related results from Sources.
	MinSourceRelevance float64 `json:"min_source_relevance" yaml:"min_source_relevance" mapstructure:"min_source_relevance" validate:"gte=0,lte=1"`

	// FallbackConfidenceCap bounds confidence when generation failed.
	FallbackConfidenceCap float64 `json:"fallback_confidence_cap" yaml:"fallback_confidence_cap" mapstructure:"fallback_confidence_cap" validate:"gte=0,lte=1"`

	// Timeout bounds the whole live request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// FeedbackConfig holds feedback tracking policy.
type FeedbackConfig struct {
	// DedupVotes counts one vote per actor per article (latest wins).
	DedupVotes bool `json:"dedup_votes" yaml:"dedup_votes" mapstructure:"dedup_votes"`

	LowHelpfulnessThreshold float64 `json:"low_helpfulness_threshold" yaml:"low_helpfulness_threshold" mapstructure:"low_helpfulness_threshold" validate:"gte=0,lte=1"`
	MinVotes                int64   `json:"min_votes" yaml:"min_votes" mapstructure:"min_votes" validate:"gte=1"`
}

// DeprecatedTerm is a retired product term and its replacement.
type DeprecatedTerm struct {
	Term        string `json:"term" yaml:"term" mapstructure:"term" validate:"required"`
	Replacement string `json:"replacement,omitempty" yaml:"replacement,omitempty" mapstructure:"replacement"`
}

// AdvisorConfig holds staleness thresholds.
type AdvisorConfig struct {
	// StaleDays applies to otherwise healthy articles.
	StaleDays int `json:"stale_days" yaml:"stale_days" mapstructure:"stale_days" validate:"gte=1"`

	// WeakStaleDays applies to articles already weak on quality or feedback.
	WeakStaleDays int `json:"weak_stale_days" yaml:"weak_stale_days" mapstructure:"weak_stale_days" validate:"gte=1,ltefield=StaleDays"`

	// QualityThreshold flags articles scoring below it; CriticalQuality marks
	// them as severe.
	QualityThreshold int `json:"quality_threshold" yaml:"quality_threshold" mapstructure:"quality_threshold" validate:"gte=0,lte=100"`
	CriticalQuality  int `json:"critical_quality" yaml:"critical_quality" mapstructure:"critical_quality" validate:"gte=0,lte=100"`

	DeprecatedTerms []DeprecatedTerm `json:"deprecated_terms" yaml:"deprecated_terms" mapstructure:"deprecated_terms" validate:"dive"`
}

// GapConfig controls gap detection.
type GapConfig struct {
	// SimilarityThreshold is the clustering threshold for question text.
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`

	// LowConfidence marks resolved interactions whose answer was weak.
	LowConfidence float64 `json:"low_confidence" yaml:"low_confidence" mapstructure:"low_confidence" validate:"gte=0,lte=1"`

	// SaturationFrequency is the cluster size at which frequency priority maxes out.
	SaturationFrequency int `json:"saturation_frequency" yaml:"saturation_frequency" mapstructure:"saturation_frequency" validate:"gte=1"`

	// CoverageThreshold drops clusters already answered by an article with
	// at least this similarity; 0 disables the check.
	CoverageThreshold float64 `json:"coverage_threshold" yaml:"coverage_threshold" mapstructure:"coverage_threshold" validate:"gte=0,lte=1"`

	MaxRepresentatives int `json:"max_representatives" yaml:"max_representatives" mapstructure:"max_representatives" validate:"gte=1"`
}

// SuggestConfig controls suggestion merging.
type SuggestConfig struct {
	// DedupThreshold merges suggestions whose normalized titles are at least
	// this similar (1.0 requires equality).
	DedupThreshold float64 `json:"dedup_threshold" yaml:"dedup_threshold" mapstructure:"dedup_threshold" validate:"gt=0,lte=1"`

	// MinTicketFrequency admits recurring ticket subjects.
	MinTicketFrequency int `json:"min_ticket_frequency" yaml:"min_ticket_frequency" mapstructure:"min_ticket_frequency" validate:"gte=1"`
}

// FAQConfig controls FAQ generation.
type FAQConfig struct {
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`

	// ReviewConfidence promotes drafts grounded at least this well to
	// pending_review.
	ReviewConfidence float64 `json:"review_confidence" yaml:"review_confidence" mapstructure:"review_confidence" validate:"gte=0,lte=1"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr" mapstructure:"addr" validate:"required"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StreamConfig holds the Kafka feedback consumer settings.
type StreamConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `json:"topic" yaml:"topic" mapstructure:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id" mapstructure:"group_id"`
}

// EngineConfig groups every stage configuration.
type EngineConfig struct {
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	LLM        LLMConfig        `json:"llm" yaml:"llm" mapstructure:"llm"`
	Index      IndexConfig      `json:"index" yaml:"index" mapstructure:"index"`
	Search     SearchConfig     `json:"search" yaml:"search" mapstructure:"search"`
	Rank       RankConfig       `json:"rank" yaml:"rank" mapstructure:"rank"`
	Synthesize SynthesizeConfig `json:"synthesize" yaml:"synthesize" mapstructure:"synthesize"`
	Feedback   FeedbackConfig   `json:"feedback" yaml:"feedback" mapstructure:"feedback"`
	Advisor    AdvisorConfig    `json:"advisor" yaml:"advisor" mapstructure:"advisor"`
	Gaps       GapConfig        `json:"gaps" yaml:"gaps" mapstructure:"gaps"`
	Suggest    SuggestConfig    `json:"suggest" yaml:"suggest" mapstructure:"suggest"`
	FAQ        FAQConfig        `json:"faq" yaml:"faq" mapstructure:"faq"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Stream     StreamConfig     `json:"stream" yaml:"stream" mapstructure:"stream"`
}
