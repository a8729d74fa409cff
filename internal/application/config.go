package application

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-quorum/internal/domain"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// Config is the process-wide configuration of the aggregation engine.
// All values are read-only parameters supplied at process start; secrets
// (API keys, the aggregator token) come from the environment instead and
// are never part of the file.
type Config struct {
	// Weights are the fixed scoring weights combining evidence,
	// consensus, and clarity.
	Weights domain.ScoreWeights `yaml:"weights"`

	// Evidence controls evidence retrieval breadth and the similarity
	// acceptance threshold.
	Evidence EvidenceSettings `yaml:"evidence"`

	// Sentiment bounds the text passed to the tone classifier.
	Sentiment SentimentSettings `yaml:"sentiment"`

	// Claims configures the claim extraction pre-filter.
	Claims ClaimSettings `yaml:"claims"`

	// ClaimFiltering switches evidence queries from whole response texts
	// to per-claim queries with averaged scores.
	ClaimFiltering bool `yaml:"claim_filtering"`

	// Embeddings names the embedding model.
	Embeddings EmbeddingSettings `yaml:"embeddings"`

	// Providers lists the LLM providers to fan prompts out to.
	Providers []ProviderSettings `yaml:"providers" validate:"dive"`

	// Server configures the hosting HTTP shell.
	Server ServerSettings `yaml:"server"`
}

// EvidenceSettings mirrors the recognized evidence-retrieval options.
type EvidenceSettings struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"min=-1,max=1"`
	MaxSearchResults    int     `yaml:"max_search_results" validate:"required,min=1,max=20"`
	SummarySentences    int     `yaml:"summary_sentences" validate:"required,min=1,max=20"`

	// Language selects the knowledge-base language edition.
	Language string `yaml:"language" validate:"required,len=2"`
}

// SentimentSettings bounds classifier input.
type SentimentSettings struct {
	MaxChars int `yaml:"max_chars" validate:"required,min=32,max=8192"`
}

// ClaimSettings configures the sentence-level claim filter.
type ClaimSettings struct {
	MinClaimWords    int     `yaml:"min_claim_words" validate:"required,min=1"`
	MinFallbackWords int     `yaml:"min_fallback_words" validate:"required,min=1"`
	DedupeSimilarity float64 `yaml:"dedupe_similarity" validate:"min=0,max=1"`
}

// EmbeddingSettings names the embedding model to use.
type EmbeddingSettings struct {
	Model string `yaml:"model" validate:"required"`
}

// ProviderSettings configures one LLM provider in the fan-out.
type ProviderSettings struct {
	// Name selects the provider implementation.
	Name string `yaml:"name" validate:"required,oneof=openai anthropic google"`

	// Label is the human-readable provider name attached to candidates.
	// Defaults to Name when empty.
	Label string `yaml:"label"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// Temperature controls generation randomness.
	Temperature float64 `yaml:"temperature" validate:"min=0,max=1"`

	// MaxTokens bounds generated answer length.
	MaxTokens int `yaml:"max_tokens" validate:"min=1,max=4096"`
}

// ServerSettings configures the HTTP shell.
type ServerSettings struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string `yaml:"addr" validate:"required"`

	// HistoryPath is the SQLite database file for evaluation history.
	HistoryPath string `yaml:"history_path" validate:"required"`
}

// DefaultConfig returns the standard configuration: 0.5/0.3/0.2 weights,
// 0.60 similarity threshold, three search results, five summary
// sentences, 512-character sentiment bound, and whole-text evidence
// queries.
func DefaultConfig() Config {
	return Config{
		Weights: domain.DefaultScoreWeights(),
		Evidence: EvidenceSettings{
			SimilarityThreshold: 0.60,
			MaxSearchResults:    3,
			SummarySentences:    5,
			Language:            "en",
		},
		Sentiment:      SentimentSettings{MaxChars: 512},
		Claims:         ClaimSettings{MinClaimWords: 5, MinFallbackWords: 4, DedupeSimilarity: 0.9},
		ClaimFiltering: false,
		Embeddings:     EmbeddingSettings{Model: "text-embedding-3-small"},
		Providers: []ProviderSettings{
			{Name: "openai", Label: "OpenAI", Temperature: 0.3, MaxTokens: 300},
			{Name: "anthropic", Label: "Anthropic", Temperature: 0.3, MaxTokens: 300},
			{Name: "google", Label: "Google Gemini", Temperature: 0.3, MaxTokens: 300},
		},
		Server: ServerSettings{
			Addr:        ":8000",
			HistoryPath: "history.db",
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults and
// validates the merged result. An empty path returns the validated
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

// Secrets holds credentials read from the environment at process start.
type Secrets struct {
	// AggregatorToken authenticates API callers.
	AggregatorToken string `env:"AGGREGATOR_TOKEN, required"`

	// Provider and model credentials. A missing key disables the
	// corresponding provider rather than failing startup.
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
}

// LoadSecrets reads Secrets from the environment.
func LoadSecrets(ctx context.Context) (Secrets, error) {
	var s Secrets
	if err := envconfig.Process(ctx, &s); err != nil {
		return Secrets{}, fmt.Errorf("processing secrets: %w", err)
	}
	return s, nil
}

// APIKeyFor returns the credential for a provider name, or empty when the
// provider is not configured.
func (s Secrets) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return s.OpenAIAPIKey
	case "anthropic":
		return s.AnthropicAPIKey
	case "google":
		return s.GoogleAPIKey
	default:
		return ""
	}
}
