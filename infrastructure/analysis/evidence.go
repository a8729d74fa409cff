package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
)

var _ ports.EvidenceScorer = (*EvidenceRetriever)(nil)

// EvidenceRetrieverConfig controls evidence search breadth and the
// similarity gate applied to retrieved snippets.
type EvidenceRetrieverConfig struct {
	// SimilarityThreshold is the minimum cosine similarity between the
	// input text and a snippet for the snippet to count as support.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold" validate:"min=-1,max=1"`

	// MaxSearchResults bounds how many candidate titles are requested
	// from the evidence source per query.
	MaxSearchResults int `yaml:"max_search_results" json:"max_search_results" validate:"required,min=1,max=20"`

	// SummarySentences bounds how many sentences of each summary are
	// kept when building a snippet.
	SummarySentences int `yaml:"summary_sentences" json:"summary_sentences" validate:"required,min=1,max=20"`
}

// DefaultEvidenceRetrieverConfig returns the standard retrieval settings:
// 0.60 similarity threshold, three search results, five summary sentences.
func DefaultEvidenceRetrieverConfig() EvidenceRetrieverConfig {
	return EvidenceRetrieverConfig{
		SimilarityThreshold: 0.60,
		MaxSearchResults:    3,
		SummarySentences:    5,
	}
}

// EvidenceRetriever queries an external evidence source for a piece of
// text and computes a support score against the retrieved snippets via
// embedding similarity.
//
// All upstream failures (source unreachable, missing pages, embedding
// errors) are absorbed locally and degrade to "no evidence found"; they
// never abort the evaluation that triggered the lookup. The retriever is
// stateless and safe for concurrent use.
type EvidenceRetriever struct {
	config   EvidenceRetrieverConfig
	source   ports.EvidenceSource
	embedder ports.Embedder
	tracer   trace.Tracer
}

// NewEvidenceRetriever creates an EvidenceRetriever with validated
// configuration and required collaborators.
func NewEvidenceRetriever(
	source ports.EvidenceSource,
	embedder ports.Embedder,
	config EvidenceRetrieverConfig,
) (*EvidenceRetriever, error) {
	if source == nil {
		return nil, ErrNilEvidenceSource
	}
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &EvidenceRetriever{
		config:   config,
		source:   source,
		embedder: embedder,
		tracer:   otel.Tracer("quorum/evidence"),
	}, nil
}

// GetEvidenceAndScore searches the evidence source with the full input
// text, keeps the snippets whose embedding similarity to the input meets
// the configured threshold, and returns them together with the arithmetic
// mean of their similarity values.
//
// Blank input, zero search results, per-title fetch failures, embedding
// failures, and an empty post-threshold set all yield (nil, 0).
func (er *EvidenceRetriever) GetEvidenceAndScore(ctx context.Context, text string) ([]domain.EvidenceSnippet, float64) {
	if strings.TrimSpace(text) == "" {
		return nil, 0
	}

	ctx, span := er.tracer.Start(ctx, "evidence.retrieve")
	defer span.End()
	log := clog.FromContext(ctx)

	titles, err := er.source.Search(ctx, text, er.config.MaxSearchResults)
	if err != nil {
		log.Warnf("evidence search failed: %v", err)
		return nil, 0
	}

	var snippets []string
	for _, title := range titles {
		summary, err := er.source.FetchSummary(ctx, title, er.config.SummarySentences)
		if err != nil {
			log.Warnf("evidence fetch for %q failed: %v", title, err)
			continue
		}
		if summary != "" {
			snippets = append(snippets, summary)
		}
	}
	span.SetAttributes(attribute.Int("evidence.snippets_fetched", len(snippets)))
	if len(snippets) == 0 {
		return nil, 0
	}

	textEmb, err := er.embedder.EmbedOne(ctx, text)
	if err != nil || len(textEmb) == 0 {
		log.Warnf("embedding input text failed: %v", err)
		return nil, 0
	}

	snippetEmbs, err := er.embedder.EmbedMany(ctx, snippets)
	if err != nil {
		log.Warnf("embedding evidence snippets failed: %v", err)
		return nil, 0
	}

	var supported []domain.EvidenceSnippet
	var sum float64
	for i, emb := range snippetEmbs {
		if i >= len(snippets) || len(emb) == 0 {
			continue
		}
		similarity := domain.CosineSimilarity(textEmb, emb)
		if similarity >= er.config.SimilarityThreshold {
			supported = append(supported, domain.EvidenceSnippet{
				Text:       snippets[i],
				Similarity: similarity,
			})
			sum += similarity
		}
	}
	span.SetAttributes(attribute.Int("evidence.snippets_supported", len(supported)))
	if len(supported) == 0 {
		return nil, 0
	}

	return supported, sum / float64(len(supported))
}
