// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-quorum/internal/domain"
)

// Embedder converts text into fixed-length numeric vectors.
// Implementations typically wrap a remote embedding model; initialization
// of the underlying model must be lazy, shared, and race-free so that the
// expensive setup happens at most once per process.
type Embedder interface {
	// EmbedOne returns the embedding for a single text.
	// Empty input yields an empty vector and no error.
	EmbedOne(ctx context.Context, text string) ([]float64, error)

	// EmbedMany returns one embedding per input text, in input order.
	// A failed item is represented by an empty vector rather than
	// aborting the whole batch.
	EmbedMany(ctx context.Context, texts []string) ([][]float64, error)
}

// EvidenceSource supplies short textual snippets believed relevant to a
// query, e.g. an encyclopedic knowledge base.
type EvidenceSource interface {
	// Search returns up to maxResults title-like identifiers matching the
	// query. Ambiguous matches resolve to the first suggested alternative
	// only. The result may be empty.
	Search(ctx context.Context, query string, maxResults int) ([]string, error)

	// FetchSummary returns a short summary for the identifier, truncated
	// to maxSentences sentences. A missing page yields an empty string
	// and no error.
	FetchSummary(ctx context.Context, title string, maxSentences int) (string, error)
}

// SentimentLabel is the outcome category of a tone classification.
type SentimentLabel string

// Labels produced by sentiment classifiers.
const (
	SentimentPositive SentimentLabel = "POSITIVE"
	SentimentNegative SentimentLabel = "NEGATIVE"

	// SentimentError is the sentinel used when classification failed.
	// It carries zero confidence and maps to the neutral clarity score.
	SentimentError SentimentLabel = "ERROR"
)

// Classification is the result of one tone classification.
type Classification struct {
	// Label is the predicted tone category.
	Label SentimentLabel `json:"label"`

	// Confidence is the classifier's confidence in the label, in [0, 1].
	Confidence float64 `json:"confidence"`
}

// SentimentClassifier assigns a tone label and confidence to text.
type SentimentClassifier interface {
	// Classify returns the tone classification for the text.
	// Callers are expected to bound the input length themselves.
	Classify(ctx context.Context, text string) (Classification, error)
}

// CandidateProvider fans a prompt out to the configured LLM providers and
// collects their responses. Partial failure is normal; the returned slice
// may contain fewer entries than providers configured, or be empty.
type CandidateProvider interface {
	GetCandidates(ctx context.Context, prompt string) ([]domain.CandidateResponse, error)
}

// ClaimExtractor splits free text into candidate factual statements.
// Implementations must be pure functions over the input text.
type ClaimExtractor interface {
	Extract(text string) []string
}

// EvidenceScorer retrieves corroborating evidence for a piece of text and
// scores how well the evidence supports it. Upstream failures are absorbed
// and degrade to "no evidence found" rather than surfacing as errors.
type EvidenceScorer interface {
	// GetEvidenceAndScore returns the snippets that passed the similarity
	// threshold and the mean of their similarity values, or an empty
	// slice and zero when nothing qualifies.
	GetEvidenceAndScore(ctx context.Context, text string) ([]domain.EvidenceSnippet, float64)
}

// ClarityScorer maps a tone classification into a bounded clarity score.
type ClarityScorer interface {
	// Score returns a clarity proxy in [0, 1]. Blank input and classifier
	// failures both yield the neutral value 0.5.
	Score(ctx context.Context, text string) float64
}
