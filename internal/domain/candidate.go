// Package domain contains pure, dependency-free domain models and scoring
// math for the aggregation engine.
package domain

import (
	"fmt"
	"time"
)

// CandidateResponse represents one LLM provider's answer to a prompt.
// Instances are created by the provider fan-out and consumed read-only
// by the evaluation pipeline; they are never mutated after construction.
type CandidateResponse struct {
	// ProviderName labels which provider produced this response.
	ProviderName string `json:"provider_name"`

	// Text contains the trimmed response text. Empty text is tolerated
	// but scores degrade to their defined defaults.
	Text string `json:"text"`

	// ModelName identifies the specific model that generated the text.
	ModelName string `json:"model_name"`
}

// EvidenceSnippet is a short external passage offered as corroboration for
// a claim, paired with its embedding similarity to that claim. Snippets are
// transient; they exist only while one candidate is being scored.
type EvidenceSnippet struct {
	// Text is the snippet content, truncated to a bounded sentence count.
	Text string `json:"text"`

	// Similarity is the cosine similarity between the snippet and the
	// text it supports, in [-1, 1].
	Similarity float64 `json:"similarity"`
}

// ScoredCandidate is the evaluation result for a single CandidateResponse.
type ScoredCandidate struct {
	// CandidateID is the index of the response in the original candidate
	// list. It is stable and unique within one evaluation.
	CandidateID int `json:"candidate_id"`

	// FinalScore is the weighted combination of the three component scores.
	FinalScore float64 `json:"final_score"`

	// EvidenceScore measures external corroboration, in [0, 1].
	EvidenceScore float64 `json:"evidence_score"`

	// ConsensusScore measures agreement with the rest of the candidate
	// pool, in [0, 1]. Zero when fewer than two candidates exist.
	ConsensusScore float64 `json:"consensus_score"`

	// SentimentScore is the clarity proxy derived from tone
	// classification, in [0, 1].
	SentimentScore float64 `json:"sentiment_score"`

	// Response is the candidate this score belongs to.
	Response CandidateResponse `json:"response"`

	// EvidenceSnippets holds the supporting passages that passed the
	// similarity threshold, in retrieval order. May be empty.
	EvidenceSnippets []string `json:"evidence_snippets"`
}

// EvaluationResult is the output of one evaluation run. It is constructed
// fresh per request and never mutated after return.
type EvaluationResult struct {
	// ID uniquely identifies this evaluation run (typically a UUID).
	ID string `json:"id"`

	// Winner is the candidate with the highest final score, or nil when
	// there was nothing to evaluate.
	Winner *ScoredCandidate `json:"winner,omitempty"`

	// Explainability is a human-readable summary naming the winning
	// provider and its component scores.
	Explainability string `json:"explainability"`

	// AllCandidates contains every scored candidate in input order.
	// The slice is never sorted; CandidateID at position i equals i.
	AllCandidates []ScoredCandidate `json:"all_candidates"`

	// Timestamp records when this result was created.
	Timestamp time.Time `json:"timestamp"`
}

// ScoreWeights holds the fixed process-wide weights used to combine the
// three component scores. The weights conventionally sum to 1 but are not
// required to.
type ScoreWeights struct {
	// Evidence weights the external-corroboration score.
	Evidence float64 `yaml:"evidence" json:"evidence" validate:"min=0,max=1"`

	// Consensus weights the pool-agreement score.
	Consensus float64 `yaml:"consensus" json:"consensus" validate:"min=0,max=1"`

	// Clarity weights the sentiment-derived clarity score.
	Clarity float64 `yaml:"clarity" json:"clarity" validate:"min=0,max=1"`
}

// DefaultScoreWeights returns the standard 0.5/0.3/0.2 weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Evidence: 0.5, Consensus: 0.3, Clarity: 0.2}
}

// Combine applies the weights to the three component scores.
func (w ScoreWeights) Combine(evidence, consensus, clarity float64) float64 {
	return evidence*w.Evidence + consensus*w.Consensus + clarity*w.Clarity
}

// String returns a compact representation for logging.
func (w ScoreWeights) String() string {
	return fmt.Sprintf("evidence=%.2f consensus=%.2f clarity=%.2f",
		w.Evidence, w.Consensus, w.Clarity)
}
