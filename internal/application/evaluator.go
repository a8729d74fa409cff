// Package application contains the evaluation orchestrator and the
// process-wide configuration surface of the aggregation engine.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
)

// DefaultEvaluatorConcurrency bounds how many candidates are scored
// simultaneously. Evidence and sentiment lookups dominate the cost, so a
// small fan-out is enough to hide their latency.
const DefaultEvaluatorConcurrency = 4

// EvaluatorConfig controls score weighting and candidate fan-out.
type EvaluatorConfig struct {
	// Weights combines the three component scores into the final score.
	Weights domain.ScoreWeights `yaml:"weights" json:"weights"`

	// ClaimFiltering enables the optional pre-filtering stage: evidence
	// is retrieved per extracted claim and the claim scores are averaged,
	// instead of querying with the whole response text.
	ClaimFiltering bool `yaml:"claim_filtering" json:"claim_filtering"`

	// MaxConcurrency limits concurrent candidate scoring.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"min=1,max=32"`
}

// DefaultEvaluatorConfig returns the standard 0.5/0.3/0.2 weighting with
// whole-text evidence queries.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Weights:        domain.DefaultScoreWeights(),
		ClaimFiltering: false,
		MaxConcurrency: DefaultEvaluatorConcurrency,
	}
}

// Evaluator scores candidate responses against external evidence, pool
// consensus, and tone-derived clarity, then selects a winner.
//
// Each candidate's scoring is independent: a failure in evidence retrieval
// or sentiment scoring degrades that candidate's sub-scores to their
// defined defaults (0.0 / 0.5) without affecting the other candidates.
// The evaluator holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	config   EvaluatorConfig
	embedder ports.Embedder
	evidence ports.EvidenceScorer
	clarity  ports.ClarityScorer
	claims   ports.ClaimExtractor
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
}

// NewEvaluator creates an Evaluator with validated configuration.
// The embedder, evidence scorer, and clarity scorer are required. The
// claim extractor is only consulted when ClaimFiltering is enabled, and
// the metrics collector may be nil.
func NewEvaluator(
	embedder ports.Embedder,
	evidence ports.EvidenceScorer,
	clarity ports.ClarityScorer,
	claims ports.ClaimExtractor,
	metrics ports.MetricsCollector,
	config EvaluatorConfig,
) (*Evaluator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if evidence == nil {
		return nil, fmt.Errorf("evidence scorer cannot be nil")
	}
	if clarity == nil {
		return nil, fmt.Errorf("clarity scorer cannot be nil")
	}
	if config.ClaimFiltering && claims == nil {
		return nil, fmt.Errorf("claim filtering requires a claim extractor")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultEvaluatorConcurrency
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &Evaluator{
		config:   config,
		embedder: embedder,
		evidence: evidence,
		clarity:  clarity,
		claims:   claims,
		metrics:  metrics,
		tracer:   otel.Tracer("quorum/evaluator"),
	}, nil
}

// Evaluate scores every candidate and selects the one with the highest
// weighted final score. Ties break toward the earliest index.
//
// The returned result lists all candidates in input order, with
// CandidateID at position i equal to i. An empty candidate list yields a
// result with no winner and an explanatory message rather than an error.
// The only error returned is context cancellation.
func (e *Evaluator) Evaluate(ctx context.Context, prompt string, candidates []domain.CandidateResponse) (domain.EvaluationResult, error) {
	ctx, span := e.tracer.Start(ctx, "evaluator.evaluate",
		trace.WithAttributes(attribute.Int("candidates", len(candidates))))
	defer span.End()
	start := time.Now()

	if len(candidates) == 0 {
		return domain.EvaluationResult{
			ID:             uuid.NewString(),
			Winner:         nil,
			Explainability: domain.ExplainNoResponses,
			AllCandidates:  []domain.ScoredCandidate{},
			Timestamp:      time.Now().UTC(),
		}, nil
	}

	// One batch embedding call up front amortizes model cost; the pool is
	// also what consensus scoring compares against.
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	embeddings, err := e.embedder.EmbedMany(ctx, texts)
	if err != nil || len(embeddings) != len(candidates) {
		clog.FromContext(ctx).Warnf("batch embedding failed, consensus degrades to zero: %v", err)
		embeddings = make([][]float64, len(candidates))
	}

	scored := make([]domain.ScoredCandidate, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrency)

	for i, candidate := range candidates {
		g.Go(func() error {
			snippets, evidenceScore := e.scoreEvidence(gctx, candidate.Text)
			clarityScore := e.clarity.Score(gctx, candidate.Text)
			consensusScore := domain.ConsensusScore(embeddings[i], embeddings)

			scored[i] = domain.ScoredCandidate{
				CandidateID:      i,
				FinalScore:       e.config.Weights.Combine(evidenceScore, consensusScore, clarityScore),
				EvidenceScore:    evidenceScore,
				ConsensusScore:   consensusScore,
				SentimentScore:   clarityScore,
				Response:         candidate,
				EvidenceSnippets: snippets,
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("evaluation canceled: %w", err)
	}

	if len(scored) == 0 {
		return domain.EvaluationResult{
			ID:             uuid.NewString(),
			Explainability: domain.ExplainNoneScored,
			AllCandidates:  []domain.ScoredCandidate{},
			Timestamp:      time.Now().UTC(),
		}, nil
	}

	// Strictly-highest final score wins; first-seen wins on ties.
	winnerIdx := 0
	for i, sc := range scored {
		if sc.FinalScore > scored[winnerIdx].FinalScore {
			winnerIdx = i
		}
	}
	winner := scored[winnerIdx]

	explanation := fmt.Sprintf(
		"Selected %s (score: %.2f). Evidence: %.2f, Consensus: %.2f, Clarity: %.2f",
		winner.Response.ProviderName,
		winner.FinalScore,
		winner.EvidenceScore,
		winner.ConsensusScore,
		winner.SentimentScore,
	)

	e.recordMetrics(len(candidates), winner, time.Since(start))
	span.SetAttributes(
		attribute.String("winner.provider", winner.Response.ProviderName),
		attribute.Float64("winner.score", winner.FinalScore),
	)

	return domain.EvaluationResult{
		ID:             uuid.NewString(),
		Winner:         &winner,
		Explainability: explanation,
		AllCandidates:  scored,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// scoreEvidence retrieves evidence for a candidate's own response text.
// The grounding question is "does external evidence support what this
// candidate said", not "does evidence support the question asked", so the
// prompt is never used as the query.
//
// With claim filtering enabled, each extracted claim is scored separately
// and the claim scores are averaged; the snippet lists are concatenated in
// claim order. When no claims are extracted, or filtering is disabled, the
// whole response text is the query.
func (e *Evaluator) scoreEvidence(ctx context.Context, text string) ([]string, float64) {
	if e.config.ClaimFiltering {
		if claims := e.claims.Extract(text); len(claims) > 0 {
			var all []string
			var sum float64
			for _, claim := range claims {
				snippets, score := e.evidence.GetEvidenceAndScore(ctx, claim)
				for _, s := range snippets {
					all = append(all, s.Text)
				}
				sum += score
			}
			return all, sum / float64(len(claims))
		}
	}

	snippets, score := e.evidence.GetEvidenceAndScore(ctx, text)
	texts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		texts = append(texts, s.Text)
	}
	return texts, score
}

func (e *Evaluator) recordMetrics(candidates int, winner domain.ScoredCandidate, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	labels := map[string]string{"winner_provider": winner.Response.ProviderName}
	e.metrics.RecordLatency("evaluate", elapsed, labels)
	e.metrics.RecordCounter("evaluations_total", 1, labels)
	e.metrics.RecordGauge("candidates_evaluated", float64(candidates), nil)
	e.metrics.RecordHistogram("winner_final_score", winner.FinalScore, labels)
}
