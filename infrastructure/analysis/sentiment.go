package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/ahrav/go-quorum/internal/ports"
)

var _ ports.ClarityScorer = (*SentimentScorer)(nil)

// NeutralClarityScore is the clarity value assigned to blank input and to
// any classification outcome other than a confident POSITIVE or NEGATIVE
// label, including classifier failures.
const NeutralClarityScore = 0.5

// SentimentScorerConfig bounds the text passed to the underlying
// classifier.
type SentimentScorerConfig struct {
	// MaxChars truncates input before classification to respect model
	// input limits.
	MaxChars int `yaml:"max_chars" json:"max_chars" validate:"required,min=32,max=8192"`
}

// DefaultSentimentScorerConfig returns the standard 512-character bound.
func DefaultSentimentScorerConfig() SentimentScorerConfig {
	return SentimentScorerConfig{MaxChars: 512}
}

// SentimentScorer maps tone classifications into a bounded clarity score.
//
// Mapping: POSITIVE keeps the classifier confidence as-is, NEGATIVE
// inverts it (1 - confidence), and any other label yields the neutral 0.5.
// Classifier failures are converted to the ERROR sentinel with zero
// confidence, which the "other label" branch also maps to 0.5; the degrade
// path is an explicit branch, not blanket suppression.
type SentimentScorer struct {
	config     SentimentScorerConfig
	classifier ports.SentimentClassifier
}

// NewSentimentScorer creates a SentimentScorer with validated
// configuration and a required classifier.
func NewSentimentScorer(classifier ports.SentimentClassifier, config SentimentScorerConfig) (*SentimentScorer, error) {
	if classifier == nil {
		return nil, ErrNilClassifier
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &SentimentScorer{config: config, classifier: classifier}, nil
}

// Score returns the clarity proxy for text, always in [0, 1].
// Blank input yields exactly the neutral 0.5 without invoking the
// classifier.
func (ss *SentimentScorer) Score(ctx context.Context, text string) float64 {
	if strings.TrimSpace(text) == "" {
		return NeutralClarityScore
	}

	cls, err := ss.classifier.Classify(ctx, truncateRunes(text, ss.config.MaxChars))
	if err != nil {
		clog.FromContext(ctx).Warnf("sentiment classification failed: %v", err)
		cls = ports.Classification{Label: ports.SentimentError, Confidence: 0}
	}

	var score float64
	switch cls.Label {
	case ports.SentimentPositive:
		score = cls.Confidence
	case ports.SentimentNegative:
		score = 1 - cls.Confidence
	default:
		score = NeutralClarityScore
	}

	return clamp01(score)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
