package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-quorum/internal/ports"
)

// fakeClassifier returns a canned classification and records the text it
// was asked to classify.
type fakeClassifier struct {
	result ports.Classification
	err    error

	lastText string
	calls    int
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (ports.Classification, error) {
	f.calls++
	f.lastText = text
	if f.err != nil {
		return ports.Classification{}, f.err
	}
	return f.result, nil
}

func newTestScorer(t *testing.T, classifier ports.SentimentClassifier) *SentimentScorer {
	t.Helper()
	ss, err := NewSentimentScorer(classifier, DefaultSentimentScorerConfig())
	require.NoError(t, err)
	return ss
}

// TestSentimentScorer_Mapping verifies the label-to-clarity mapping.
func TestSentimentScorer_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		result ports.Classification
		err    error
		want   float64
	}{
		{
			name:   "positive keeps confidence",
			result: ports.Classification{Label: ports.SentimentPositive, Confidence: 0.92},
			want:   0.92,
		},
		{
			name:   "negative inverts confidence",
			result: ports.Classification{Label: ports.SentimentNegative, Confidence: 0.8},
			want:   0.2,
		},
		{
			name:   "unknown label maps to neutral",
			result: ports.Classification{Label: "MIXED", Confidence: 0.99},
			want:   NeutralClarityScore,
		},
		{
			name: "classifier error degrades to neutral",
			err:  errors.New("pipeline unavailable"),
			want: NeutralClarityScore,
		},
		{
			name:   "error sentinel maps to neutral",
			result: ports.Classification{Label: ports.SentimentError, Confidence: 0},
			want:   NeutralClarityScore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ss := newTestScorer(t, &fakeClassifier{result: tt.result, err: tt.err})
			got := ss.Score(context.Background(), "Some answer text.")
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

// TestSentimentScorer_BlankInput verifies the blank short circuit: the
// classifier must not be invoked and the score is exactly neutral.
func TestSentimentScorer_BlankInput(t *testing.T) {
	classifier := &fakeClassifier{}
	ss := newTestScorer(t, classifier)

	assert.Equal(t, NeutralClarityScore, ss.Score(context.Background(), ""))
	assert.Equal(t, NeutralClarityScore, ss.Score(context.Background(), "   \t\n"))
	assert.Zero(t, classifier.calls)
}

// TestSentimentScorer_Truncation verifies input is bounded before
// classification.
func TestSentimentScorer_Truncation(t *testing.T) {
	classifier := &fakeClassifier{result: ports.Classification{Label: ports.SentimentPositive, Confidence: 0.5}}
	ss := newTestScorer(t, classifier)

	long := strings.Repeat("a", 2000)
	ss.Score(context.Background(), long)

	assert.Len(t, classifier.lastText, DefaultSentimentScorerConfig().MaxChars)
}

// TestNewSentimentScorer_Validation verifies dependency and configuration
// checks.
func TestNewSentimentScorer_Validation(t *testing.T) {
	_, err := NewSentimentScorer(nil, DefaultSentimentScorerConfig())
	assert.ErrorIs(t, err, ErrNilClassifier)

	_, err = NewSentimentScorer(&fakeClassifier{}, SentimentScorerConfig{MaxChars: 1})
	assert.Error(t, err)
}
