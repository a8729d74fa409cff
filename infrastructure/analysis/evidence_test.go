package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEvidenceSource returns canned titles and summaries for testing.
type fakeEvidenceSource struct {
	titles    []string
	summaries map[string]string

	searchErr error
	fetchErr  map[string]error
}

func (f *fakeEvidenceSource) Search(_ context.Context, _ string, maxResults int) ([]string, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.titles) > maxResults {
		return f.titles[:maxResults], nil
	}
	return f.titles, nil
}

func (f *fakeEvidenceSource) FetchSummary(_ context.Context, title string, _ int) (string, error) {
	if err := f.fetchErr[title]; err != nil {
		return "", err
	}
	return f.summaries[title], nil
}

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float64
	oneErr  error
	manyErr error
}

func (f *fakeEmbedder) EmbedOne(_ context.Context, text string) ([]float64, error) {
	if f.oneErr != nil {
		return nil, f.oneErr
	}
	return f.vectors[text], nil
}

func (f *fakeEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float64, error) {
	if f.manyErr != nil {
		return nil, f.manyErr
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func newTestRetriever(t *testing.T, source *fakeEvidenceSource, embedder *fakeEmbedder) *EvidenceRetriever {
	t.Helper()
	er, err := NewEvidenceRetriever(source, embedder, DefaultEvidenceRetrieverConfig())
	require.NoError(t, err)
	return er
}

// TestEvidenceRetriever_SupportingSnippets verifies that snippets above
// the similarity threshold are kept and their similarities averaged.
func TestEvidenceRetriever_SupportingSnippets(t *testing.T) {
	source := &fakeEvidenceSource{
		titles: []string{"A", "B", "C"},
		summaries: map[string]string{
			"A": "strong support",
			"B": "weak support",
			"C": "partial support",
		},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"the claim":       {1, 0},
		"strong support":  {1, 0},      // similarity 1.0
		"weak support":    {0, 1},      // similarity 0.0, filtered
		"partial support": {1, 0.5774}, // similarity ~0.866
	}}

	er := newTestRetriever(t, source, embedder)
	snippets, score := er.GetEvidenceAndScore(context.Background(), "the claim")

	require.Len(t, snippets, 2)
	assert.Equal(t, "strong support", snippets[0].Text)
	assert.Equal(t, "partial support", snippets[1].Text)
	assert.InDelta(t, (1.0+0.866)/2, score, 0.01)
	assert.GreaterOrEqual(t, score, DefaultEvidenceRetrieverConfig().SimilarityThreshold)
}

// TestEvidenceRetriever_Degradation verifies that every upstream failure
// mode degrades to "no evidence found" rather than surfacing.
func TestEvidenceRetriever_Degradation(t *testing.T) {
	claimVec := map[string][]float64{"the claim": {1, 0}}

	tests := []struct {
		name     string
		source   *fakeEvidenceSource
		embedder *fakeEmbedder
	}{
		{
			name:     "search error",
			source:   &fakeEvidenceSource{searchErr: errors.New("upstream unreachable")},
			embedder: &fakeEmbedder{vectors: claimVec},
		},
		{
			name:     "no search results",
			source:   &fakeEvidenceSource{},
			embedder: &fakeEmbedder{vectors: claimVec},
		},
		{
			name: "all fetches fail",
			source: &fakeEvidenceSource{
				titles:   []string{"A"},
				fetchErr: map[string]error{"A": errors.New("no such page")},
			},
			embedder: &fakeEmbedder{vectors: claimVec},
		},
		{
			name: "missing pages yield empty summaries",
			source: &fakeEvidenceSource{
				titles:    []string{"A"},
				summaries: map[string]string{},
			},
			embedder: &fakeEmbedder{vectors: claimVec},
		},
		{
			name: "input embedding fails",
			source: &fakeEvidenceSource{
				titles:    []string{"A"},
				summaries: map[string]string{"A": "text"},
			},
			embedder: &fakeEmbedder{oneErr: errors.New("model down")},
		},
		{
			name: "snippet embedding fails",
			source: &fakeEvidenceSource{
				titles:    []string{"A"},
				summaries: map[string]string{"A": "text"},
			},
			embedder: &fakeEmbedder{vectors: claimVec, manyErr: errors.New("model down")},
		},
		{
			name: "all similarities below threshold",
			source: &fakeEvidenceSource{
				titles:    []string{"A"},
				summaries: map[string]string{"A": "unrelated"},
			},
			embedder: &fakeEmbedder{vectors: map[string][]float64{
				"the claim": {1, 0},
				"unrelated": {0, 1},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			er := newTestRetriever(t, tt.source, tt.embedder)
			snippets, score := er.GetEvidenceAndScore(context.Background(), "the claim")
			assert.Empty(t, snippets)
			assert.Zero(t, score)
		})
	}
}

// TestEvidenceRetriever_BlankInput verifies the empty-input short circuit.
func TestEvidenceRetriever_BlankInput(t *testing.T) {
	er := newTestRetriever(t, &fakeEvidenceSource{}, &fakeEmbedder{})
	snippets, score := er.GetEvidenceAndScore(context.Background(), "  \n ")
	assert.Empty(t, snippets)
	assert.Zero(t, score)
}

// TestEvidenceRetriever_PartialFetchFailure verifies that one failing
// title does not suppress snippets from the others.
func TestEvidenceRetriever_PartialFetchFailure(t *testing.T) {
	source := &fakeEvidenceSource{
		titles:    []string{"bad", "good"},
		summaries: map[string]string{"good": "matching text"},
		fetchErr:  map[string]error{"bad": errors.New("boom")},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"the claim":     {1, 0},
		"matching text": {1, 0},
	}}

	er := newTestRetriever(t, source, embedder)
	snippets, score := er.GetEvidenceAndScore(context.Background(), "the claim")

	require.Len(t, snippets, 1)
	assert.Equal(t, "matching text", snippets[0].Text)
	assert.InDelta(t, 1.0, score, 1e-9)
}

// TestNewEvidenceRetriever_Validation verifies dependency and
// configuration checks.
func TestNewEvidenceRetriever_Validation(t *testing.T) {
	cfg := DefaultEvidenceRetrieverConfig()

	_, err := NewEvidenceRetriever(nil, &fakeEmbedder{}, cfg)
	assert.ErrorIs(t, err, ErrNilEvidenceSource)

	_, err = NewEvidenceRetriever(&fakeEvidenceSource{}, nil, cfg)
	assert.ErrorIs(t, err, ErrNilEmbedder)

	cfg.MaxSearchResults = 0
	_, err = NewEvidenceRetriever(&fakeEvidenceSource{}, &fakeEmbedder{}, cfg)
	assert.Error(t, err)
}
