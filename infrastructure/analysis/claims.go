package analysis

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/clipperhouse/uax29/v2/sentences"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-quorum/internal/ports"
)

var _ ports.ClaimExtractor = (*ClaimExtractor)(nil)

// foldCaser is a package-level Unicode case folder for performance.
// This avoids creating a new caser for each sentence inspection.
var foldCaser = cases.Fold()

// interrogativeTokens are leading words that disqualify a sentence from
// being treated as a factual claim. The set covers interrogatives and the
// auxiliary verbs that open questions.
var interrogativeTokens = map[string]struct{}{
	"what": {}, "why": {}, "how": {}, "when": {}, "where": {},
	"who": {}, "is": {}, "are": {}, "do": {}, "can": {},
}

// ClaimExtractorConfig controls how sentences are filtered into claims.
// Configuration is immutable after extractor creation.
type ClaimExtractorConfig struct {
	// MinClaimWords is the minimum word count (exclusive lower bound is
	// MinClaimWords-1) for a sentence to qualify as a claim.
	MinClaimWords int `yaml:"min_claim_words" json:"min_claim_words" validate:"required,min=1"`

	// MinFallbackWords is the looser word-count bound applied when no
	// sentence qualifies as a claim but sentences exist. The fallback
	// keeps evidence-seeking supplied with material to search with.
	MinFallbackWords int `yaml:"min_fallback_words" json:"min_fallback_words" validate:"required,min=1"`

	// DedupeSimilarity collapses near-duplicate claims whose normalized
	// Levenshtein similarity meets or exceeds this value. Zero disables
	// deduplication.
	DedupeSimilarity float64 `yaml:"dedupe_similarity" json:"dedupe_similarity" validate:"min=0,max=1"`
}

// DefaultClaimExtractorConfig returns the standard claim filter: word
// count above four, fallback above three, and near-duplicate suppression
// at 0.9 similarity.
func DefaultClaimExtractorConfig() ClaimExtractorConfig {
	return ClaimExtractorConfig{
		MinClaimWords:    5,
		MinFallbackWords: 4,
		DedupeSimilarity: 0.9,
	}
}

// ClaimExtractor splits free text into candidate factual statements using
// UAX#29 sentence segmentation and a heuristic filter. It is a pure
// function over its input and safe for concurrent use.
type ClaimExtractor struct {
	config ClaimExtractorConfig
}

// NewClaimExtractor creates a ClaimExtractor with a validated
// configuration.
func NewClaimExtractor(config ClaimExtractorConfig) (*ClaimExtractor, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ClaimExtractor{config: config}, nil
}

// Extract returns the sentences of text that qualify as factual claims.
//
// A sentence qualifies when its word count is at least MinClaimWords, it
// ends with a period, and its case-folded form does not start with an
// interrogative or auxiliary-verb token. When no sentence qualifies but at
// least one sentence exists, every sentence with word count at least
// MinFallbackWords is returned instead.
//
// Empty input yields an empty slice.
func (ce *ClaimExtractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var all []string
	segs := sentences.FromString(text)
	for segs.Next() {
		s := strings.TrimSpace(segs.Value())
		if s != "" {
			all = append(all, s)
		}
	}

	var claims []string
	for _, s := range all {
		if !ce.isClaim(s) {
			continue
		}
		if ce.config.DedupeSimilarity > 0 && isNearDuplicate(s, claims, ce.config.DedupeSimilarity) {
			continue
		}
		claims = append(claims, s)
	}
	if len(claims) > 0 {
		return claims
	}

	// Loosen the filter so evidence-seeking still has material.
	var fallback []string
	for _, s := range all {
		if wordCount(s) >= ce.config.MinFallbackWords {
			fallback = append(fallback, s)
		}
	}
	return fallback
}

func (ce *ClaimExtractor) isClaim(sentence string) bool {
	if wordCount(sentence) < ce.config.MinClaimWords {
		return false
	}
	if !strings.HasSuffix(sentence, ".") {
		return false
	}

	folded := foldCaser.String(sentence)
	first, _, _ := strings.Cut(folded, " ")
	_, interrogative := interrogativeTokens[strings.TrimSpace(first)]
	return !interrogative
}

// isNearDuplicate reports whether candidate is within the similarity
// threshold of any already-kept claim.
func isNearDuplicate(candidate string, kept []string, threshold float64) bool {
	a := foldCaser.String(candidate)
	for _, k := range kept {
		b := foldCaser.String(k)
		longest := max(len(a), len(b))
		if longest == 0 {
			continue
		}
		dist := levenshtein.ComputeDistance(a, b)
		if 1.0-float64(dist)/float64(longest) >= threshold {
			return true
		}
	}
	return false
}

func wordCount(s string) int { return len(strings.Fields(s)) }
