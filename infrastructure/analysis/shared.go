// Package analysis provides the scoring components of the aggregation
// pipeline: claim extraction, evidence retrieval, and clarity scoring.
// Each component is constructed with an explicit, validated configuration
// and narrow collaborator interfaces so it can be tested in isolation.
package analysis

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by analysis components.
var (
	// ErrNilEmbedder is returned when a component requires an embedder
	// but none was provided.
	ErrNilEmbedder = errors.New("embedder cannot be nil")

	// ErrNilEvidenceSource is returned when the evidence source
	// dependency is missing.
	ErrNilEvidenceSource = errors.New("evidence source cannot be nil")

	// ErrNilClassifier is returned when the sentiment classifier
	// dependency is missing.
	ErrNilClassifier = errors.New("sentiment classifier cannot be nil")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()
