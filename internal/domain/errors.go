package domain

import "errors"

// Common domain errors returned by the aggregation engine.
var (
	// ErrEmptyPrompt indicates that a blank prompt was submitted.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrNoProviders indicates that no LLM providers are configured.
	ErrNoProviders = errors.New("no LLM providers configured")

	// ErrInvalidConfiguration indicates that configuration is invalid
	// or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Explanations used for the defined "nothing to evaluate" outcomes.
// These are normal return values, not errors; the hosting shell decides
// how to surface them.
const (
	// ExplainNoResponses is used when the candidate list is empty.
	ExplainNoResponses = "No responses to evaluate"

	// ExplainNoneScored is used when no candidate produced a comparable
	// scored result.
	ExplainNoneScored = "No candidates could be scored"
)
