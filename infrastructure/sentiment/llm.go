// Package sentiment provides tone classifiers used to derive the
// clarity score of candidate answers.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-quorum/internal/ports"
)

var validate = validator.New()

// classifierPrompt asks the model for a binary tone verdict in strict
// JSON so the response can be parsed mechanically.
const classifierPrompt = `Classify the overall tone of the following text as POSITIVE or NEGATIVE.
Respond with JSON only: {"label": "POSITIVE" or "NEGATIVE", "confidence": 0.0-1.0}

Text:
%s`

// LLMClassifierConfig configures the LLM-backed classifier.
type LLMClassifierConfig struct {
	// Temperature for the classification request. Kept low so verdicts
	// are stable across identical inputs.
	Temperature float64 `validate:"min=0,max=1"`

	// MaxTokens bounds the classification response.
	MaxTokens int `validate:"required,min=16,max=512"`
}

// DefaultLLMClassifierConfig returns deterministic classification
// settings.
func DefaultLLMClassifierConfig() LLMClassifierConfig {
	return LLMClassifierConfig{Temperature: 0.0, MaxTokens: 64}
}

// LLMClassifier implements ports.SentimentClassifier by asking an LLM
// for a structured tone verdict.
type LLMClassifier struct {
	client ports.LLMClient
	config LLMClassifierConfig
}

var _ ports.SentimentClassifier = (*LLMClassifier)(nil)

// NewLLMClassifier creates the classifier with validated configuration.
func NewLLMClassifier(client ports.LLMClient, config LLMClassifierConfig) (*LLMClassifier, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client cannot be nil")
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &LLMClassifier{client: client, config: config}, nil
}

// classificationResponse is the JSON shape the model is asked for.
type classificationResponse struct {
	Label      string  `json:"label" validate:"required"`
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`
}

// Classify asks the model for a tone verdict and parses the JSON reply.
func (c *LLMClassifier) Classify(ctx context.Context, text string) (ports.Classification, error) {
	options := map[string]any{
		"temperature": c.config.Temperature,
		"max_tokens":  c.config.MaxTokens,
	}

	response, err := c.client.Complete(ctx, fmt.Sprintf(classifierPrompt, text), options)
	if err != nil {
		return ports.Classification{}, fmt.Errorf("classification request: %w", err)
	}

	return c.parseResponse(response)
}

func (c *LLMClassifier) parseResponse(response string) (ports.Classification, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return ports.Classification{}, fmt.Errorf("no valid JSON found in response")
	}

	var parsed classificationResponse
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return ports.Classification{}, fmt.Errorf("parsing classification: %w", err)
	}
	if err := validate.Struct(parsed); err != nil {
		return ports.Classification{}, fmt.Errorf("invalid classification: %w", err)
	}

	return ports.Classification{
		Label:      ports.SentimentLabel(strings.ToUpper(strings.TrimSpace(parsed.Label))),
		Confidence: parsed.Confidence,
	}, nil
}

// extractJSON pulls a JSON object out of a model response, handling
// markdown code fences and surrounding prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if idx := strings.Index(response, "```json"); idx != -1 {
		rest := response[idx+7:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}

	if idx := strings.Index(response, "```"); idx != -1 {
		rest := response[idx+3:]
		if nl := strings.Index(rest, "\n"); nl != -1 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			candidate := strings.TrimSpace(rest[:end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	// Scan for the matching close brace, respecting strings and escapes.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return response[start : i+1]
				}
			}
		}
	}
	return ""
}
