// Package llm wraps the chat completion APIs of multiple LLM providers
// behind a single interface so that prompts can be fanned out to all of
// them uniformly.
//
// Providers implement the small CoreLLM interface and are wrapped by
// middleware for retries, rate limiting, timeouts, and metrics. The
// assembled chain is exposed to the rest of the system through
// ports.LLMClient.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.RetryMiddleware(2, 200*time.Millisecond, 5*time.Second),
//	        llm.TimeoutMiddleware(30 * time.Second),
//	    },
//	})
//	answer, err := client.Complete(ctx, "What causes tides?", nil)
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-quorum/internal/ports"
)

// CoreLLM is the minimal surface a provider must implement. Middleware
// wraps any conforming implementation without knowing which provider is
// underneath.
type CoreLLM interface {
	// DoRequest sends a prompt and returns the response text plus input
	// and output token counts. Token counts fall back to estimates when
	// the provider does not report usage.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the configured model name.
	GetModel() string
}

// TokenEstimator approximates token counts for text when exact counts
// are unavailable before a request is made.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// Middleware wraps a CoreLLM to add cross-cutting behavior such as
// retries or rate limiting without touching provider logic.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig configures one provider client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model selects the model; empty uses the provider default.
	Model string

	// BaseURL overrides the provider's API endpoint. Empty uses the
	// default endpoint.
	BaseURL string

	// Timeout bounds individual HTTP requests. Zero means no timeout.
	Timeout time.Duration

	// TokenEstimator overrides the character-based default.
	TokenEstimator TokenEstimator

	// Middleware is applied in order; the first entry is outermost.
	Middleware []Middleware
}

// Client implements ports.LLMClient over a middleware-wrapped CoreLLM.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient assembles a provider client with its middleware chain.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", providerType, err)
	}

	// Reverse order so the first configured middleware runs first.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = &SimpleTokenEstimator{}
	}

	return &Client{core: core, estimator: estimator}, nil
}

// Complete sends a prompt through the middleware chain and returns the
// response text, discarding token usage.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.core.DoRequest(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage returns the response along with input and output
// token counts for cost tracking.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	return c.core.DoRequest(ctx, prompt, options)
}

// EstimateTokens approximates the token count of text before a request.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SimpleTokenEstimator approximates four characters per token, a
// reasonable heuristic for English text.
type SimpleTokenEstimator struct{}

// EstimateTokens returns a character-based token estimate.
func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory builds a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under a name so that
// NewClient can construct it. Providers self-register in init.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
