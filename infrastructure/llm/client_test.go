package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCore is a scriptable CoreLLM used by the middleware tests.
type mockCore struct {
	mu       sync.Mutex
	response string
	errs     []error
	calls    int
	model    string
	delay    func(ctx context.Context) error
}

func (m *mockCore) DoRequest(ctx context.Context, _ string, _ map[string]any) (string, int, int, error) {
	m.mu.Lock()
	call := m.calls
	m.calls++
	m.mu.Unlock()

	if m.delay != nil {
		if err := m.delay(ctx); err != nil {
			return "", 0, 0, err
		}
	}
	if call < len(m.errs) && m.errs[call] != nil {
		return "", 0, 0, m.errs[call]
	}
	return m.response, 10, 20, nil
}

func (m *mockCore) GetModel() string {
	if m.model != "" {
		return m.model
	}
	return "mock-model"
}

func (m *mockCore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// TestNewClient_Validation verifies configuration checks and registry
// lookup.
func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("openai", ClientConfig{Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	_, err = NewClient("no-such-provider", ClientConfig{APIKey: "key"})
	assert.ErrorContains(t, err, "unknown provider")
}

// TestClient_MiddlewareOrder verifies the first configured middleware is
// the outermost wrapper.
func TestClient_MiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return &taggedCore{next: next, name: name, order: &order}
		}
	}

	RegisterProviderFactory("test-order", func(ClientConfig) (CoreLLM, error) {
		return &mockCore{response: "ok"}, nil
	})

	client, err := NewClient("test-order", ClientConfig{
		APIKey:     "key",
		Middleware: []Middleware{tag("outer"), tag("inner")},
	})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type taggedCore struct {
	next  CoreLLM
	name  string
	order *[]string
}

func (c *taggedCore) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	*c.order = append(*c.order, c.name)
	return c.next.DoRequest(ctx, prompt, opts)
}

func (c *taggedCore) GetModel() string { return c.next.GetModel() }

// TestClient_CompleteWithUsage verifies token counts pass through.
func TestClient_CompleteWithUsage(t *testing.T) {
	RegisterProviderFactory("test-usage", func(ClientConfig) (CoreLLM, error) {
		return &mockCore{response: "answer"}, nil
	})

	client, err := NewClient("test-usage", ClientConfig{APIKey: "key"})
	require.NoError(t, err)

	response, tokensIn, tokensOut, err := client.CompleteWithUsage(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, "answer", response)
	assert.Equal(t, 10, tokensIn)
	assert.Equal(t, 20, tokensOut)
}

// TestSimpleTokenEstimator verifies the 4-characters-per-token heuristic
// rounds up.
func TestSimpleTokenEstimator(t *testing.T) {
	e := &SimpleTokenEstimator{}

	assert.Equal(t, 0, e.EstimateTokens(""))
	assert.Equal(t, 1, e.EstimateTokens("abc"))
	assert.Equal(t, 1, e.EstimateTokens("abcd"))
	assert.Equal(t, 2, e.EstimateTokens("abcde"))
}

// TestProviderError verifies classification and retryability.
func TestProviderError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "test"}

	tests := []struct {
		name      string
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{"unauthorized", 401, ErrorTypeAuthentication, false},
		{"rate limited", 429, ErrorTypeRateLimit, true},
		{"bad request", 400, ErrorTypeBadRequest, false},
		{"not found", 404, ErrorTypeNotFound, false},
		{"server error", 503, ErrorTypeServerError, true},
		{"odd client error", 418, ErrorTypeBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := ec.ClassifyHTTPError(tt.status, "message", errors.New("wrapped"))
			assert.Equal(t, tt.wantType, perr.Type)
			assert.Equal(t, tt.retryable, perr.IsRetryable())
			assert.Contains(t, perr.Error(), "test error")
		})
	}

	t.Run("context errors are retryable network failures", func(t *testing.T) {
		perr := ec.ClassifyContextError(context.DeadlineExceeded)
		assert.Equal(t, ErrorTypeNetwork, perr.Type)
		assert.True(t, perr.IsRetryable())
		assert.ErrorIs(t, perr, context.DeadlineExceeded)
	})
}

// TestParseRequestOptions verifies defaults and invalid-value fallback.
func TestParseRequestOptions(t *testing.T) {
	t.Run("nil map uses defaults", func(t *testing.T) {
		options := ParseRequestOptions(nil, "default-model")
		assert.Equal(t, DefaultMaxTokens, options.MaxTokens)
		assert.Equal(t, "default-model", options.Model)
		assert.Nil(t, options.Temperature)
		assert.Empty(t, options.System)
	})

	t.Run("valid values are extracted", func(t *testing.T) {
		options := ParseRequestOptions(map[string]any{
			"max_tokens":  300,
			"model":       "other-model",
			"temperature": 0.3,
			"system":      "be brief",
		}, "default-model")

		assert.Equal(t, 300, options.MaxTokens)
		assert.Equal(t, "other-model", options.Model)
		require.NotNil(t, options.Temperature)
		assert.InDelta(t, 0.3, *options.Temperature, 1e-9)
		assert.Equal(t, "be brief", options.System)
	})

	t.Run("invalid values fall back", func(t *testing.T) {
		options := ParseRequestOptions(map[string]any{
			"max_tokens":  -5,
			"model":       "",
			"temperature": 9.0,
		}, "default-model")

		assert.Equal(t, DefaultMaxTokens, options.MaxTokens)
		assert.Equal(t, "default-model", options.Model)
		assert.Nil(t, options.Temperature)
	})
}
