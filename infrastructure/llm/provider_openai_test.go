package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))
}

// TestOpenAIProvider_DoRequest verifies request handling against a stub
// API server.
func TestOpenAIProvider_DoRequest(t *testing.T) {
	t.Run("returns content and reported usage", func(t *testing.T) {
		server := newOpenAIServer(t, http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "the answer"}},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7},
		})
		defer server.Close()

		core, err := newOpenAIProvider(ClientConfig{APIKey: "key", BaseURL: server.URL})
		require.NoError(t, err)

		response, tokensIn, tokensOut, err := core.DoRequest(context.Background(), "question", nil)
		require.NoError(t, err)
		assert.Equal(t, "the answer", response)
		assert.Equal(t, 12, tokensIn)
		assert.Equal(t, 7, tokensOut)
	})

	t.Run("no choices is an error", func(t *testing.T) {
		server := newOpenAIServer(t, http.StatusOK, map[string]any{
			"choices": []map[string]any{},
		})
		defer server.Close()

		core, err := newOpenAIProvider(ClientConfig{APIKey: "key", BaseURL: server.URL})
		require.NoError(t, err)

		_, _, _, err = core.DoRequest(context.Background(), "question", nil)
		assert.ErrorIs(t, err, ErrNoResponseChoice)
	})

	t.Run("HTTP errors are classified", func(t *testing.T) {
		server := newOpenAIServer(t, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		})
		defer server.Close()

		core, err := newOpenAIProvider(ClientConfig{APIKey: "key", BaseURL: server.URL})
		require.NoError(t, err)

		_, _, _, err = core.DoRequest(context.Background(), "question", nil)
		require.Error(t, err)

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, ErrorTypeRateLimit, perr.Type)
		assert.True(t, perr.IsRetryable())
	})
}

// TestProviderFactories_RequireAPIKey verifies every registered factory
// rejects a missing credential.
func TestProviderFactories_RequireAPIKey(t *testing.T) {
	for _, provider := range []string{"openai", "anthropic", "google"} {
		t.Run(provider, func(t *testing.T) {
			_, err := providerFactories[provider](ClientConfig{})
			assert.ErrorIs(t, err, ErrEmptyAPIKey)
		})
	}
}

// TestOpenAIProvider_DefaultModel verifies the model fallback.
func TestOpenAIProvider_DefaultModel(t *testing.T) {
	core, err := newOpenAIProvider(ClientConfig{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, OpenAIDefaultModel, core.GetModel())

	core, err = newOpenAIProvider(ClientConfig{APIKey: "key", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", core.GetModel())
}
