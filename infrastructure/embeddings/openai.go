// Package embeddings adapts remote embedding model APIs to the Embedder
// port used by evidence retrieval and consensus scoring.
package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-quorum/internal/ports"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = "text-embedding-3-small"

// OpenAIEmbedderConfig configures the OpenAI embedding adapter.
type OpenAIEmbedderConfig struct {
	// APIKey authenticates embedding requests.
	APIKey string

	// Model names the embedding model; empty uses the default.
	Model string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds individual HTTP requests.
	Timeout time.Duration
}

// OpenAIEmbedder implements ports.Embedder over OpenAI's embeddings API.
// The underlying client is created lazily on first use so that process
// startup does not depend on the embedding backend.
type OpenAIEmbedder struct {
	config OpenAIEmbedderConfig

	once   sync.Once
	client *openai.Client
}

var _ ports.Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates the adapter. The API key is required.
func NewOpenAIEmbedder(config OpenAIEmbedderConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("embedding API key cannot be empty")
	}
	if config.Model == "" {
		config.Model = DefaultEmbeddingModel
	}
	return &OpenAIEmbedder{config: config}, nil
}

func (e *OpenAIEmbedder) getClient() *openai.Client {
	e.once.Do(func() {
		clientConfig := openai.DefaultConfig(e.config.APIKey)
		if e.config.BaseURL != "" {
			clientConfig.BaseURL = e.config.BaseURL
		}
		if e.config.Timeout > 0 {
			clientConfig.HTTPClient = &http.Client{Timeout: e.config.Timeout}
		}
		e.client = openai.NewClientWithConfig(clientConfig)
	})
	return e.client
}

// EmbedOne returns the embedding for one text. Blank input yields an
// empty vector without calling the API.
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return []float64{}, nil
	}

	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany returns one embedding per input text, in input order. Blank
// inputs map to empty vectors; they are excluded from the API call so
// the request never carries empty strings.
func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	nonBlank := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = []float64{}
			continue
		}
		nonBlank = append(nonBlank, t)
		positions = append(positions, i)
	}
	if len(nonBlank) == 0 {
		return out, nil
	}

	vectors, err := e.embed(ctx, nonBlank)
	if err != nil {
		return nil, err
	}
	for j, pos := range positions {
		out[pos] = vectors[j]
	}
	return out, nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.getClient().CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.config.Model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index out of range: %d", item.Index)
		}
		vec := make([]float64, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float64(v)
		}
		vectors[item.Index] = vec
	}
	return vectors, nil
}
