package llm

import (
	"context"
	"strings"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-quorum/internal/domain"
	"github.com/ahrav/go-quorum/internal/ports"
)

// DefaultSystemPrompt steers providers toward comparable answers: plain
// prose embeds and scores more consistently than markdown.
const DefaultSystemPrompt = "Answer concisely in plain text without markdown."

// FanOutEntry binds one configured provider to its request parameters.
type FanOutEntry struct {
	// Label is the human-readable provider name attached to candidates.
	Label string

	// Client is the assembled provider client.
	Client ports.LLMClient

	// Temperature and MaxTokens are passed with every request.
	Temperature float64
	MaxTokens   int
}

// FanOut queries every configured provider concurrently and collects
// their answers as candidates. A provider that fails or returns a blank
// answer is skipped; the survivors keep their configured order.
type FanOut struct {
	entries []FanOutEntry
	system  string
}

var _ ports.CandidateProvider = (*FanOut)(nil)

// NewFanOut creates a fan-out over the given provider entries.
func NewFanOut(entries []FanOutEntry) *FanOut {
	return &FanOut{entries: entries, system: DefaultSystemPrompt}
}

// GetCandidates sends the prompt to all providers in parallel and
// returns the successful responses in configured provider order. An
// empty result is not an error; the only error returned is context
// cancellation.
func (f *FanOut) GetCandidates(ctx context.Context, prompt string) ([]domain.CandidateResponse, error) {
	if len(f.entries) == 0 {
		return nil, domain.ErrNoProviders
	}

	results := make([]*domain.CandidateResponse, len(f.entries))
	g, gctx := errgroup.WithContext(ctx)

	for i, entry := range f.entries {
		g.Go(func() error {
			options := map[string]any{
				"system":      f.system,
				"temperature": entry.Temperature,
				"max_tokens":  entry.MaxTokens,
			}

			text, err := entry.Client.Complete(gctx, prompt, options)
			if err != nil {
				clog.FromContext(gctx).Warnf("provider %s failed: %v", entry.Label, err)
				return gctx.Err()
			}

			text = strings.TrimSpace(text)
			if text == "" {
				clog.FromContext(gctx).Warnf("provider %s returned empty answer", entry.Label)
				return gctx.Err()
			}

			results[i] = &domain.CandidateResponse{
				ProviderName: entry.Label,
				Text:         text,
				ModelName:    entry.Client.GetModel(),
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]domain.CandidateResponse, 0, len(f.entries))
	for _, r := range results {
		if r != nil {
			candidates = append(candidates, *r)
		}
	}
	return candidates, nil
}
