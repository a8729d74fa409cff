// Command quorumd runs the answer aggregation service: it fans a prompt
// out to multiple LLM providers, scores the answers against external
// evidence, pool consensus, and tone, and serves the best one over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-quorum/infrastructure/analysis"
	"github.com/ahrav/go-quorum/infrastructure/embeddings"
	"github.com/ahrav/go-quorum/infrastructure/evidence"
	"github.com/ahrav/go-quorum/infrastructure/llm"
	"github.com/ahrav/go-quorum/infrastructure/middleware"
	"github.com/ahrav/go-quorum/infrastructure/sentiment"
	"github.com/ahrav/go-quorum/infrastructure/storage"
	"github.com/ahrav/go-quorum/internal/api"
	"github.com/ahrav/go-quorum/internal/application"
)

var (
	configPath string
	listenAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "quorumd",
		Short:        "Evidence-grounded multi-LLM answer aggregation service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML configuration file")
	rootCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address override, e.g. :8000")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := clog.New(slog.NewJSONHandler(os.Stderr, nil))
	ctx = clog.WithLogger(ctx, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := application.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}
	secrets, err := application.LoadSecrets(ctx)
	if err != nil {
		return err
	}

	metrics := middleware.NewPrometheusMetrics(prometheus.DefaultRegisterer)

	entries, err := buildProviders(cfg, secrets, metrics)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("no providers configured with credentials")
	}
	fanout := llm.NewFanOut(entries)

	if secrets.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required for embeddings")
	}
	embedder, err := embeddings.NewOpenAIEmbedder(embeddings.OpenAIEmbedderConfig{
		APIKey:  secrets.OpenAIAPIKey,
		Model:   cfg.Embeddings.Model,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return err
	}

	wiki := evidence.NewWikipedia(evidence.WikipediaConfig{Language: cfg.Evidence.Language})
	retriever, err := analysis.NewEvidenceRetriever(wiki, embedder, analysis.EvidenceRetrieverConfig{
		SimilarityThreshold: cfg.Evidence.SimilarityThreshold,
		MaxSearchResults:    cfg.Evidence.MaxSearchResults,
		SummarySentences:    cfg.Evidence.SummarySentences,
	})
	if err != nil {
		return err
	}

	classifier, err := sentiment.NewLLMClassifier(entries[0].Client, sentiment.DefaultLLMClassifierConfig())
	if err != nil {
		return err
	}
	scorer, err := analysis.NewSentimentScorer(classifier, analysis.SentimentScorerConfig{
		MaxChars: cfg.Sentiment.MaxChars,
	})
	if err != nil {
		return err
	}

	extractor, err := analysis.NewClaimExtractor(analysis.ClaimExtractorConfig{
		MinClaimWords:    cfg.Claims.MinClaimWords,
		MinFallbackWords: cfg.Claims.MinFallbackWords,
		DedupeSimilarity: cfg.Claims.DedupeSimilarity,
	})
	if err != nil {
		return err
	}

	evaluatorCfg := application.DefaultEvaluatorConfig()
	evaluatorCfg.Weights = cfg.Weights
	evaluatorCfg.ClaimFiltering = cfg.ClaimFiltering
	evaluator, err := application.NewEvaluator(embedder, retriever, scorer, extractor, metrics, evaluatorCfg)
	if err != nil {
		return err
	}

	history, err := storage.OpenHistoryStore(cfg.Server.HistoryPath)
	if err != nil {
		return err
	}
	defer history.Close()

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(fanout, evaluator, history, api.ServerConfig{Token: secrets.AggregatorToken}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s with %d providers", cfg.Server.Addr, len(entries))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Infof("shutting down")
	return server.Shutdown(shutdownCtx)
}

// buildProviders assembles one middleware-wrapped client per configured
// provider with an available credential. Providers without keys are
// skipped so a partially credentialed deployment still runs.
func buildProviders(cfg application.Config, secrets application.Secrets, metrics *middleware.PrometheusMetrics) ([]llm.FanOutEntry, error) {
	entries := make([]llm.FanOutEntry, 0, len(cfg.Providers))

	for _, p := range cfg.Providers {
		apiKey := secrets.APIKeyFor(p.Name)
		if apiKey == "" {
			continue
		}

		client, err := llm.NewClient(p.Name, llm.ClientConfig{
			APIKey: apiKey,
			Model:  p.Model,
			Middleware: []llm.Middleware{
				llm.RetryMiddleware(2, 200*time.Millisecond, 5*time.Second),
				llm.RateLimitMiddleware(rate.Limit(5), 10),
				llm.TimeoutMiddleware(60 * time.Second),
				llm.MetricsMiddleware(metrics),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}

		label := p.Label
		if label == "" {
			label = p.Name
		}
		entries = append(entries, llm.FanOutEntry{
			Label:       label,
			Client:      client,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
		})
	}
	return entries, nil
}
