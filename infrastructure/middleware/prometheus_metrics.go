// Package middleware provides cross-cutting concerns for the
// aggregation engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-quorum/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks evaluation throughput, provider request volume,
// token consumption, and latency.
type PrometheusMetrics struct {
	evaluationsTotal *prometheus.CounterVec
	llmRequests      *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	scoreHistogram   *prometheus.HistogramVec
	systemGauges     *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the aggregation metrics with the given
// registerer. Pass prometheus.DefaultRegisterer for the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		evaluationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_evaluations_total",
				Help: "Total number of completed evaluations.",
			},
			[]string{"winner_provider"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_llm_requests_total",
				Help: "Total number of LLM provider requests.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_llm_tokens_total",
				Help: "Total tokens consumed across LLM interactions.",
			},
			[]string{"provider", "model", "token_type"},
		),
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quorum_operation_duration_seconds",
				Help:    "Execution time of aggregation operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		scoreHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quorum_winner_score",
				Help:    "Distribution of winning candidates' final scores.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"winner_provider"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quorum_system_state",
				Help: "Current system state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records operation latency in the duration histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter routes counter metrics by name.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "evaluations_total":
		pm.evaluationsTotal.WithLabelValues(labels["winner_provider"]).Add(value)
	case "llm_requests_total":
		pm.llmRequests.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Add(value)
	case "llm_tokens_total":
		pm.llmTokens.WithLabelValues(labels["provider"], labels["model"], labels["token_type"]).Add(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets a system state gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram routes histogram metrics by name.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "winner_final_score":
		pm.scoreHistogram.WithLabelValues(labels["winner_provider"]).Observe(value)
	case "llm_latency_seconds":
		pm.operationLatency.WithLabelValues("llm_request").Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}
