// Package observability holds the Prometheus instrumentation for the
// chat pipeline and its two external dependencies.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for
// the dashboard.
type Metrics struct {
	ChatTurns       *prometheus.CounterVec // labels: stage
	StageQueryErrs  prometheus.Counter
	StageQueryTime  *prometheus.HistogramVec // labels: stage
	LLMRequests     *prometheus.CounterVec   // labels: outcome={success,error}
	LLMRequestTime  prometheus.Histogram
	PromptTokens    prometheus.Histogram
	SessionsCreated prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ChatTurns,
		m.StageQueryErrs,
		m.StageQueryTime,
		m.LLMRequests,
		m.LLMRequestTime,
		m.PromptTokens,
		m.SessionsCreated,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to
// avoid "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ChatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_insight",
			Name:      "chat_turns_total",
			Help:      "Chat turns handled, by tutorial stage at entry.",
		}, []string{"stage"}),
		StageQueryErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_insight",
			Name:      "stage_query_errors_total",
			Help:      "Aggregation queries that failed and degraded to canned text.",
		}),
		StageQueryTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outage_insight",
			Name:      "stage_query_duration_seconds",
			Help:      "Duration of the aggregation query behind a data-bearing stage.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"stage"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_insight",
			Name:      "llm_requests_total",
			Help:      "Narration completion requests by outcome.",
		}, []string{"outcome"}),
		LLMRequestTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outage_insight",
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of narration completion requests.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PromptTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outage_insight",
			Name:      "narration_prompt_tokens",
			Help:      "Estimated token count of narration prompts.",
			Buckets:   []float64{64, 128, 256, 512, 1024, 2048, 4096},
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_insight",
			Name:      "sessions_created_total",
			Help:      "Tutorial sessions created.",
		}),
	}
}
