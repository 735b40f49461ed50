// Package monitoring exposes evaluation metrics in Prometheus format.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
)

const namespace = "proposal_eval"

// Outcome label for successful evaluations.
const OutcomeOK = "OK"

// Metrics holds the evaluation counters and histograms on a private
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	evaluations     *prometheus.CounterVec
	cacheHits       prometheus.Counter
	providerLatency *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	providerCost    *prometheus.CounterVec
	providerTokens  *prometheus.CounterVec
}

// NewMetrics creates and registers the evaluation metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluation runs by mode and outcome code.",
		}, []string{"mode", "outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Evaluation runs answered from persisted results.",
		}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Latency of successful narrative provider calls.",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"provider"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Failed narrative provider calls by error kind.",
		}, []string{"provider", "kind"}),
		providerCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cost_usd_total",
			Help:      "Estimated provider spend in USD.",
		}, []string{"provider"}),
		providerTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_total",
			Help:      "Provider tokens by direction.",
		}, []string{"provider", "direction"}),
	}
	m.registry.MustRegister(
		m.evaluations,
		m.cacheHits,
		m.providerLatency,
		m.providerErrors,
		m.providerCost,
		m.providerTokens,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvaluation counts one finished run. err is nil on success.
func (m *Metrics) ObserveEvaluation(mode model.EvaluationMode, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = evalerr.CodeOf(err)
	}
	if mode == "" {
		mode = "UNKNOWN"
	}
	m.evaluations.WithLabelValues(string(mode), outcome).Inc()
}

// CacheHit counts a run answered from persisted results.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// ObserveProvider records a successful provider call.
func (m *Metrics) ObserveProvider(meta model.ProviderMetadata) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(meta.ProviderName).Observe(float64(meta.LatencyMs) / 1000)
	m.providerCost.WithLabelValues(meta.ProviderName).Add(meta.EstimatedCostUSD)
	m.providerTokens.WithLabelValues(meta.ProviderName, "input").Add(float64(meta.InputTokens))
	m.providerTokens.WithLabelValues(meta.ProviderName, "output").Add(float64(meta.OutputTokens))
}

// ProviderError counts a failed provider call.
func (m *Metrics) ProviderError(provider string, err error) {
	if m == nil || err == nil {
		return
	}
	kind := string(evalerr.KindOf(err))
	if kind == "" {
		kind = "Unclassified"
	}
	m.providerErrors.WithLabelValues(provider, kind).Inc()
}
