package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics()

	m.ObserveEvaluation(model.ModeCompare, nil)
	m.ObserveEvaluation(model.ModeSingle, evalerr.New(evalerr.KindProviderTimeout, "slow"))
	m.ObserveEvaluation("", evalerr.New(evalerr.KindNotFound, "missing"))
	m.CacheHit()
	m.ObserveProvider(model.ProviderMetadata{ProviderName: "anthropic", LatencyMs: 1500, InputTokens: 100, OutputTokens: 20, EstimatedCostUSD: 0.25})
	m.ProviderError("anthropic", evalerr.New(evalerr.KindMalformedProviderOutput, "bad"))
	m.ProviderError("anthropic", assert.AnError)
	m.ProviderError("anthropic", nil)

	body := scrape(t, m)
	assert.Contains(t, body, `proposal_eval_evaluations_total{mode="COMPARE",outcome="OK"} 1`)
	assert.Contains(t, body, `proposal_eval_evaluations_total{mode="SINGLE",outcome="TIMEOUT"} 1`)
	assert.Contains(t, body, `proposal_eval_evaluations_total{mode="UNKNOWN",outcome="NOT_FOUND"} 1`)
	assert.Contains(t, body, `proposal_eval_cache_hits_total 1`)
	assert.Contains(t, body, `proposal_eval_provider_latency_seconds_count{provider="anthropic"} 1`)
	assert.Contains(t, body, `proposal_eval_provider_cost_usd_total{provider="anthropic"} 0.25`)
	assert.Contains(t, body, `proposal_eval_provider_tokens_total{direction="input",provider="anthropic"} 100`)
	assert.Contains(t, body, `proposal_eval_provider_errors_total{kind="MalformedProviderOutput",provider="anthropic"} 1`)
	assert.Contains(t, body, `proposal_eval_provider_errors_total{kind="Unclassified",provider="anthropic"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvaluation(model.ModeSingle, nil)
		m.CacheHit()
		m.ObserveProvider(model.ProviderMetadata{})
		m.ProviderError("x", assert.AnError)
	})
}
