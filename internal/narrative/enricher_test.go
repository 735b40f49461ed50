package narrative

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-eval/internal/config"
	"github.com/sells-group/proposal-eval/internal/cost"
	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
)

const compareJSON = `{"marketContext":"Two bids.","proposals":[{"proposalId":"p-a","priceAssessment":"Lowest."},{"proposalId":"p-b","priceAssessment":"Highest."}]}`

func TestEnrich_Compare(t *testing.T) {
	fp := &fakeProvider{text: compareJSON, usage: cost.Usage{InputTokens: 1000000, OutputTokens: 100000}}
	costs := cost.NewCalculator(config.PricingConfig{Models: []config.ModelPricing{{Model: "fake-model", Input: 1, Output: 10}}})
	e, err := NewEnricher(fp, time.Second, costs)
	require.NoError(t, err)

	b := testBatch(2)
	out, err := e.Enrich(context.Background(), b, testScores(b))
	require.NoError(t, err)

	assert.Equal(t, model.ModeCompare, out.Result.Mode())
	assert.Equal(t, "Two bids.", out.Result.Market())
	assert.Equal(t, "fake", out.Metadata.ProviderName)
	assert.Equal(t, "fake-model", out.Metadata.ModelID)
	assert.Equal(t, 0.2, out.Metadata.Temperature)
	assert.Equal(t, int64(1000000), out.Metadata.InputTokens)
	assert.InDelta(t, 2.0, out.Metadata.EstimatedCostUSD, 1e-9)
	assert.GreaterOrEqual(t, out.Metadata.LatencyMs, int64(0))

	assert.Equal(t, 1, fp.Calls())
	assert.Contains(t, fp.system, "relative to the other proposals")
	assert.Contains(t, fp.payload, `"lockedScores"`)
}

func TestEnrich_SingleUsesSingleTemplate(t *testing.T) {
	fp := &fakeProvider{text: `{"proposals":[{"proposalId":"p-a"}]}`}
	e, err := NewEnricher(fp, time.Second, nil)
	require.NoError(t, err)

	b := testBatch(1)
	out, err := e.Enrich(context.Background(), b, testScores(b))
	require.NoError(t, err)
	assert.Equal(t, model.ModeSingle, out.Result.Mode())
	assert.Contains(t, fp.system, "Do not comment on price")
	assert.Zero(t, out.Metadata.EstimatedCostUSD)
}

func TestEnrich_Timeout(t *testing.T) {
	fp := &fakeProvider{block: true}
	e, err := NewEnricher(fp, 20*time.Millisecond, nil)
	require.NoError(t, err)

	b := testBatch(2)
	start := time.Now()
	_, err = e.Enrich(context.Background(), b, testScores(b))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.True(t, evalerr.Is(err, evalerr.KindProviderTimeout))
	assert.Equal(t, evalerr.CodeTimeout, evalerr.CodeOf(err))
	assert.True(t, evalerr.Retryable(err))
}

func TestEnrich_SlowProviderIgnoringContext(t *testing.T) {
	fp := &fakeProvider{text: compareJSON, delay: 300 * time.Millisecond}
	e, err := NewEnricher(fp, 20*time.Millisecond, nil)
	require.NoError(t, err)

	b := testBatch(2)
	start := time.Now()
	_, err = e.Enrich(context.Background(), b, testScores(b))
	assert.True(t, evalerr.Is(err, evalerr.KindProviderTimeout))
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestEnrich_ParentCanceled(t *testing.T) {
	fp := &fakeProvider{block: true}
	e, err := NewEnricher(fp, time.Minute, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	b := testBatch(2)
	_, err = e.Enrich(ctx, b, testScores(b))
	require.Error(t, err)
	assert.True(t, evalerr.Is(err, evalerr.KindCanceled))
	assert.Equal(t, evalerr.CodeCanceled, evalerr.CodeOf(err))
}

func TestEnrich_ProviderError(t *testing.T) {
	fp := &fakeProvider{err: evalerr.ProviderHTTP(assert.AnError, http.StatusBadGateway, true, "fake")}
	e, err := NewEnricher(fp, time.Second, nil)
	require.NoError(t, err)

	b := testBatch(2)
	_, err = e.Enrich(context.Background(), b, testScores(b))
	e2, ok := evalerr.As(err)
	require.True(t, ok)
	assert.Equal(t, evalerr.KindProviderHTTP, e2.Kind)
	assert.Equal(t, http.StatusBadGateway, e2.StatusCode)
}

func TestEnrich_UnclassifiedProviderError(t *testing.T) {
	fp := &fakeProvider{err: assert.AnError}
	e, err := NewEnricher(fp, time.Second, nil)
	require.NoError(t, err)

	b := testBatch(1)
	_, err = e.Enrich(context.Background(), b, testScores(b))
	assert.True(t, evalerr.Is(err, evalerr.KindProviderHTTP))
	assert.False(t, evalerr.Retryable(err))
}

func TestEnrich_Malformed(t *testing.T) {
	fp := &fakeProvider{text: `{"proposals":[{"proposalId":"p-a"}]}`}
	e, err := NewEnricher(fp, time.Second, nil)
	require.NoError(t, err)

	b := testBatch(2)
	_, err = e.Enrich(context.Background(), b, testScores(b))
	assert.True(t, evalerr.Is(err, evalerr.KindMalformedProviderOutput))
}

func TestNewEnricher_DefaultTimeout(t *testing.T) {
	e, err := NewEnricher(&fakeProvider{}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, e.timeout)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
