// Package narrative produces the generated explanation of a scored batch:
// it builds the whitelisted payload, sends it with the mode's instructions
// to the configured provider under a deadline, and validates the reply.
package narrative

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/proposal-eval/internal/cost"
	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
	"github.com/sells-group/proposal-eval/internal/provider"
)

// DefaultTimeout bounds one provider call when none is configured.
const DefaultTimeout = 120 * time.Second

const previewLen = 500

// Enrichment is a validated narrative and how it was produced.
type Enrichment struct {
	Result   Result
	Metadata model.ProviderMetadata
}

// Enricher generates narratives. It holds no per-call state and is safe
// for concurrent use.
type Enricher struct {
	provider  provider.Provider
	timeout   time.Duration
	costs     *cost.Calculator
	templates *Templates
}

// NewEnricher creates an Enricher. A non-positive timeout uses
// DefaultTimeout; costs may be nil.
func NewEnricher(p provider.Provider, timeout time.Duration, costs *cost.Calculator) (*Enricher, error) {
	t, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{provider: p, timeout: timeout, costs: costs, templates: t}, nil
}

// ProviderName returns the name of the provider narratives come from.
func (e *Enricher) ProviderName() string { return e.provider.Name() }

type outcome struct {
	completion *provider.Completion
	err        error
}

// Enrich asks the provider to explain scores and returns the validated
// narrative. The call is abandoned when the deadline passes or ctx ends.
func (e *Enricher) Enrich(ctx context.Context, batch model.Batch, scores []model.DeterministicScore) (*Enrichment, error) {
	mode := batch.Mode()
	log := zap.L().With(
		zap.String("project_id", batch.Project.ID),
		zap.String("mode", string(mode)),
		zap.String("provider", e.provider.Name()),
	)

	payload, err := BuildPayload(batch, scores)
	if err != nil {
		return nil, err
	}
	body, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	system := e.templates.For(mode)

	log.Debug("narrative: submitting",
		zap.Int("proposals", len(scores)),
		zap.String("payload_preview", truncate(body, previewLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		c, err := e.provider.Submit(callCtx, system, body)
		done <- outcome{completion: c, err: err}
	}()

	var out outcome
	select {
	case <-callCtx.Done():
		return nil, e.abandoned(ctx)
	case out = <-done:
	}
	latency := time.Since(start)

	if out.err != nil {
		return nil, e.classify(ctx, callCtx, out.err)
	}

	log.Debug("narrative: response",
		zap.Int64("latency_ms", latency.Milliseconds()),
		zap.String("response_preview", truncate(out.completion.Text, previewLen)),
	)

	result, err := Parse(mode, batch.ProposalIDs(), out.completion.Text)
	if err != nil {
		log.Warn("narrative: invalid response", zap.Error(err))
		return nil, err
	}

	meta := model.ProviderMetadata{
		ProviderName: e.provider.Name(),
		ModelID:      out.completion.Model,
		Temperature:  e.provider.Temperature(),
		LatencyMs:    latency.Milliseconds(),
		InputTokens:  out.completion.Usage.InputTokens,
		OutputTokens: out.completion.Usage.OutputTokens,
	}
	if meta.ModelID == "" {
		meta.ModelID = e.provider.Model()
	}
	if e.costs != nil {
		meta.EstimatedCostUSD = e.costs.Estimate(meta.ModelID, out.completion.Usage)
		if meta.EstimatedCostUSD == 0 && meta.ModelID != e.provider.Model() {
			meta.EstimatedCostUSD = e.costs.Estimate(e.provider.Model(), out.completion.Usage)
		}
	}

	return &Enrichment{Result: result, Metadata: meta}, nil
}

// abandoned reports why the call context ended before the provider answered.
func (e *Enricher) abandoned(parent context.Context) error {
	if parent.Err() != nil {
		return evalerr.Wrap(parent.Err(), evalerr.KindCanceled, "narrative generation canceled")
	}
	return evalerr.Wrap(context.DeadlineExceeded, evalerr.KindProviderTimeout,
		"%s did not answer within %s", e.provider.Name(), e.timeout)
}

func (e *Enricher) classify(parent, call context.Context, err error) error {
	switch {
	case parent.Err() != nil || (errors.Is(err, context.Canceled) && call.Err() == nil):
		return evalerr.Wrap(err, evalerr.KindCanceled, "narrative generation canceled")
	case call.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		return evalerr.Wrap(err, evalerr.KindProviderTimeout,
			"%s did not answer within %s", e.provider.Name(), e.timeout)
	}
	if _, ok := evalerr.As(err); ok {
		return err
	}
	return evalerr.ProviderHTTP(err, 0, false, e.provider.Name())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
