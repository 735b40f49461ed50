package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-eval/internal/cost"
	"github.com/sells-group/proposal-eval/internal/evaluation"
	"github.com/sells-group/proposal-eval/internal/extract"
	"github.com/sells-group/proposal-eval/internal/monitoring"
	"github.com/sells-group/proposal-eval/internal/narrative"
	"github.com/sells-group/proposal-eval/internal/provider"
	"github.com/sells-group/proposal-eval/internal/store"
)

// evalEnv holds the initialized dependencies of an evaluation command.
type evalEnv struct {
	Store     store.Store
	Evaluator *evaluation.Evaluator
	Metrics   *monitoring.Metrics
}

// Close releases the store.
func (e *evalEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// initEvaluator builds the store, provider and evaluator from cfg. mode is
// passed to config validation.
func initEvaluator(ctx context.Context, mode string) (*evalEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	p, err := provider.New(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	timeout := time.Duration(cfg.Provider.TimeoutSecs) * time.Second
	enricher, err := narrative.NewEnricher(p, timeout, cost.NewCalculator(cfg.Pricing))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ex, err := extract.NewExtractor(cfg.Extraction)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	ev := evaluation.New(st, enricher, ex, metrics, evaluation.Options{
		LargeScaleBudget: cfg.Scoring.LargeScaleBudget,
		ExtractTimeout:   time.Duration(cfg.Extraction.TimeoutSecs) * time.Second,
	})

	zap.L().Info("evaluator ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("provider", p.Name()),
		zap.String("model", p.Model()),
		zap.String("extraction", cfg.Extraction.Provider),
	)

	return &evalEnv{Store: st, Evaluator: ev, Metrics: metrics}, nil
}
