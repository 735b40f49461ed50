// Package evaluation runs one evaluation request end to end: aggregate the
// batch, answer from stored results when possible, otherwise score, enrich,
// merge and persist.
package evaluation

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/proposal-eval/internal/aggregate"
	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/extract"
	"github.com/sells-group/proposal-eval/internal/merge"
	"github.com/sells-group/proposal-eval/internal/model"
	"github.com/sells-group/proposal-eval/internal/monitoring"
	"github.com/sells-group/proposal-eval/internal/narrative"
	"github.com/sells-group/proposal-eval/internal/scorer"
)

// Store is the persistence the evaluator needs.
type Store interface {
	aggregate.Reader
	ListResults(ctx context.Context, projectID, batchKey string) ([]model.StoredResult, error)
	SaveResults(ctx context.Context, results []model.StoredResult) error
}

// Narrator produces the validated narrative for a scored batch.
type Narrator interface {
	Enrich(ctx context.Context, batch model.Batch, scores []model.DeterministicScore) (*narrative.Enrichment, error)
	ProviderName() string
}

// Options tunes an Evaluator.
type Options struct {
	// LargeScaleBudget is the budget at which a project is reported as
	// LARGE_SCALE. Zero disables the budget check.
	LargeScaleBudget float64

	// ExtractTimeout bounds text extraction per proposal.
	ExtractTimeout time.Duration

	// Now stamps completed rows. Defaults to time.Now.
	Now func() time.Time
}

// Evaluator orchestrates evaluation runs. It holds no mutable state and is
// safe for concurrent use.
type Evaluator struct {
	store     Store
	agg       *aggregate.Aggregator
	narrator  Narrator
	extractor extract.Extractor
	metrics   *monitoring.Metrics
	opts      Options
}

// New creates an Evaluator. extractor and metrics may be nil.
func New(st Store, narrator Narrator, extractor extract.Extractor, metrics *monitoring.Metrics, opts Options) *Evaluator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Evaluator{
		store:     st,
		agg:       aggregate.New(st),
		narrator:  narrator,
		extractor: extractor,
		metrics:   metrics,
		opts:      opts,
	}
}

// Evaluate evaluates the proposals named by req. A batch whose every
// proposal already has a completed result under the same batch key is
// answered from the store without calling the provider, unless
// req.ForceReevaluate is set. Nothing is written unless the whole run
// succeeds.
func (e *Evaluator) Evaluate(ctx context.Context, req model.EvaluationRequest) (resp *model.EvaluationResponse, err error) {
	start := time.Now()
	var mode model.EvaluationMode
	defer func() { e.metrics.ObserveEvaluation(mode, err) }()

	log := zap.L().With(zap.String("project_id", req.ProjectID))

	batch, err := e.agg.Fetch(ctx, req.ProjectID, req.ProposalIDs)
	if err != nil {
		log.Warn("evaluation: aggregate failed", zap.String("code", evalerr.CodeOf(err)), zap.Error(err))
		return nil, err
	}
	mode = batch.Mode()
	key := scorer.BatchKey(batch.ProposalIDs())
	log = log.With(zap.String("mode", string(mode)), zap.String("batch_key", key))

	if !req.ForceReevaluate {
		cached, err := e.cached(ctx, *batch, key)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			e.metrics.CacheHit()
			log.Info("evaluation: cache hit", zap.Int("proposals", len(cached.RankedProposals)))
			return cached, nil
		}
	}

	n, err := extract.Apply(ctx, e.extractor, batch.Inputs, e.opts.ExtractTimeout)
	if err != nil {
		return nil, evalerr.Wrap(err, evalerr.KindCanceled, "text extraction canceled")
	}
	if n > 0 {
		log.Debug("evaluation: extracted document text", zap.Int("proposals", n))
	}

	scores := scorer.Score(*batch)

	enrichment, err := e.narrator.Enrich(ctx, *batch, scores)
	if err != nil {
		e.metrics.ProviderError(e.narrator.ProviderName(), err)
		log.Warn("evaluation: narrative failed", zap.String("code", evalerr.CodeOf(err)), zap.Error(err))
		return nil, err
	}
	e.metrics.ObserveProvider(enrichment.Metadata)

	ranked := merge.Merge(scores, enrichment.Result, vendors(*batch))
	summary := model.BatchSummary{
		TotalProposals:      len(ranked),
		EvaluationMode:      mode,
		ProjectTypeDetected: batch.Project.DetectType(e.opts.LargeScaleBudget),
		MarketContext:       enrichment.Result.Market(),
	}
	if mode == model.ModeCompare {
		summary.PriceBenchmarkUsed = scorer.PriceBenchmark(batch.Inputs)
	}

	if err := e.save(ctx, req.ProjectID, key, summary, ranked, enrichment.Metadata); err != nil {
		log.Error("evaluation: persist failed", zap.Error(err))
		return nil, err
	}

	log.Info("evaluation: completed",
		zap.Int("proposals", len(ranked)),
		zap.String("provider", enrichment.Metadata.ProviderName),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return &model.EvaluationResponse{BatchSummary: summary, RankedProposals: ranked}, nil
}

// cached returns the stored response for the batch, or nil when any
// proposal lacks a completed row under key.
func (e *Evaluator) cached(ctx context.Context, batch model.Batch, key string) (*model.EvaluationResponse, error) {
	rows, err := e.store.ListResults(ctx, batch.Project.ID, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, evalerr.Wrap(ctx.Err(), evalerr.KindCanceled, "cache lookup canceled")
		}
		return nil, evalerr.Wrap(err, evalerr.KindPersistence, "load results for batch %s", key)
	}

	byID := make(map[string]model.StoredResult, len(rows))
	for _, r := range rows {
		if r.Status == model.ResultStatusCompleted {
			byID[r.ProposalID] = r
		}
	}

	hits := make([]model.StoredResult, 0, len(batch.Inputs))
	for _, id := range batch.ProposalIDs() {
		r, ok := byID[id]
		if !ok {
			return nil, nil
		}
		hits = append(hits, r)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Rank != hits[j].Rank {
			return hits[i].Rank < hits[j].Rank
		}
		return hits[i].ProposalID < hits[j].ProposalID
	})

	resp := &model.EvaluationResponse{
		BatchSummary:    hits[0].Summary,
		RankedProposals: make([]model.RankedProposal, len(hits)),
	}
	for i, r := range hits {
		resp.RankedProposals[i] = r.Result
	}
	return resp, nil
}

func (e *Evaluator) save(ctx context.Context, projectID, key string, summary model.BatchSummary, ranked []model.RankedProposal, meta model.ProviderMetadata) error {
	now := e.opts.Now().UTC()
	rows := make([]model.StoredResult, len(ranked))
	for i, rp := range ranked {
		rows[i] = model.StoredResult{
			ProjectID:   projectID,
			ProposalID:  rp.ProposalID,
			BatchKey:    key,
			Mode:        summary.EvaluationMode,
			Result:      rp,
			Summary:     summary,
			FinalScore:  rp.FinalScore,
			Rank:        rp.Rank,
			Status:      model.ResultStatusCompleted,
			CompletedAt: &now,
			Provider:    meta,
		}
	}

	if err := e.store.SaveResults(ctx, rows); err != nil {
		if ctx.Err() != nil {
			return evalerr.Wrap(err, evalerr.KindCanceled, "persist canceled")
		}
		if _, ok := evalerr.As(err); ok {
			return err
		}
		return evalerr.Wrap(err, evalerr.KindPersistence, "save %d results", len(rows))
	}
	return nil
}

func vendors(batch model.Batch) map[string]string {
	m := make(map[string]string, len(batch.Inputs))
	for _, in := range batch.Inputs {
		m[in.Proposal.ID] = in.Advisor.Name
	}
	return m
}
