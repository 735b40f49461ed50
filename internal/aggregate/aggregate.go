// Package aggregate loads the records of one evaluation request and reduces
// them to a validated batch of evaluation inputs.
package aggregate

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
)

// Reader is the read side of the store the aggregator needs.
type Reader interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListProposals(ctx context.Context, projectID string, proposalIDs []string) ([]model.ProposalRecord, error)
	GetRequirementSet(ctx context.Context, rfpID string) (*model.RequirementSet, error)
}

// Aggregator builds evaluation batches from store records.
type Aggregator struct {
	reader Reader
}

// New creates an Aggregator over the given reader.
func New(r Reader) *Aggregator {
	return &Aggregator{reader: r}
}

// Fetch loads the project and its proposals, drops ineligible inputs,
// collapses resubmissions per invite and validates the surviving batch.
// An empty proposalIDs targets every proposal of the project.
func (a *Aggregator) Fetch(ctx context.Context, projectID string, proposalIDs []string) (*model.Batch, error) {
	var (
		project *model.Project
		records []model.ProposalRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := a.reader.GetProject(gctx, projectID)
		if err != nil {
			return evalerr.Wrap(err, evalerr.KindPersistence, "load project %s", projectID)
		}
		project = p
		return nil
	})
	g.Go(func() error {
		recs, err := a.reader.ListProposals(gctx, projectID, proposalIDs)
		if err != nil {
			return evalerr.Wrap(err, evalerr.KindPersistence, "load proposals of project %s", projectID)
		}
		records = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, evalerr.Wrap(ctx.Err(), evalerr.KindCanceled, "aggregate canceled")
		}
		return nil, err
	}

	if project == nil {
		return nil, evalerr.New(evalerr.KindNotFound, "project %s not found", projectID)
	}

	inputs := Filter(records)
	if len(inputs) == 0 {
		return nil, evalerr.New(evalerr.KindNoEligibleInputs,
			"project %s has no eligible proposals (%d loaded)", projectID, len(records))
	}

	inputs = Deduplicate(inputs)
	if err := ValidateBatch(inputs); err != nil {
		return nil, err
	}

	rfpID := inputs[0].Invite.RFPID
	reqs, err := a.reader.GetRequirementSet(ctx, rfpID)
	if err != nil {
		return nil, evalerr.Wrap(err, evalerr.KindPersistence, "load requirement set %s", rfpID)
	}
	if reqs == nil {
		return nil, evalerr.New(evalerr.KindNotFound, "requirement set for rfp %s not found", rfpID)
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Proposal.ID < inputs[j].Proposal.ID })

	zap.L().Debug("aggregate: batch ready",
		zap.String("project_id", projectID),
		zap.Int("loaded", len(records)),
		zap.Int("inputs", len(inputs)),
		zap.String("rfp_id", rfpID),
	)

	return &model.Batch{Project: *project, Inputs: inputs, Requirements: *reqs}, nil
}

// Filter keeps records that have advisor and invite linkage, an open invite
// and an evaluable proposal status.
func Filter(records []model.ProposalRecord) []model.EvaluationInput {
	inputs := make([]model.EvaluationInput, 0, len(records))
	for _, rec := range records {
		reason := ""
		switch {
		case rec.Advisor == nil:
			reason = "missing advisor"
		case rec.Invite == nil:
			reason = "missing invite"
		case rec.Invite.Status.Closed():
			reason = "invite " + string(rec.Invite.Status)
		case !rec.Proposal.Status.Evaluable():
			reason = "status " + string(rec.Proposal.Status)
		}
		if reason != "" {
			zap.L().Debug("aggregate: dropped proposal",
				zap.String("proposal_id", rec.Proposal.ID),
				zap.String("reason", reason),
			)
			continue
		}
		inputs = append(inputs, model.EvaluationInput{
			Proposal: rec.Proposal,
			Advisor:  *rec.Advisor,
			Invite:   *rec.Invite,
		})
	}
	return inputs
}
