// Package store persists procurement records and evaluation results.
package store

import (
	"context"
	"sort"

	"github.com/sells-group/proposal-eval/internal/model"
)

// Store defines the persistence interface for proposal evaluation.
//
// Lookups return (nil, nil) when the record does not exist; callers decide
// whether absence is an error.
type Store interface {
	// Records
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	ListProposals(ctx context.Context, projectID string, proposalIDs []string) ([]model.ProposalRecord, error)
	GetRequirementSet(ctx context.Context, rfpID string) (*model.RequirementSet, error)
	Seed(ctx context.Context, ds model.Dataset) error

	// Results
	ListResults(ctx context.Context, projectID, batchKey string) ([]model.StoredResult, error)
	SaveResults(ctx context.Context, results []model.StoredResult) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// sortResults orders results by rank, then proposal id.
func sortResults(results []model.StoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Rank != results[j].Rank {
			return results[i].Rank < results[j].Rank
		}
		return results[i].ProposalID < results[j].ProposalID
	})
}

// idFilter returns a set for membership checks; nil means "all".
func idFilter(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
