package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/model"
	"github.com/sells-group/proposal-eval/internal/store"
)

var t0 = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func baseDataset() model.Dataset {
	return model.Dataset{
		Projects: []model.Project{{ID: "proj-1", Name: "Audit"}},
		Advisors: []model.Advisor{
			{ID: "adv-1", Name: "Acme", Type: "auditor"},
			{ID: "adv-2", Name: "Birch", Type: "auditor"},
			{ID: "adv-3", Name: "Cedar", Type: "lawyer"},
		},
		Invites: []model.Invite{
			{ID: "inv-1", RFPID: "rfp-1", AdvisorID: "adv-1", Status: model.InviteStatusAccepted},
			{ID: "inv-2", RFPID: "rfp-1", AdvisorID: "adv-2", Status: model.InviteStatusAccepted},
			{ID: "inv-3", RFPID: "rfp-2", AdvisorID: "adv-2", Status: model.InviteStatusAccepted},
			{ID: "inv-4", RFPID: "rfp-1", AdvisorID: "adv-3", Status: model.InviteStatusAccepted},
			{ID: "inv-5", RFPID: "rfp-1", AdvisorID: "adv-1", Status: model.InviteStatusDeclined},
		},
		RequirementSets: []model.RequirementSet{
			{RFPID: "rfp-1", FeeItems: []model.FeeItem{{ID: "f1", Description: "Fee", Mandatory: true}}},
		},
	}
}

func proposal(id, invite, advisor string, version int, at time.Time, status model.ProposalStatus) model.Proposal {
	return model.Proposal{
		ID: id, ProjectID: "proj-1", InviteID: invite, AdvisorID: advisor,
		Version: version, SubmittedAt: at, Status: status,
	}
}

func newAggregator(t *testing.T, proposals ...model.Proposal) *Aggregator {
	t.Helper()
	ds := baseDataset()
	ds.Proposals = proposals
	st := store.NewMemory()
	require.NoError(t, st.Seed(context.Background(), ds))
	return New(st)
}

func TestFetch_Single(t *testing.T) {
	a := newAggregator(t, proposal("p1", "inv-1", "adv-1", 1, t0, model.ProposalStatusSubmitted))

	batch, err := a.Fetch(context.Background(), "proj-1", nil)
	require.NoError(t, err)
	require.Len(t, batch.Inputs, 1)
	assert.Equal(t, model.ModeSingle, batch.Mode())
	assert.Equal(t, "rfp-1", batch.Requirements.RFPID)
	assert.Equal(t, "Acme", batch.Inputs[0].Advisor.Name)
}

func TestFetch_ProjectNotFound(t *testing.T) {
	a := newAggregator(t)

	_, err := a.Fetch(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, evalerr.Is(err, evalerr.KindNotFound))
}

func TestFetch_NoEligibleInputs(t *testing.T) {
	a := newAggregator(t,
		proposal("p1", "inv-1", "adv-1", 1, t0, model.ProposalStatusWithdrawn),
		proposal("p2", "inv-2", "adv-2", 1, t0, model.ProposalStatusDraft),
		proposal("p3", "inv-5", "adv-1", 1, t0, model.ProposalStatusSubmitted),
		proposal("p4", "inv-missing", "adv-1", 1, t0, model.ProposalStatusSubmitted),
		proposal("p5", "inv-1", "adv-missing", 1, t0, model.ProposalStatusSubmitted),
	)

	_, err := a.Fetch(context.Background(), "proj-1", nil)
	require.Error(t, err)
	assert.True(t, evalerr.Is(err, evalerr.KindNoEligibleInputs))
	assert.Equal(t, evalerr.CodeValidation, evalerr.CodeOf(err))
}

func TestFetch_DeduplicatesByInvite(t *testing.T) {
	a := newAggregator(t,
		proposal("p1", "inv-1", "adv-1", 1, t0, model.ProposalStatusSubmitted),
		proposal("p2", "inv-1", "adv-1", 2, t0, model.ProposalStatusResubmitted),
		proposal("p3", "inv-2", "adv-2", 1, t0, model.ProposalStatusSubmitted),
	)

	batch, err := a.Fetch(context.Background(), "proj-1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, batch.ProposalIDs())
	assert.Equal(t, model.ModeCompare, batch.Mode())
}

func TestFetch_ScopeMismatchDifferentRFP(t *testing.T) {
	a := newAggregator(t,
		proposal("p1", "inv-1", "adv-1", 1, t0, model.ProposalStatusSubmitted),
		proposal("p2", "inv-3", "adv-2", 1, t0, model.ProposalStatusSubmitted),
	)

	_, err := a.Fetch(context.Background(), "proj-1", nil)
	require.Error(t, err)
	assert.True(t, evalerr.Is(err, evalerr.KindScopeMismatch))
}

func TestFetch_ScopeMismatchAdvisorType(t *testing.T) {
	a := newAggregator(t,
		proposal("p1", "inv-1", "adv-1", 1, t0, model.ProposalStatusSubmitted),
		proposal("p2", "inv-4", "adv-3", 1, t0, model.ProposalStatusSubmitted),
	)

	_, err := a.Fetch(context.Background(), "proj-1", nil)
	require.Error(t, err)
	assert.True(t, evalerr.Is(err, evalerr.KindScopeMismatch))
}

func TestFetch_SelectedProposalsOnly(t *testing.T) {
	a := newAggregator(t,
		proposal("p1", "inv-1", "adv-1", 1, t0, model.ProposalStatusSubmitted),
		proposal("p2", "inv-3", "adv-2", 1, t0, model.ProposalStatusSubmitted),
	)

	batch, err := a.Fetch(context.Background(), "proj-1", []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, batch.ProposalIDs())
}

func TestFetch_RequirementSetMissing(t *testing.T) {
	a := newAggregator(t, proposal("p2", "inv-3", "adv-2", 1, t0, model.ProposalStatusSubmitted))

	_, err := a.Fetch(context.Background(), "proj-1", nil)
	require.Error(t, err)
	assert.True(t, evalerr.Is(err, evalerr.KindNotFound))
	assert.Contains(t, err.Error(), "rfp-2")
}

type failingReader struct{ err error }

func (f failingReader) GetProject(context.Context, string) (*model.Project, error) {
	return &model.Project{ID: "proj-1"}, nil
}

func (f failingReader) ListProposals(context.Context, string, []string) ([]model.ProposalRecord, error) {
	return nil, f.err
}

func (f failingReader) GetRequirementSet(context.Context, string) (*model.RequirementSet, error) {
	return nil, nil
}

func TestFetch_StoreErrorIsPersistence(t *testing.T) {
	a := New(failingReader{err: errors.New("connection refused")})

	_, err := a.Fetch(context.Background(), "proj-1", nil)
	require.Error(t, err)
	assert.True(t, evalerr.Is(err, evalerr.KindPersistence))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDeduplicate_Ordering(t *testing.T) {
	mk := func(id string, version int, at time.Time) model.EvaluationInput {
		return model.EvaluationInput{
			Proposal: model.Proposal{ID: id, Version: version, SubmittedAt: at},
			Invite:   model.Invite{ID: "inv-1"},
		}
	}

	tests := []struct {
		name   string
		inputs []model.EvaluationInput
		want   string
	}{
		{"highest version wins", []model.EvaluationInput{mk("a", 1, t0.Add(time.Hour)), mk("b", 3, t0)}, "b"},
		{"latest submission breaks version tie", []model.EvaluationInput{mk("a", 2, t0), mk("b", 2, t0.Add(time.Minute))}, "b"},
		{"smallest id breaks full tie", []model.EvaluationInput{mk("z", 2, t0), mk("m", 2, t0)}, "m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Deduplicate(tt.inputs)
			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].Proposal.ID)

			reversed := []model.EvaluationInput{tt.inputs[1], tt.inputs[0]}
			out = Deduplicate(reversed)
			assert.Equal(t, tt.want, out[0].Proposal.ID)
		})
	}
}

func TestValidateBatch_SingleAlwaysValid(t *testing.T) {
	assert.NoError(t, ValidateBatch(nil))
	assert.NoError(t, ValidateBatch([]model.EvaluationInput{{}}))
}
