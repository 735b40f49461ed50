package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-eval/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func strPtr(s string) *string { return &s }

var proposalColumns = []string{
	"id", "project_id", "invite_id", "advisor_id", "price", "timeline_days",
	"scope_text", "terms_text", "fee_line_items", "selected_services", "milestone_adjustments",
	"status", "submitted_at", "version", "document_path", "document_url",
	"a_id", "a_name", "a_type", "i_id", "i_rfp", "i_advisor", "i_status",
}

func TestPostgresStore_GetProject(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, declared_type, budget, large_scale FROM projects WHERE id = \$1`).
		WithArgs("proj-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "declared_type", "budget", "large_scale"}).
			AddRow("proj-1", "Audit", "audit", 250000.0, false))

	p, err := s.GetProject(context.Background(), "proj-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Audit", p.Name)
	assert.InDelta(t, 250000.0, p.Budget, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProject_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM projects WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	p, err := s.GetProject(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProject_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM projects`).
		WithArgs("proj-1").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetProject(context.Background(), "proj-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: get project proj-1")
}

func TestPostgresStore_ListProposals(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows(proposalColumns).
		AddRow("p1", "proj-1", "inv-1", "adv-1", 1000.0, 30,
			"scope", "terms", []byte(`[{"itemId":"f1","description":"Audit fee","amount":1000}]`),
			[]byte(`[{"serviceId":"s1"}]`), []byte(`[]`),
			"submitted", submitted, 2, "", "",
			strPtr("adv-1"), strPtr("Acme LLP"), strPtr("auditor"),
			strPtr("inv-1"), strPtr("rfp-1"), strPtr("adv-1"), strPtr("accepted")).
		AddRow("p2", "proj-1", "inv-2", "adv-2", 0.0, 0,
			"", "", []byte(`[]`), []byte(`[]`), []byte(`[]`),
			"submitted", submitted, 1, "", "",
			nil, nil, nil, nil, nil, nil, nil)

	mock.ExpectQuery(`(?s)FROM proposals p\s+LEFT JOIN advisors a .* AND p.id = ANY\(\$2\) ORDER BY p.id`).
		WithArgs("proj-1", []string{"p1", "p2"}).
		WillReturnRows(rows)

	recs, err := s.ListProposals(context.Background(), "proj-1", []string{"p1", "p2"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, model.ProposalStatusSubmitted, first.Proposal.Status)
	require.Len(t, first.Proposal.FeeLineItems, 1)
	assert.Equal(t, "f1", first.Proposal.FeeLineItems[0].ItemID)
	require.Len(t, first.Proposal.SelectedServices, 1)
	require.NotNil(t, first.Advisor)
	assert.Equal(t, "Acme LLP", first.Advisor.Name)
	require.NotNil(t, first.Invite)
	assert.Equal(t, "rfp-1", first.Invite.RFPID)
	assert.Equal(t, model.InviteStatusAccepted, first.Invite.Status)

	assert.Nil(t, recs[1].Advisor)
	assert.Nil(t, recs[1].Invite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProposals_AllForProject(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE p.project_id = \$1 ORDER BY p.id`).
		WithArgs("proj-1").
		WillReturnRows(pgxmock.NewRows(proposalColumns))

	recs, err := s.ListProposals(context.Background(), "proj-1", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRequirementSet(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT rfp_id, fee_items, scope_items FROM requirement_sets`).
		WithArgs("rfp-1").
		WillReturnRows(pgxmock.NewRows([]string{"rfp_id", "fee_items", "scope_items"}).
			AddRow("rfp-1",
				[]byte(`[{"id":"f1","description":"Audit fee","mandatory":true}]`),
				[]byte(`[{"id":"s1","description":"Tax review","mandatory":false}]`)))

	rs, err := s.GetRequirementSet(context.Background(), "rfp-1")
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Equal(t, 1, rs.MandatoryCount())
	assert.Len(t, rs.ScopeItems, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRequirementSet_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM requirement_sets`).
		WithArgs("rfp-x").
		WillReturnError(pgx.ErrNoRows)

	rs, err := s.GetRequirementSet(context.Background(), "rfp-x")
	require.NoError(t, err)
	assert.Nil(t, rs)
}

func TestPostgresStore_ListResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	done := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM evaluation_results WHERE project_id = \$1 AND batch_key = \$2`).
		WithArgs("proj-1", "key").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "project_id", "proposal_id", "batch_key", "mode", "result", "summary",
			"final_score", "rank", "status", "completed_at", "provider",
		}).AddRow("r1", "proj-1", "p1", "key", "SINGLE",
			[]byte(`{"proposalId":"p1","finalScore":100,"rank":1}`),
			[]byte(`{"totalProposals":1,"evaluationMode":"SINGLE"}`),
			100, 1, "completed", &done,
			[]byte(`{"providerName":"anthropic","modelId":"m","temperature":0.2,"latencyMs":12}`)))

	results, err := s.ListResults(context.Background(), "proj-1", "key")
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, model.ModeSingle, r.Mode)
	assert.Equal(t, model.ResultStatusCompleted, r.Status)
	assert.Equal(t, 100, r.Result.FinalScore)
	assert.Equal(t, 1, r.Summary.TotalProposals)
	assert.Equal(t, "anthropic", r.Provider.ProviderName)
	require.NotNil(t, r.CompletedAt)
	assert.True(t, done.Equal(*r.CompletedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "staging_evaluation_results"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staging_evaluation_results"}, resultColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "evaluation_results" .* ON CONFLICT \("proposal_id", "batch_key"\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	results := []model.StoredResult{
		{ProjectID: "proj-1", ProposalID: "p1", BatchKey: "key", Mode: model.ModeCompare, Rank: 1, Status: model.ResultStatusCompleted},
		{ProjectID: "proj-1", ProposalID: "p2", BatchKey: "key", Mode: model.ModeCompare, Rank: 2, Status: model.ResultStatusCompleted},
	}
	require.NoError(t, s.SaveResults(context.Background(), results))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_FailureWritesNothing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"staging_evaluation_results"}, resultColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "evaluation_results"`).WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := s.SaveResults(context.Background(), []model.StoredResult{{ProposalID: "p1", BatchKey: "key"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: save results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_Seed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "projects"`).WithArgs(anyArgs(5)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "advisors"`).WithArgs(anyArgs(3)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "invites"`).WithArgs(anyArgs(4)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "requirement_sets"`).WithArgs(anyArgs(3)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO "proposals"`).WithArgs(anyArgs(16)...).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.Seed(context.Background(), model.Dataset{
		Projects:        []model.Project{{ID: "proj-1"}},
		Advisors:        []model.Advisor{{ID: "adv-1"}},
		Invites:         []model.Invite{{ID: "inv-1", RFPID: "rfp-1", AdvisorID: "adv-1"}},
		RequirementSets: []model.RequirementSet{{RFPID: "rfp-1"}},
		Proposals:       []model.Proposal{{ID: "p1", ProjectID: "proj-1"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS evaluation_results`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
