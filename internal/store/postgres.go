package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-eval/internal/db"
	"github.com/sells-group/proposal-eval/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

const (
	sqlGetProject = `SELECT id, name, declared_type, budget, large_scale FROM projects WHERE id = $1`

	sqlListProposals = `SELECT p.id, p.project_id, p.invite_id, p.advisor_id, p.price, p.timeline_days,
	p.scope_text, p.terms_text, p.fee_line_items, p.selected_services, p.milestone_adjustments,
	p.status, p.submitted_at, p.version, p.document_path, p.document_url,
	a.id, a.name, a.advisor_type, i.id, i.rfp_id, i.advisor_id, i.status
FROM proposals p
LEFT JOIN advisors a ON a.id = p.advisor_id
LEFT JOIN invites i ON i.id = p.invite_id
WHERE p.project_id = $1`

	sqlGetRequirementSet = `SELECT rfp_id, fee_items, scope_items FROM requirement_sets WHERE rfp_id = $1`

	sqlListResults = `SELECT id, project_id, proposal_id, batch_key, mode, result, summary,
	final_score, rank, status, completed_at, provider
FROM evaluation_results WHERE project_id = $1 AND batch_key = $2 ORDER BY rank, proposal_id`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_project":         sqlGetProject,
	"get_requirement_set": sqlGetRequirementSet,
	"list_results":        sqlListResults,
}

// resultColumns is the column order used when upserting evaluation rows.
var resultColumns = []string{
	"id", "project_id", "proposal_id", "batch_key", "mode", "result", "summary",
	"final_score", "rank", "status", "completed_at", "provider",
}

// A re-evaluation of the same batch keeps the original row id.
var resultsUpsert = db.Upsert{
	Table:   "evaluation_results",
	Columns: resultColumns,
	Key:     []string{"proposal_id", "batch_key"},
	Update:  resultColumns[4:],
}

var (
	projectsUpsert = db.Upsert{
		Table:   "projects",
		Columns: []string{"id", "name", "declared_type", "budget", "large_scale"},
		Key:     []string{"id"},
	}
	advisorsUpsert = db.Upsert{
		Table:   "advisors",
		Columns: []string{"id", "name", "advisor_type"},
		Key:     []string{"id"},
	}
	invitesUpsert = db.Upsert{
		Table:   "invites",
		Columns: []string{"id", "rfp_id", "advisor_id", "status"},
		Key:     []string{"id"},
	}
	requirementSetsUpsert = db.Upsert{
		Table:   "requirement_sets",
		Columns: []string{"rfp_id", "fee_items", "scope_items"},
		Key:     []string{"rfp_id"},
	}
	proposalsUpsert = db.Upsert{
		Table: "proposals",
		Columns: []string{
			"id", "project_id", "invite_id", "advisor_id", "price", "timeline_days",
			"scope_text", "terms_text", "fee_line_items", "selected_services", "milestone_adjustments",
			"status", "submitted_at", "version", "document_path", "document_url",
		},
		Key: []string{"id"},
	}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close is a no-op.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	declared_type TEXT NOT NULL DEFAULT '',
	budget        DOUBLE PRECISION NOT NULL DEFAULT 0,
	large_scale   BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS advisors (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	advisor_type TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS invites (
	id         TEXT PRIMARY KEY,
	rfp_id     TEXT NOT NULL,
	advisor_id TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending'
);

CREATE TABLE IF NOT EXISTS requirement_sets (
	rfp_id      TEXT PRIMARY KEY,
	fee_items   JSONB NOT NULL DEFAULT '[]',
	scope_items JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS proposals (
	id                    TEXT PRIMARY KEY,
	project_id            TEXT NOT NULL REFERENCES projects(id),
	invite_id             TEXT NOT NULL DEFAULT '',
	advisor_id            TEXT NOT NULL DEFAULT '',
	price                 DOUBLE PRECISION NOT NULL DEFAULT 0,
	timeline_days         INTEGER NOT NULL DEFAULT 0,
	scope_text            TEXT NOT NULL DEFAULT '',
	terms_text            TEXT NOT NULL DEFAULT '',
	fee_line_items        JSONB NOT NULL DEFAULT '[]',
	selected_services     JSONB NOT NULL DEFAULT '[]',
	milestone_adjustments JSONB NOT NULL DEFAULT '[]',
	status                TEXT NOT NULL DEFAULT 'draft',
	submitted_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	version               INTEGER NOT NULL DEFAULT 1,
	document_path         TEXT NOT NULL DEFAULT '',
	document_url          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS evaluation_results (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id   TEXT NOT NULL,
	proposal_id  TEXT NOT NULL,
	batch_key    TEXT NOT NULL,
	mode         TEXT NOT NULL,
	result       JSONB NOT NULL,
	summary      JSONB NOT NULL,
	final_score  INTEGER NOT NULL,
	rank         INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	completed_at TIMESTAMPTZ,
	provider     JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (proposal_id, batch_key)
);

CREATE INDEX IF NOT EXISTS idx_proposals_project_id ON proposals(project_id);
CREATE INDEX IF NOT EXISTS idx_evaluation_results_batch ON evaluation_results(project_id, batch_key);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	err := s.pool.QueryRow(ctx, sqlGetProject, projectID).
		Scan(&p.ID, &p.Name, &p.DeclaredType, &p.Budget, &p.LargeScale)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get project %s", projectID)
	}
	return &p, nil
}

func (s *PostgresStore) ListProposals(ctx context.Context, projectID string, proposalIDs []string) ([]model.ProposalRecord, error) {
	query := sqlListProposals
	args := []any{projectID}
	if len(proposalIDs) > 0 {
		query += " AND p.id = ANY($2)"
		args = append(args, proposalIDs)
	}
	query += " ORDER BY p.id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list proposals for project %s", projectID)
	}
	defer rows.Close()

	var records []model.ProposalRecord
	for rows.Next() {
		rec, err := scanProposalRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate proposals")
}

func (s *PostgresStore) GetRequirementSet(ctx context.Context, rfpID string) (*model.RequirementSet, error) {
	var (
		rs                 model.RequirementSet
		feeJSON, scopeJSON []byte
	)
	err := s.pool.QueryRow(ctx, sqlGetRequirementSet, rfpID).Scan(&rs.RFPID, &feeJSON, &scopeJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get requirement set %s", rfpID)
	}
	if err := unmarshalJSON(feeJSON, &rs.FeeItems); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal fee items")
	}
	if err := unmarshalJSON(scopeJSON, &rs.ScopeItems); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal scope items")
	}
	return &rs, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, projectID, batchKey string) ([]model.StoredResult, error) {
	rows, err := s.pool.Query(ctx, sqlListResults, projectID, batchKey)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.StoredResult
	for rows.Next() {
		var (
			r                                 model.StoredResult
			resultJSON, summaryJSON, provJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.ProposalID, &r.BatchKey, &r.Mode,
			&resultJSON, &summaryJSON, &r.FinalScore, &r.Rank, &r.Status, &r.CompletedAt, &provJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		if err := decodeResultBlobs(&r, resultJSON, summaryJSON, provJSON); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: iterate results")
}

// SaveResults upserts every row in one transaction.
func (s *PostgresStore) SaveResults(ctx context.Context, results []model.StoredResult) error {
	rows := make([][]any, 0, len(results))
	for i := range results {
		r := &results[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		resultJSON, summaryJSON, provJSON, err := encodeResultBlobs(*r)
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			r.ID, r.ProjectID, r.ProposalID, r.BatchKey, string(r.Mode), resultJSON, summaryJSON,
			r.FinalScore, r.Rank, string(r.Status), r.CompletedAt, provJSON,
		})
	}

	_, err := resultsUpsert.Bulk(ctx, s.pool, rows)
	return eris.Wrap(err, "postgres: save results")
}

// Seed upserts a dataset of records in one transaction.
func (s *PostgresStore) Seed(ctx context.Context, ds model.Dataset) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: seed: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, p := range ds.Projects {
		if err := projectsUpsert.Exec(ctx, tx, p.ID, p.Name, p.DeclaredType, p.Budget, p.LargeScale); err != nil {
			return eris.Wrapf(err, "postgres: seed project %s", p.ID)
		}
	}
	for _, a := range ds.Advisors {
		if err := advisorsUpsert.Exec(ctx, tx, a.ID, a.Name, a.Type); err != nil {
			return eris.Wrapf(err, "postgres: seed advisor %s", a.ID)
		}
	}
	for _, inv := range ds.Invites {
		if err := invitesUpsert.Exec(ctx, tx, inv.ID, inv.RFPID, inv.AdvisorID, string(inv.Status)); err != nil {
			return eris.Wrapf(err, "postgres: seed invite %s", inv.ID)
		}
	}
	for _, rs := range ds.RequirementSets {
		fee, scope, err := encodeRequirementItems(rs)
		if err != nil {
			return err
		}
		if err := requirementSetsUpsert.Exec(ctx, tx, rs.RFPID, fee, scope); err != nil {
			return eris.Wrapf(err, "postgres: seed requirement set %s", rs.RFPID)
		}
	}
	for _, p := range ds.Proposals {
		fee, services, milestones, err := encodeProposalItems(p)
		if err != nil {
			return err
		}
		if err := proposalsUpsert.Exec(ctx, tx,
			p.ID, p.ProjectID, p.InviteID, p.AdvisorID, p.Price, p.TimelineDays, p.ScopeText, p.TermsText,
			fee, services, milestones, string(p.Status), p.SubmittedAt, p.Version, p.DocumentPath, p.DocumentURL); err != nil {
			return eris.Wrapf(err, "postgres: seed proposal %s", p.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: seed: commit")
}

type scannable interface {
	Scan(dest ...any) error
}

// scanProposalRecord scans one row of sqlListProposals. Missing advisor or
// invite joins leave the corresponding pointer nil.
func scanProposalRecord(row scannable) (model.ProposalRecord, error) {
	var (
		rec                               model.ProposalRecord
		p                                 = &rec.Proposal
		feeJSON, servicesJSON, milestones []byte
		advID, advName, advType           *string
		invID, invRFP, invAdvisor, invSt  *string
	)
	if err := row.Scan(&p.ID, &p.ProjectID, &p.InviteID, &p.AdvisorID, &p.Price, &p.TimelineDays,
		&p.ScopeText, &p.TermsText, &feeJSON, &servicesJSON, &milestones,
		&p.Status, &p.SubmittedAt, &p.Version, &p.DocumentPath, &p.DocumentURL,
		&advID, &advName, &advType, &invID, &invRFP, &invAdvisor, &invSt); err != nil {
		return rec, eris.Wrap(err, "store: scan proposal")
	}
	if err := decodeProposalItems(p, feeJSON, servicesJSON, milestones); err != nil {
		return rec, err
	}
	if advID != nil {
		rec.Advisor = &model.Advisor{ID: *advID, Name: deref(advName), Type: deref(advType)}
	}
	if invID != nil {
		rec.Invite = &model.Invite{
			ID:        *invID,
			RFPID:     deref(invRFP),
			AdvisorID: deref(invAdvisor),
			Status:    model.InviteStatus(deref(invSt)),
		}
	}
	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func encodeRequirementItems(rs model.RequirementSet) (fee, scope []byte, err error) {
	if fee, err = marshalList(rs.FeeItems); err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal fee items")
	}
	if scope, err = marshalList(rs.ScopeItems); err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal scope items")
	}
	return fee, scope, nil
}

func encodeProposalItems(p model.Proposal) (fee, services, milestones []byte, err error) {
	if fee, err = marshalList(p.FeeLineItems); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal fee line items")
	}
	if services, err = marshalList(p.SelectedServices); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal selected services")
	}
	if milestones, err = marshalList(p.MilestoneAdjustments); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal milestone adjustments")
	}
	return fee, services, milestones, nil
}

func decodeProposalItems(p *model.Proposal, fee, services, milestones []byte) error {
	if err := unmarshalJSON(fee, &p.FeeLineItems); err != nil {
		return eris.Wrapf(err, "store: unmarshal fee line items of %s", p.ID)
	}
	if err := unmarshalJSON(services, &p.SelectedServices); err != nil {
		return eris.Wrapf(err, "store: unmarshal selected services of %s", p.ID)
	}
	if err := unmarshalJSON(milestones, &p.MilestoneAdjustments); err != nil {
		return eris.Wrapf(err, "store: unmarshal milestone adjustments of %s", p.ID)
	}
	return nil
}

// marshalList encodes a slice, writing [] rather than null for nil.
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func encodeResultBlobs(r model.StoredResult) (result, summary, provider []byte, err error) {
	if result, err = json.Marshal(r.Result); err != nil {
		return nil, nil, nil, eris.Wrapf(err, "store: marshal result of %s", r.ProposalID)
	}
	if summary, err = json.Marshal(r.Summary); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal summary")
	}
	if provider, err = json.Marshal(r.Provider); err != nil {
		return nil, nil, nil, eris.Wrap(err, "store: marshal provider metadata")
	}
	return result, summary, provider, nil
}

func decodeResultBlobs(r *model.StoredResult, result, summary, provider []byte) error {
	if err := unmarshalJSON(result, &r.Result); err != nil {
		return eris.Wrapf(err, "store: unmarshal result of %s", r.ProposalID)
	}
	if err := unmarshalJSON(summary, &r.Summary); err != nil {
		return eris.Wrap(err, "store: unmarshal summary")
	}
	if err := unmarshalJSON(provider, &r.Provider); err != nil {
		return eris.Wrap(err, "store: unmarshal provider metadata")
	}
	return nil
}
