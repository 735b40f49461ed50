package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/proposal-eval/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS projects (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	declared_type TEXT NOT NULL DEFAULT '',
	budget        REAL NOT NULL DEFAULT 0,
	large_scale   BOOLEAN NOT NULL DEFAULT 0
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
	fee_items   TEXT NOT NULL DEFAULT '[]',
	scope_items TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS proposals (
	id                    TEXT PRIMARY KEY,
	project_id            TEXT NOT NULL REFERENCES projects(id),
	invite_id             TEXT NOT NULL DEFAULT '',
	advisor_id            TEXT NOT NULL DEFAULT '',
	price                 REAL NOT NULL DEFAULT 0,
	timeline_days         INTEGER NOT NULL DEFAULT 0,
	scope_text            TEXT NOT NULL DEFAULT '',
	terms_text            TEXT NOT NULL DEFAULT '',
	fee_line_items        TEXT NOT NULL DEFAULT '[]',
	selected_services     TEXT NOT NULL DEFAULT '[]',
	milestone_adjustments TEXT NOT NULL DEFAULT '[]',
	status                TEXT NOT NULL DEFAULT 'draft',
	submitted_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	version               INTEGER NOT NULL DEFAULT 1,
	document_path         TEXT NOT NULL DEFAULT '',
	document_url          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS evaluation_results (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	proposal_id  TEXT NOT NULL,
	batch_key    TEXT NOT NULL,
	mode         TEXT NOT NULL,
	result       TEXT NOT NULL,
	summary      TEXT NOT NULL,
	final_score  INTEGER NOT NULL,
	rank         INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	completed_at DATETIME,
	provider     TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (proposal_id, batch_key)
);

CREATE INDEX IF NOT EXISTS idx_proposals_project_id ON proposals(project_id);
CREATE INDEX IF NOT EXISTS idx_evaluation_results_batch ON evaluation_results(project_id, batch_key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	var p model.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, declared_type, budget, large_scale FROM projects WHERE id = ?`, projectID).
		Scan(&p.ID, &p.Name, &p.DeclaredType, &p.Budget, &p.LargeScale)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get project %s", projectID)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProposals(ctx context.Context, projectID string, proposalIDs []string) ([]model.ProposalRecord, error) {
	query := `SELECT p.id, p.project_id, p.invite_id, p.advisor_id, p.price, p.timeline_days,
	p.scope_text, p.terms_text, p.fee_line_items, p.selected_services, p.milestone_adjustments,
	p.status, p.submitted_at, p.version, p.document_path, p.document_url,
	a.id, a.name, a.advisor_type, i.id, i.rfp_id, i.advisor_id, i.status
FROM proposals p
LEFT JOIN advisors a ON a.id = p.advisor_id
LEFT JOIN invites i ON i.id = p.invite_id
WHERE p.project_id = ?`
	args := []any{projectID}
	if len(proposalIDs) > 0 {
		query += " AND p.id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(proposalIDs)), ",") + ")"
		for _, id := range proposalIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY p.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list proposals for project %s", projectID)
	}
	defer rows.Close() //nolint:errcheck

	var records []model.ProposalRecord
	for rows.Next() {
		var (
			rec                                  model.ProposalRecord
			p                                    = &rec.Proposal
			feeJSON, servicesJSON, milestoneJSON string
			advID, advName, advType              sql.NullString
			invID, invRFP, invAdvisor, invStatus sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.InviteID, &p.AdvisorID, &p.Price, &p.TimelineDays,
			&p.ScopeText, &p.TermsText, &feeJSON, &servicesJSON, &milestoneJSON,
			&p.Status, &p.SubmittedAt, &p.Version, &p.DocumentPath, &p.DocumentURL,
			&advID, &advName, &advType, &invID, &invRFP, &invAdvisor, &invStatus); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan proposal")
		}
		if err := decodeProposalItems(p, []byte(feeJSON), []byte(servicesJSON), []byte(milestoneJSON)); err != nil {
			return nil, err
		}
		if advID.Valid {
			rec.Advisor = &model.Advisor{ID: advID.String, Name: advName.String, Type: advType.String}
		}
		if invID.Valid {
			rec.Invite = &model.Invite{
				ID:        invID.String,
				RFPID:     invRFP.String,
				AdvisorID: invAdvisor.String,
				Status:    model.InviteStatus(invStatus.String),
			}
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate proposals")
}

func (s *SQLiteStore) GetRequirementSet(ctx context.Context, rfpID string) (*model.RequirementSet, error) {
	var (
		rs                 model.RequirementSet
		feeJSON, scopeJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT rfp_id, fee_items, scope_items FROM requirement_sets WHERE rfp_id = ?`, rfpID).
		Scan(&rs.RFPID, &feeJSON, &scopeJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get requirement set %s", rfpID)
	}
	if err := unmarshalJSON([]byte(feeJSON), &rs.FeeItems); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal fee items")
	}
	if err := unmarshalJSON([]byte(scopeJSON), &rs.ScopeItems); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal scope items")
	}
	return &rs, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, projectID, batchKey string) ([]model.StoredResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, proposal_id, batch_key, mode, result, summary,
	final_score, rank, status, completed_at, provider
FROM evaluation_results WHERE project_id = ? AND batch_key = ? ORDER BY rank, proposal_id`,
		projectID, batchKey)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close() //nolint:errcheck

	var results []model.StoredResult
	for rows.Next() {
		var (
			r                                 model.StoredResult
			resultJSON, summaryJSON, provJSON string
			completedAt                       sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.ProposalID, &r.BatchKey, &r.Mode,
			&resultJSON, &summaryJSON, &r.FinalScore, &r.Rank, &r.Status, &completedAt, &provJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		if err := decodeResultBlobs(&r, []byte(resultJSON), []byte(summaryJSON), []byte(provJSON)); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

// SaveResults upserts every row in one transaction.
func (s *SQLiteStore) SaveResults(ctx context.Context, results []model.StoredResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: save results: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range results {
		r := &results[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		resultJSON, summaryJSON, provJSON, err := encodeResultBlobs(*r)
		if err != nil {
			return err
		}
		var completedAt any
		if r.CompletedAt != nil {
			completedAt = r.CompletedAt.UTC()
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO evaluation_results
	(id, project_id, proposal_id, batch_key, mode, result, summary, final_score, rank, status, completed_at, provider)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (proposal_id, batch_key) DO UPDATE SET
	id = excluded.id, project_id = excluded.project_id, mode = excluded.mode, result = excluded.result,
	summary = excluded.summary, final_score = excluded.final_score, rank = excluded.rank,
	status = excluded.status, completed_at = excluded.completed_at, provider = excluded.provider`,
			r.ID, r.ProjectID, r.ProposalID, r.BatchKey, string(r.Mode), string(resultJSON), string(summaryJSON),
			r.FinalScore, r.Rank, string(r.Status), completedAt, string(provJSON))
		if err != nil {
			return eris.Wrapf(err, "sqlite: save result for %s", r.ProposalID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: save results: commit")
}

// Seed upserts a dataset of records in one transaction.
func (s *SQLiteStore) Seed(ctx context.Context, ds model.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range ds.Projects {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO projects (id, name, declared_type, budget, large_scale) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.DeclaredType, p.Budget, p.LargeScale); err != nil {
			return eris.Wrapf(err, "sqlite: seed project %s", p.ID)
		}
	}
	for _, a := range ds.Advisors {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO advisors (id, name, advisor_type) VALUES (?, ?, ?)`,
			a.ID, a.Name, a.Type); err != nil {
			return eris.Wrapf(err, "sqlite: seed advisor %s", a.ID)
		}
	}
	for _, inv := range ds.Invites {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO invites (id, rfp_id, advisor_id, status) VALUES (?, ?, ?, ?)`,
			inv.ID, inv.RFPID, inv.AdvisorID, string(inv.Status)); err != nil {
			return eris.Wrapf(err, "sqlite: seed invite %s", inv.ID)
		}
	}
	for _, rs := range ds.RequirementSets {
		fee, scope, err := encodeRequirementItems(rs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO requirement_sets (rfp_id, fee_items, scope_items) VALUES (?, ?, ?)`,
			rs.RFPID, string(fee), string(scope)); err != nil {
			return eris.Wrapf(err, "sqlite: seed requirement set %s", rs.RFPID)
		}
	}
	for _, p := range ds.Proposals {
		fee, services, milestones, err := encodeProposalItems(p)
		if err != nil {
			return err
		}
		submitted := p.SubmittedAt
		if submitted.IsZero() {
			submitted = time.Unix(0, 0)
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO proposals (id, project_id, invite_id, advisor_id,
	price, timeline_days, scope_text, terms_text, fee_line_items, selected_services, milestone_adjustments,
	status, submitted_at, version, document_path, document_url)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ProjectID, p.InviteID, p.AdvisorID, p.Price, p.TimelineDays, p.ScopeText, p.TermsText,
			string(fee), string(services), string(milestones), string(p.Status), submitted.UTC(),
			p.Version, p.DocumentPath, p.DocumentURL); err != nil {
			return eris.Wrapf(err, "sqlite: seed proposal %s", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: seed: commit")
}
