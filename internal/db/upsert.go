package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Execer runs a statement. Both Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Upsert describes an insert-or-update against one table whose rows are
// identified by the unique constraint over Key. Update lists the columns
// rewritten on conflict; nil means every non-key column.
type Upsert struct {
	Table   string
	Columns []string
	Key     []string
	Update  []string
}

func (u Upsert) validate() error {
	if len(u.Columns) == 0 {
		return eris.Errorf("db: upsert %s: no columns", u.Table)
	}
	if len(u.Key) == 0 {
		return eris.Errorf("db: upsert %s: no key columns", u.Table)
	}
	return nil
}

func (u Upsert) updateColumns() []string {
	if u.Update != nil {
		return u.Update
	}
	key := make(map[string]struct{}, len(u.Key))
	for _, k := range u.Key {
		key[k] = struct{}{}
	}
	cols := make([]string, 0, len(u.Columns))
	for _, c := range u.Columns {
		if _, ok := key[c]; !ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// conflictClause renders ON CONFLICT (...) DO UPDATE SET ..., or DO NOTHING
// when no column is left to update.
func (u Upsert) conflictClause() string {
	cols := u.updateColumns()
	if len(cols) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", quoteAndJoin(u.Key))
	}
	set := make([]string, len(cols))
	for i, c := range cols {
		q := pgx.Identifier{c}.Sanitize()
		set[i] = q + " = EXCLUDED." + q
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", quoteAndJoin(u.Key), strings.Join(set, ", "))
}

// Statement returns the single-row form with one positional parameter per
// column.
func (u Upsert) Statement() string {
	params := make([]string, len(u.Columns))
	for i := range u.Columns {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		sanitizeTable(u.Table), quoteAndJoin(u.Columns), strings.Join(params, ", "), u.conflictClause())
}

// Exec writes one row. args must follow Columns.
func (u Upsert) Exec(ctx context.Context, q Execer, args ...any) error {
	if err := u.validate(); err != nil {
		return err
	}
	if len(args) != len(u.Columns) {
		return eris.Errorf("db: upsert %s: %d values for %d columns", u.Table, len(args), len(u.Columns))
	}
	_, err := q.Exec(ctx, u.Statement(), args...)
	return eris.Wrapf(err, "db: upsert %s", u.Table)
}

// Bulk writes rows in one transaction: COPY into a staging table shaped
// like the target, then merge with a single INSERT ... SELECT. Either every
// row lands or none does.
func (u Upsert) Bulk(ctx context.Context, pool Pool, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := u.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: bulk upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	staging := pgx.Identifier{stagingTable(u.Table)}
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		staging.Sanitize(), sanitizeTable(u.Table))
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: bulk upsert %s: create staging table", u.Table)
	}

	if _, err := tx.CopyFrom(ctx, staging, u.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: bulk upsert %s: copy", u.Table)
	}

	cols := quoteAndJoin(u.Columns)
	merge := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s %s",
		sanitizeTable(u.Table), cols, cols, staging.Sanitize(), u.conflictClause())
	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: bulk upsert %s: merge", u.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: bulk upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func stagingTable(table string) string {
	return "staging_" + strings.ReplaceAll(table, ".", "_")
}

// sanitizeTable quotes an optionally schema-qualified table name.
func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
