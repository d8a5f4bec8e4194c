package bench

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"snpbench/internal/store"
)

// execer is the subset of *sql.DB and *sql.Tx the helpers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func execAll(ctx context.Context, db execer, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			line, _, _ := strings.Cut(stmt, "\n")
			return fmt.Errorf("exec %q: %w", line, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (retErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertChunks inserts records into t, chunk records per statement. When t
// has Returning columns, scan is called for every returned row.
func insertChunks(ctx context.Context, db execer, d store.Dialect, t store.Table, records [][]any, chunk int, scan func(*sql.Rows) error) error {
	if chunk < 1 {
		chunk = 1
	}
	var stmt string
	stmtRows := -1
	args := make([]any, 0, chunk*len(t.Columns))
	for start := 0; start < len(records); start += chunk {
		end := min(start+chunk, len(records))
		if n := end - start; n != stmtRows {
			stmt, stmtRows = store.InsertSQL(d, t, n), n
		}
		args = args[:0]
		for _, rec := range records[start:end] {
			args = append(args, rec...)
		}
		if err := insertOne(ctx, db, t, stmt, args, scan); err != nil {
			return fmt.Errorf("insert into %s: %w", t.Name, err)
		}
	}
	return nil
}

func insertOne(ctx context.Context, db execer, t store.Table, stmt string, args []any, scan func(*sql.Rows) error) error {
	if len(t.Returning) == 0 || scan == nil {
		_, err := db.ExecContext(ctx, stmt, args...)
		return err
	}
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
