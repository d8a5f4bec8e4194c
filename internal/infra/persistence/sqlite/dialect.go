// Package sqlite provides the embedded SQLite engine (modernc.org/sqlite, no
// cgo). It runs the benchmark locally without a server and backs the
// end-to-end tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"snpbench/internal/report"
	"snpbench/internal/store"
)

const (
	driverName = "sqlite"
	// maxParams is SQLITE_MAX_VARIABLE_NUMBER for SQLite 3.32 and later.
	maxParams = 32766
)

// Open opens (creating if needed) the database file at path with a single
// connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = "snpbench.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Remove deletes the database file and its journals so the next Open starts
// empty. A missing file is not an error.
func Remove(path string) error {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// Dialect implements store.Dialect for SQLite.
type Dialect struct{}

var _ store.Dialect = Dialect{}

// Name returns the report label prefix.
func (Dialect) Name() string { return "sqlite" }

// Placeholder renders a positional parameter.
func (Dialect) Placeholder(int) string { return "?" }

// MaxParams returns the per-statement bind parameter limit.
func (Dialect) MaxParams() int { return maxParams }

// Catalog returns the statements for l. SQLite has no GIN indexes, so the
// document layout indexes rsid and significance through json_extract
// expressions and leaves gene and whole-document indexes out.
func (d Dialect) Catalog(l store.Layout) (store.Catalog, error) {
	checks := struct{ off, on []string }{
		off: []string{"PRAGMA foreign_keys = OFF"},
		on:  []string{"PRAGMA foreign_keys = ON"},
	}
	switch l.Mode {
	case store.ModeNormalized:
		return store.Catalog{
			Schema: []string{
				`CREATE TABLE IF NOT EXISTS snp (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rsid TEXT,
	chr TEXT,
	has_sig BOOLEAN
)`,
				`CREATE TABLE IF NOT EXISTS locus (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mrna_acc TEXT,
	gene TEXT,
	class TEXT,
	snp_id INTEGER REFERENCES snp (id)
)`,
			},
			DisableChecks: checks.off,
			EnableChecks:  checks.on,
			PostLoad:      []string{"CREATE INDEX IF NOT EXISTS idx_snpid_fk ON locus (snp_id)"},
			Indexes:       store.NormalizedIndexes(),
			Queries:       store.NormalizedQueries(d.Placeholder),
			GeneSweep:     store.NormalizedGeneSweep(d.Placeholder),
			Variants:      store.VariantTable,
			Loci:          store.LocusTable,
		}, nil
	case store.ModeDocument:
		if l.DocType != store.DocJSON && l.DocType != store.DocJSONB {
			return store.Catalog{}, fmt.Errorf("unknown document type %q", l.DocType)
		}
		byGene := "SELECT count(*) FROM snp WHERE EXISTS (SELECT 1 FROM json_each(snp.jsondata, '$.loci') l WHERE json_extract(l.value, '$.gene') = ?)"
		significant := "json_extract(jsondata, '$.has_sig') = TRUE"
		gene := func(k store.Lookup) ([]any, error) { return []any{k.Gene}, nil }
		return store.Catalog{
			Schema: []string{`CREATE TABLE IF NOT EXISTS snp (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	jsondata TEXT
)`},
			DisableChecks: checks.off,
			EnableChecks:  checks.on,
			Indexes: []store.Index{
				{Kind: report.IndexRSID, Name: "idx_rsid", DDL: "CREATE INDEX idx_rsid ON snp (json_extract(jsondata, '$.rsid'))"},
				{Kind: report.IndexSignificance, Name: "idx_clin", DDL: "CREATE INDEX idx_clin ON snp (json_extract(jsondata, '$.has_sig'))"},
			},
			Queries: []store.Query{
				{
					Kind: report.QueryByRSID,
					SQL:  "SELECT id, jsondata FROM snp WHERE json_extract(jsondata, '$.rsid') = ?",
					Bind: func(k store.Lookup) ([]any, error) { return []any{k.RSID}, nil },
				},
				{Kind: report.QueryBySignificance, SQL: "SELECT count(*) FROM snp WHERE " + significant, Bind: store.Args()},
				{Kind: report.QueryByGene, SQL: byGene, Bind: gene},
				{Kind: report.QueryByGeneSignificance, SQL: byGene + " AND " + significant, Bind: gene},
			},
			Documents: store.DocumentTable,
		}, nil
	}
	return store.Catalog{}, fmt.Errorf("unknown mode %q", l.Mode)
}

// BulkImport emulates a server-side bulk load: the COPY text file is decoded
// and inserted through one prepared statement in a single transaction.
func (d Dialect) BulkImport(ctx context.Context, db *sql.DB, t store.Table, path string) (n int64, retErr error) {
	if len(t.Columns) != 1 {
		return 0, fmt.Errorf("bulk import into %s: %w for %d columns", t.Name, store.ErrUnsupported, len(t.Columns))
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open bulk file: %w", err)
	}
	defer func() { _ = f.Close() }()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, store.InsertSQL(d, store.Table{Name: t.Name, Columns: t.Columns}, 1))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	err = store.ReadCopyLines(f, func(field string) error {
		if _, err := stmt.ExecContext(ctx, field); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bulk import into %s: %w", t.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
