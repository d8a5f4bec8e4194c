package store

import (
	"context"
	"database/sql"
	"errors"

	"snpbench/internal/report"
)

// ErrUnsupported marks a capability an engine does not provide.
var ErrUnsupported = errors.New("store: unsupported by engine")

// Table names an insert target. When Returning is set the insert yields those
// columns for every row.
type Table struct {
	Name      string
	Columns   []string
	Returning []string
}

// Index is one timed index statement.
type Index struct {
	Kind report.IndexKind
	Name string
	DDL  string
}

// Lookup carries the arguments of the query battery.
type Lookup struct {
	RSID string
	Gene string
}

// Query is one benchmark query shape. Bind turns a lookup into the statement
// arguments; values are never spliced into SQL.
type Query struct {
	Kind report.QueryKind
	SQL  string
	Bind func(Lookup) ([]any, error)
}

// Catalog is the fixed statement set for one engine and layout.
type Catalog struct {
	Schema        []string
	DisableChecks []string
	EnableChecks  []string
	PostLoad      []string
	Indexes       []Index
	Queries       []Query
	// GeneSweep is the per-gene count timed by the sweep. When unset the
	// sweep falls back to the QueryByGene shape.
	GeneSweep *Query

	// Normalized targets.
	Variants Table
	Loci     Table
	// Document target.
	Documents Table
}

// Query returns the statement for k.
func (c Catalog) Query(k report.QueryKind) (Query, bool) {
	for _, q := range c.Queries {
		if q.Kind == k {
			return q, true
		}
	}
	return Query{}, false
}

// SweepQuery returns the statement the gene sweep times.
func (c Catalog) SweepQuery() (Query, bool) {
	if c.GeneSweep != nil {
		return *c.GeneSweep, true
	}
	return c.Query(report.QueryByGene)
}

// Dialect is implemented by each database engine.
type Dialect interface {
	// Name is the label prefix used in report method names.
	Name() string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder(n int) string
	// MaxParams is the most bind parameters one statement may carry.
	MaxParams() int
	// Catalog returns the statements for l.
	Catalog(l Layout) (Catalog, error)
	// BulkImport loads the COPY text file at path into t, returning the rows
	// imported.
	BulkImport(ctx context.Context, db *sql.DB, t Table, path string) (int64, error)
}

// Args is a convenience Bind for queries taking constant arguments.
func Args(args ...any) func(Lookup) ([]any, error) {
	return func(Lookup) ([]any, error) { return args, nil }
}
