// Package postgres provides the PostgreSQL engine: connection setup through
// pgx's database/sql driver, the statement catalog for both layouts, and bulk
// import over the COPY protocol.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib" // also registers pgx as a database/sql driver

	"snpbench/internal/report"
	"snpbench/internal/store"
)

const (
	driverName = "pgx"
	// maxParams is the wire protocol's limit on bind parameters per statement.
	maxParams = 65535
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Options locates the server and the experiment database.
type Options struct {
	Host          string
	Port          int
	User          string
	Password      string
	Database      string
	AdminDatabase string // maintenance database used to drop and create Database
	SSLMode       string
}

// DSN returns a connection URL for database.
func (o Options) DSN(database string) string {
	u := url.URL{Scheme: "postgres", Path: "/" + database}
	host := o.Host
	if host == "" {
		host = "localhost"
	}
	if o.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(o.Port))
	}
	u.Host = host
	if o.User != "" {
		if o.Password != "" {
			u.User = url.UserPassword(o.User, o.Password)
		} else {
			u.User = url.User(o.User)
		}
	}
	if o.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {o.SSLMode}}.Encode()
	}
	return u.String()
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// The benchmark is sequential; one connection keeps session state
	// (disabled triggers) and timings honest.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Open connects to the experiment database.
func Open(ctx context.Context, o Options) (*sql.DB, error) {
	return open(ctx, o.DSN(o.Database))
}

// Recreate drops and creates the experiment database through the
// maintenance database.
func Recreate(ctx context.Context, o Options) error {
	admin := o.AdminDatabase
	if admin == "" {
		admin = "postgres"
	}
	if admin == o.Database {
		return fmt.Errorf("refusing to recreate maintenance database %q", admin)
	}
	db, err := open(ctx, o.DSN(admin))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	name := pgx.Identifier{o.Database}.Sanitize()
	if _, err := db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+name); err != nil {
		return fmt.Errorf("drop database %s: %w", o.Database, err)
	}
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+name); err != nil {
		return fmt.Errorf("create database %s: %w", o.Database, err)
	}
	return nil
}

// OverrideSQLOpen swaps the sql.Open hook, returning a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// Dialect implements store.Dialect for PostgreSQL.
type Dialect struct{}

var _ store.Dialect = Dialect{}

// Name returns the report label prefix.
func (Dialect) Name() string { return "pgsql" }

// Placeholder renders $n.
func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// MaxParams returns the per-statement bind parameter limit.
func (Dialect) MaxParams() int { return maxParams }

// Catalog returns the statements for l.
func (d Dialect) Catalog(l store.Layout) (store.Catalog, error) {
	switch l.Mode {
	case store.ModeNormalized:
		return store.Catalog{
			Schema: []string{
				`CREATE TABLE IF NOT EXISTS snp (
	id serial PRIMARY KEY,
	rsid varchar,
	chr varchar,
	has_sig boolean
)`,
				`CREATE TABLE IF NOT EXISTS locus (
	id serial PRIMARY KEY,
	mrna_acc varchar,
	gene varchar,
	class varchar,
	snp_id integer,
	CONSTRAINT idx_snp FOREIGN KEY (snp_id) REFERENCES snp (id) ON DELETE NO ACTION ON UPDATE NO ACTION
)`,
			},
			DisableChecks: []string{"ALTER TABLE snp DISABLE TRIGGER ALL", "ALTER TABLE locus DISABLE TRIGGER ALL"},
			EnableChecks:  []string{"ALTER TABLE snp ENABLE TRIGGER ALL", "ALTER TABLE locus ENABLE TRIGGER ALL"},
			PostLoad:      []string{"CREATE INDEX IF NOT EXISTS idx_snpid_fk ON locus (snp_id)"},
			Indexes:       store.NormalizedIndexes(),
			Queries:       store.NormalizedQueries(d.Placeholder),
			GeneSweep:     store.NormalizedGeneSweep(d.Placeholder),
			Variants:      store.VariantTable,
			Loci:          store.LocusTable,
		}, nil
	case store.ModeDocument:
		return documentCatalog(l.DocType)
	}
	return store.Catalog{}, fmt.Errorf("unknown mode %q", l.Mode)
}

// documentCatalog builds the JSON layout. Plain json columns are cast to
// jsonb wherever containment or GIN indexing is needed.
func documentCatalog(t store.DocType) (store.Catalog, error) {
	if t != store.DocJSON && t != store.DocJSONB {
		return store.Catalog{}, fmt.Errorf("unknown document type %q", t)
	}
	col := "jsondata"
	if t == store.DocJSON {
		col = "jsondata::jsonb"
	}
	byGene := "SELECT count(*) FROM snp WHERE " + col + " -> 'loci' @> $1::jsonb"
	significant := col + " -> 'has_sig' @> 'true'::jsonb"
	return store.Catalog{
		Schema: []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS snp (
	id serial PRIMARY KEY,
	jsondata %s
)`, t)},
		DisableChecks: []string{"ALTER TABLE snp DISABLE TRIGGER ALL"},
		EnableChecks:  []string{"ALTER TABLE snp ENABLE TRIGGER ALL"},
		Indexes: []store.Index{
			{Kind: report.IndexRSID, Name: "idx_rsid", DDL: "CREATE INDEX idx_rsid ON snp USING GIN ((" + col + " -> 'rsid'))"},
			{Kind: report.IndexSignificance, Name: "idx_clin", DDL: "CREATE INDEX idx_clin ON snp USING GIN ((" + col + " -> 'has_sig'))"},
			{Kind: report.IndexGene, Name: "idx_gene", DDL: "CREATE INDEX idx_gene ON snp USING GIN ((" + col + " -> 'loci') jsonb_path_ops)"},
			{Kind: report.IndexFull, Name: "idx_full", DDL: "CREATE INDEX idx_full ON snp USING GIN ((" + col + ") jsonb_path_ops)"},
		},
		Queries: []store.Query{
			{
				Kind: report.QueryByRSID,
				SQL:  "SELECT id, jsondata FROM snp WHERE " + col + " -> 'rsid' @> $1::jsonb",
				Bind: func(k store.Lookup) ([]any, error) { return jsonArg(k.RSID) },
			},
			{
				Kind: report.QueryBySignificance,
				SQL:  "SELECT count(*) FROM snp WHERE " + significant,
				Bind: store.Args(),
			},
			{
				Kind: report.QueryByGene,
				SQL:  byGene,
				Bind: geneArg,
			},
			{
				Kind: report.QueryByGeneSignificance,
				SQL:  byGene + " AND " + significant,
				Bind: geneArg,
			},
		},
		Documents: store.DocumentTable,
	}, nil
}

func jsonArg(v any) ([]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []any{string(b)}, nil
}

func geneArg(k store.Lookup) ([]any, error) {
	return jsonArg([]map[string]string{{"gene": k.Gene}})
}

// BulkImport streams the COPY text file at path into t over the COPY
// protocol. The connection must belong to the pgx driver.
func (Dialect) BulkImport(ctx context.Context, db *sql.DB, t store.Table, path string) (int64, error) {
	if len(t.Columns) == 0 {
		return 0, fmt.Errorf("bulk import into %s: no columns", t.Name)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open bulk file: %w", err)
	}
	defer func() { _ = f.Close() }()
	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	copySQL := copyStatement(t.Name, cols)
	var rows int64
	err = conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("bulk import over %T: %w", dc, store.ErrUnsupported)
		}
		tag, err := sc.Conn().PgConn().CopyFrom(ctx, f, copySQL)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", t.Name, err)
	}
	return rows, nil
}

func copyStatement(table string, cols []string) string {
	stmt := "COPY " + pgx.Identifier{table}.Sanitize() + " ("
	for i, c := range cols {
		if i > 0 {
			stmt += ", "
		}
		stmt += c
	}
	return stmt + ") FROM STDIN"
}
