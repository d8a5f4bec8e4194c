// Package testutil provides a recording database/sql driver that stands in
// for PostgreSQL in dialect and pipeline tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StubConn records every statement and answers the statement shapes the
// benchmark issues: inserts (with RETURNING), count queries and lookups.
type StubConn struct {
	mu sync.Mutex

	Execs     []string
	Tables    map[string][]map[string]any
	FailOn    map[string]error // statement substring -> error
	FailBegin bool
	Count     int64 // answer for count(*) queries
	Commits   int
	Rollbacks int

	nextID int64
}

// NewStubDB registers a sql.DB backed by a fresh stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any), FailOn: make(map[string]error)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Statements returns a copy of the recorded statements.
func (c *StubConn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Execs...)
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	return c.failure("ping")
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

func (c *StubConn) failure(stmt string) error {
	for frag, err := range c.FailOn {
		if strings.Contains(stmt, frag) {
			return err
		}
	}
	return nil
}

func (c *StubConn) record(query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	return c.failure(query)
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := c.record(query); err != nil {
		return nil, err
	}
	if isInsert(query) {
		rows, err := c.insert(query, args)
		if err != nil {
			return nil, err
		}
		return driver.RowsAffected(len(rows)), nil
	}
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := c.record(query); err != nil {
		return nil, err
	}
	if isInsert(query) {
		rows, err := c.insert(query, args)
		if err != nil {
			return nil, err
		}
		returning := parseReturning(query)
		values := make([][]driver.Value, 0, len(rows))
		for _, row := range rows {
			vals := make([]driver.Value, len(returning))
			for i, col := range returning {
				vals[i] = row[col]
			}
			values = append(values, vals)
		}
		return &stubRows{cols: returning, rows: values}, nil
	}
	cols, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if len(cols) == 1 && strings.HasPrefix(cols[0], "count(") {
		return &stubRows{cols: cols, rows: [][]driver.Value{{c.Count}}}, nil
	}
	return &stubRows{cols: cols}, nil
}

// insert stores every record of a multi-row insert and assigns serial ids.
func (c *StubConn) insert(query string, args []driver.NamedValue) ([]map[string]any, error) {
	table, cols, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 || len(args)%len(cols) != 0 {
		return nil, fmt.Errorf("column/arg mismatch for %s", table)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for start := 0; start < len(args); start += len(cols) {
		c.nextID++
		row := map[string]any{"id": c.nextID}
		for i, col := range cols {
			row[col] = args[start+i].Value
		}
		c.Tables[table] = append(c.Tables[table], row)
		out = append(out, row)
	}
	return out, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if err := t.conn.failure("COMMIT"); err != nil {
		return err
	}
	t.conn.Commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func isInsert(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO")
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	return table, splitColumns(rest[open+1 : closeIdx]), nil
}

func parseReturning(query string) []string {
	idx := strings.LastIndex(strings.ToUpper(query), " RETURNING ")
	if idx == -1 {
		return nil
	}
	return splitColumns(query[idx+len(" RETURNING "):])
}

func parseSelect(query string) ([]string, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if !strings.HasPrefix(lower, "select ") {
		return nil, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, " from ")
	if fromIdx == -1 {
		return nil, fmt.Errorf("cannot parse select: %s", query)
	}
	return splitColumns(lower[len("select "):fromIdx]), nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
