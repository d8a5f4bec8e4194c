package report

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"snpbench/internal/blob"
)

func TestRecorderWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	rec, err := Open(filepath.Join(dir, "reports"), "pgsql", "t1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, p := range []string{"1", "2", "X"} {
		r := NewResult("pgsql", "t1")
		r.Partition = p
		r.SetCount(CountSnps, 10)
		if err := rec.Record(context.Background(), r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, "reports", "results-pgsql-t1.txt"))
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	lines, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	for i, l := range lines {
		if len(l) != len(lines[0]) {
			t.Fatalf("line %d has %d fields, header %d", i, len(l), len(lines[0]))
		}
	}
	if lines[3][3] != "X" {
		t.Fatalf("rows out of order: %v", lines[3])
	}
	if rec.Records() != 3 {
		t.Fatalf("records = %d", rec.Records())
	}
}

// countingWriter records how many bytes had reached it at each write.
type countingWriter struct{ writes int }

func (w *countingWriter) Write(p []byte) (int, error) { w.writes++; return len(p), nil }

func TestRecorderFlushesEachRecord(t *testing.T) {
	w := &countingWriter{}
	rec, err := New(w)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if w.writes != 1 {
		t.Fatalf("header not flushed")
	}
	if err := rec.Record(context.Background(), NewResult("m", "t")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if w.writes != 2 {
		t.Fatalf("record not flushed, writes=%d", w.writes)
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	if w.n > 1 {
		return 0, errors.New("disk full")
	}
	return len(p), nil
}

func TestRecorderReturnsWriteErrors(t *testing.T) {
	rec, err := New(&failingWriter{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := rec.Record(context.Background(), NewResult("m", "t")); err == nil {
		t.Fatalf("expected write error")
	}
}

type brokenMirror struct{ calls int }

func (m *brokenMirror) Mirror(context.Context, []string, []string) error {
	m.calls++
	return errors.New("sink unavailable")
}

func TestMirrorFailureDoesNotAbort(t *testing.T) {
	var out, logs, term bytes.Buffer
	metrics := NewMetrics()
	mirror := &brokenMirror{}
	rec, err := New(&out,
		WithMirror(mirror),
		WithMetrics(metrics),
		WithTerminal(&term),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := rec.Record(context.Background(), NewResult("pgsql", "t")); err != nil {
			t.Fatalf("record should survive mirror failure: %v", err)
		}
	}
	if mirror.calls != 2 || rec.MirrorFailures() != 2 {
		t.Fatalf("calls=%d failures=%d", mirror.calls, rec.MirrorFailures())
	}
	if got := testutil.ToFloat64(metrics.mirrorFailures); got != 2 {
		t.Fatalf("mirror failure counter = %v", got)
	}
	if !strings.Contains(logs.String(), "mirror result failed") {
		t.Fatalf("expected warning in logs: %q", logs.String())
	}
	sc := bufio.NewScanner(&term)
	n := 0
	for sc.Scan() {
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 terminal lines, got %d", n)
	}
	if strings.Count(out.String(), "\n") != 3 {
		t.Fatalf("expected 3 report lines: %q", out.String())
	}
}

func TestBlobMirrorWritesSequencedObjects(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	m := NewBlobMirror(store, "bench", "t1-1700000000")
	rec, err := New(io.Discard, WithMirror(m))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 2; i++ {
		r := NewResult("sqlite-jsonb", "t1")
		r.SetQuery(QueryByRSID, time.Millisecond)
		if err := rec.Record(ctx, r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	list, err := store.List(ctx, "bench/t1-1700000000/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "bench/t1-1700000000/000001.csv" || list[1].Key != m.Key(2) {
		t.Fatalf("unexpected objects %+v", list)
	}
	_, rc, err := store.Get(ctx, list[1].Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	rows, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "version" || rows[1][1] != "sqlite-jsonb" {
		t.Fatalf("unexpected object content %v", rows)
	}
}

func TestBlobMirrorReportsCollisions(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMockS3ForTests()
	first := NewBlobMirror(store, "p", "run")
	second := NewBlobMirror(store, "p", "run")
	if err := first.Mirror(ctx, Header(), NewResult("m", "t").Row()); err != nil {
		t.Fatalf("first mirror: %v", err)
	}
	err := second.Mirror(ctx, Header(), NewResult("m", "t").Row())
	if !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestMetricsObserveAndWrite(t *testing.T) {
	m := NewMetrics()
	r := NewResult("pgsql-Idx", "t")
	r.SetIndex(IndexRSID, 10*time.Millisecond)
	r.SetIndex(IndexGene, 20*time.Millisecond)
	r.SetCount(CountLoci, 5)
	r.Compute()
	m.Observe(r)
	if n := testutil.CollectAndCount(m.indexes); n != 2 {
		t.Fatalf("expected 2 index series, got %d", n)
	}
	if n := testutil.CollectAndCount(m.phases); n != 0 {
		t.Fatalf("expected no phase series, got %d", n)
	}
	if got := testutil.ToFloat64(m.rows.WithLabelValues("total_loci")); got != 5 {
		t.Fatalf("rows counter = %v", got)
	}
	path := filepath.Join(t.TempDir(), "snpbench.prom")
	if err := m.WriteFile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(b), "snpbench_index_build_seconds_bucket") {
		t.Fatalf("textfile missing histogram:\n%s", b)
	}
}
