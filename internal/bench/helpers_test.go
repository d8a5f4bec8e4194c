package bench

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"snpbench/internal/genome"
	"snpbench/internal/infra/persistence/sqlite"
	"snpbench/internal/report"
	"snpbench/internal/store"
)

const (
	scenarioSNPs = "rs1\t21\tfalse\nrs2\t21\tpath\n"
	scenarioLoci = "rs1\tNM_1\tGENEA\tmissense\nrs3\tNM_2\tGENEB\tnonsense\n"
)

type memRecorder struct{ results []*report.Result }

func (m *memRecorder) Record(_ context.Context, r *report.Result) error {
	r.Compute()
	m.results = append(m.results, r)
	return nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writePartition(t *testing.T, dir, partition, snps, loci string) {
	t.Helper()
	vp, lp := genome.PartitionFiles(dir, partition)
	if err := os.WriteFile(vp, []byte(snps), 0o600); err != nil {
		t.Fatalf("write variants: %v", err)
	}
	if err := os.WriteFile(lp, []byte(loci), 0o600); err != nil {
		t.Fatalf("write loci: %v", err)
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func scenarioOptions(t *testing.T, layout store.Layout, method store.Method) Options {
	t.Helper()
	dir := t.TempDir()
	writePartition(t, dir, "21", scenarioSNPs, scenarioLoci)
	return Options{
		Layout:     layout,
		Method:     method,
		BatchSize:  DefaultBatchSize,
		DataDir:    dir,
		TempDir:    t.TempDir(),
		Partitions: []string{"21"},
		Tag:        "t",
		Lookup:     store.Lookup{RSID: "rs1", Gene: "GENEA"},
	}
}

func runPipeline(t *testing.T, db *sql.DB, d store.Dialect, opts Options) (Summary, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	p, err := NewPipeline(db, d, opts, rec, quietLogger())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return sum, rec
}

func queryInt(t *testing.T, db *sql.DB, q string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("%s: %v", q, err)
	}
	return n
}
