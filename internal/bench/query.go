package bench

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"snpbench/internal/report"
	"snpbench/internal/store"
)

// Observation holds what one iteration of the battery returned: the number
// of rows for the rsid lookup and the count for the other shapes.
type Observation map[report.QueryKind]int64

// QueryRunner times the catalog's query shapes.
type QueryRunner struct {
	db      *sql.DB
	catalog store.Catalog
	opts    Options
	log     *slog.Logger
}

// NewQueryRunner returns a runner for the queries in cat.
func NewQueryRunner(db *sql.DB, cat store.Catalog, opts Options, log *slog.Logger) *QueryRunner {
	return &QueryRunner{db: db, catalog: cat, opts: opts, log: log}
}

// RunOnce executes every query shape once against lookup, storing latencies
// on res.
func (q *QueryRunner) RunOnce(ctx context.Context, lookup store.Lookup, res *report.Result) (Observation, error) {
	obs := make(Observation, len(q.catalog.Queries))
	for _, qry := range q.catalog.Queries {
		n, d, err := q.run(ctx, qry, lookup)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", qry.Kind, err)
		}
		res.SetQuery(qry.Kind, d)
		obs[qry.Kind] = n
	}
	return obs, nil
}

// Battery runs the full battery Options.QueryIterations times, recording one
// result per iteration under "<label>-Qry<n>".
func (q *QueryRunner) Battery(ctx context.Context, label string, rec Recorder) ([]Observation, error) {
	out := make([]Observation, 0, q.opts.QueryIterations)
	for i := 1; i <= q.opts.QueryIterations; i++ {
		q.log.Info("running queries", "iteration", i)
		res := report.NewResult(fmt.Sprintf("%s-Qry%d", label, i), q.opts.Tag)
		obs, err := q.RunOnce(ctx, q.opts.Lookup, res)
		if err != nil {
			return out, err
		}
		if err := rec.Record(ctx, res); err != nil {
			return out, err
		}
		out = append(out, obs)
	}
	return out, nil
}

// Sweep times the catalog's gene sweep query for every configured gene,
// Options.SweepIterations times over. Each measurement is recorded as "<label>-QrySet<n>" tagged
// "<tag>-<gene>/<n>".
func (q *QueryRunner) Sweep(ctx context.Context, label string, rec Recorder) error {
	byGene, ok := q.catalog.SweepQuery()
	if !ok {
		return fmt.Errorf("gene sweep: %w", store.ErrUnsupported)
	}
	for i := 1; i <= q.opts.SweepIterations; i++ {
		for _, gene := range q.opts.Genes {
			q.log.Debug("sweep query", "gene", gene, "iteration", i)
			_, d, err := q.run(ctx, byGene, store.Lookup{Gene: gene})
			if err != nil {
				return fmt.Errorf("sweep %s: %w", gene, err)
			}
			res := report.NewResult(fmt.Sprintf("%s-QrySet%d", label, i), fmt.Sprintf("%s-%s/%d", q.opts.Tag, gene, i))
			res.SetQuery(report.QueryByGene, d)
			if err := rec.Record(ctx, res); err != nil {
				return err
			}
		}
	}
	return nil
}

// run executes qry and drains its result. Lookups report their row count,
// aggregates their single value.
func (q *QueryRunner) run(ctx context.Context, qry store.Query, lookup store.Lookup) (int64, time.Duration, error) {
	args, err := qry.Bind(lookup)
	if err != nil {
		return 0, 0, err
	}
	ctx, cancel := q.opts.phase(ctx)
	defer cancel()
	start := time.Now()
	rows, err := q.db.QueryContext(ctx, qry.SQL, args...)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = rows.Close() }()
	var n int64
	if qry.Kind == report.QueryByRSID {
		for rows.Next() {
			n++
		}
	} else if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, 0, err
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	return n, time.Since(start), nil
}
