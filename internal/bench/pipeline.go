package bench

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"snpbench/internal/report"
	"snpbench/internal/store"
)

// Pipeline runs a complete benchmark against one database.
type Pipeline struct {
	db      *sql.DB
	dialect store.Dialect
	catalog store.Catalog
	opts    Options
	rec     Recorder
	log     *slog.Logger
}

// Summary describes a finished run.
type Summary struct {
	Partitions   int
	Observations []Observation
}

// NewPipeline validates opts and resolves the dialect's catalog.
func NewPipeline(db *sql.DB, d store.Dialect, opts Options, rec Recorder, log *slog.Logger) (*Pipeline, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	cat, err := d.Catalog(opts.Layout)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{db: db, dialect: d, catalog: cat, opts: opts, rec: rec, log: log}, nil
}

// Label is the report method name of partition loads, e.g. "pgsql-jsonb".
func (p *Pipeline) Label() string { return p.opts.Layout.Label(p.dialect.Name()) }

func (p *Pipeline) exec(ctx context.Context, stmts []string) error {
	ctx, cancel := p.opts.phase(ctx)
	defer cancel()
	return execAll(ctx, p.db, stmts)
}

// Run creates the schema, loads every partition with integrity checks off,
// restores the checks, then optionally builds indexes, runs the query
// battery and the gene sweep.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	label := p.Label()
	if err := p.exec(ctx, p.catalog.Schema); err != nil {
		return sum, fmt.Errorf("create schema: %w", err)
	}
	p.log.Info("turning off key checks")
	if err := p.exec(ctx, p.catalog.DisableChecks); err != nil {
		return sum, fmt.Errorf("disable checks: %w", err)
	}
	checksOff := true
	defer func() {
		if !checksOff {
			return
		}
		if err := execAll(context.WithoutCancel(ctx), p.db, p.catalog.EnableChecks); err != nil {
			p.log.Warn("restore key checks", "err", err)
		}
	}()

	loader := NewLoader(p.db, p.dialect, p.catalog, p.opts, p.log)
	for _, part := range p.opts.Partitions {
		p.log.Info("loading partition", "partition", part, "method", p.opts.Method)
		res := report.NewResult(label, p.opts.Tag)
		res.Partition = part
		if err := loader.LoadPartition(ctx, part, res); err != nil {
			return sum, err
		}
		if err := p.rec.Record(ctx, res); err != nil {
			return sum, err
		}
		sum.Partitions++
	}

	p.log.Info("turning on key checks")
	if err := p.exec(ctx, p.catalog.EnableChecks); err != nil {
		return sum, fmt.Errorf("enable checks: %w", err)
	}
	checksOff = false
	if err := p.exec(ctx, p.catalog.PostLoad); err != nil {
		return sum, fmt.Errorf("post-load: %w", err)
	}

	if p.opts.Indexes {
		res := report.NewResult(label+"-Idx", p.opts.Tag)
		if err := NewIndexBuilder(p.db, p.catalog, p.opts, p.log).Build(ctx, res); err != nil {
			return sum, err
		}
		if err := p.rec.Record(ctx, res); err != nil {
			return sum, err
		}
	}

	runner := NewQueryRunner(p.db, p.catalog, p.opts, p.log)
	if p.opts.Queries {
		obs, err := runner.Battery(ctx, label, p.rec)
		sum.Observations = obs
		if err != nil {
			return sum, err
		}
	}
	if p.opts.Sweep {
		if err := runner.Sweep(ctx, label, p.rec); err != nil {
			return sum, err
		}
	}
	return sum, nil
}
