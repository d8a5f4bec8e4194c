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

// IndexBuilder creates the catalog's indexes in order, timing each one.
type IndexBuilder struct {
	db      *sql.DB
	indexes []store.Index
	opts    Options
	log     *slog.Logger
}

// NewIndexBuilder returns a builder for the indexes in cat.
func NewIndexBuilder(db *sql.DB, cat store.Catalog, opts Options, log *slog.Logger) *IndexBuilder {
	return &IndexBuilder{db: db, indexes: cat.Indexes, opts: opts, log: log}
}

// Build creates every index and stores its build time on res. Creating an
// index whose name already exists fails the build.
func (b *IndexBuilder) Build(ctx context.Context, res *report.Result) error {
	for _, idx := range b.indexes {
		b.log.Info("creating index", "index", idx.Name)
		d, err := b.create(ctx, idx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
		res.SetIndex(idx.Kind, d)
	}
	return nil
}

func (b *IndexBuilder) create(ctx context.Context, idx store.Index) (time.Duration, error) {
	ctx, cancel := b.opts.phase(ctx)
	defer cancel()
	start := time.Now()
	if _, err := b.db.ExecContext(ctx, idx.DDL); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
