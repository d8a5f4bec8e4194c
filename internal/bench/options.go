// Package bench drives the benchmark: it loads partitions through a store
// layout, builds the index set, runs the query battery and hands every
// observation to a recorder.
package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"snpbench/internal/report"
	"snpbench/internal/store"
)

// DefaultBatchSize is the record count per multi-row insert.
const DefaultBatchSize = 10000

// Options configures one benchmark run.
type Options struct {
	Layout     store.Layout
	Method     store.Method
	BatchSize  int
	DataDir    string
	TempDir    string // bulk files are created here
	Partitions []string
	Tag        string

	Indexes         bool
	Queries         bool
	QueryIterations int
	Lookup          store.Lookup

	Sweep           bool
	SweepIterations int
	Genes           []string

	// OpTimeout bounds each store phase; zero means no bound.
	OpTimeout time.Duration
}

func (o Options) validate() error {
	if err := o.Layout.Validate(o.Method); err != nil {
		return err
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if o.Queries && o.QueryIterations < 1 {
		return errors.New("query iterations must be positive")
	}
	if o.Sweep && o.SweepIterations < 1 {
		return errors.New("sweep iterations must be positive")
	}
	if o.OpTimeout < 0 {
		return errors.New("operation timeout must not be negative")
	}
	return nil
}

func (o Options) phase(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.OpTimeout > 0 {
		return context.WithTimeout(ctx, o.OpTimeout)
	}
	return context.WithCancel(ctx)
}

// Recorder receives every observation.
type Recorder interface {
	Record(ctx context.Context, r *report.Result) error
}
