package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// FileName returns the report file name for a method label and run tag.
func FileName(method, tag string) string {
	return fmt.Sprintf("results-%s-%s.txt", method, tag)
}

// Recorder appends results to the report file as they are produced. Every
// record is flushed before Record returns so a crashed run keeps its rows.
type Recorder struct {
	out     io.Writer
	csv     *csv.Writer
	mirror  Mirror
	metrics *Metrics
	term    io.Writer
	log     *slog.Logger

	records        int
	mirrorFailures int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMirror forwards every row to m. Mirror errors are logged and counted.
func WithMirror(m Mirror) Option { return func(r *Recorder) { r.mirror = m } }

// WithMetrics folds every result into m.
func WithMetrics(m *Metrics) Option { return func(r *Recorder) { r.metrics = m } }

// WithTerminal prints a one-line summary of each result to w.
func WithTerminal(w io.Writer) Option { return func(r *Recorder) { r.term = w } }

// WithLogger sets the logger used for mirror failures.
func WithLogger(l *slog.Logger) Option { return func(r *Recorder) { r.log = l } }

// Open creates (or truncates) the report file for method and tag under dir
// and writes the header.
func Open(dir, method, tag string, opts ...Option) (*Recorder, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, FileName(method, tag)))
	if err != nil {
		return nil, fmt.Errorf("create report file: %w", err)
	}
	rec, err := New(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return rec, nil
}

// New writes the header to w and returns a recorder appending to it. If w is
// an io.Closer, Close closes it.
func New(w io.Writer, opts ...Option) (*Recorder, error) {
	r := &Recorder{out: w, csv: csv.NewWriter(w), log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.write(Header()); err != nil {
		return nil, fmt.Errorf("write report header: %w", err)
	}
	return r, nil
}

func (r *Recorder) write(fields []string) error {
	if err := r.csv.Write(fields); err != nil {
		return err
	}
	r.csv.Flush()
	return r.csv.Error()
}

// Record computes r's durations and appends it. Only a local write failure
// is returned.
func (r *Recorder) Record(ctx context.Context, res *Result) error {
	res.Compute()
	row := res.Row()
	if err := r.write(row); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	r.records++
	if r.term != nil {
		fmt.Fprintln(r.term, res.Term())
	}
	if r.metrics != nil {
		r.metrics.Observe(res)
	}
	if r.mirror != nil {
		if err := r.mirror.Mirror(ctx, Header(), row); err != nil {
			r.mirrorFailures++
			if r.metrics != nil {
				r.metrics.MirrorFailed()
			}
			r.log.Warn("mirror result failed", "method", res.Method, "partition", res.Partition, "err", err)
		}
	}
	return nil
}

// Records returns the number of results written.
func (r *Recorder) Records() int { return r.records }

// MirrorFailures returns the number of rows the mirror rejected.
func (r *Recorder) MirrorFailures() int { return r.mirrorFailures }

// Close flushes the report and closes the underlying file when it has one.
func (r *Recorder) Close() error {
	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		return err
	}
	if c, ok := r.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
