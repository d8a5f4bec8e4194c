// Command snpbench loads dbSNP chromosome extracts into a relational engine
// under a chosen schema strategy and insertion method, optionally builds
// indexes and runs the query battery, and records every timing in a results
// file.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"snpbench/internal/bench"
	"snpbench/internal/blob"
	"snpbench/internal/config"
	"snpbench/internal/infra/persistence/postgres"
	"snpbench/internal/infra/persistence/sqlite"
	"snpbench/internal/report"
	"snpbench/internal/store"
)

var (
	exitFunc = os.Exit
	now      = time.Now
)

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, os.Environ(), stderr)
	if err != nil {
		// flag has already printed usage for its own errors
		if _, writeErr := fmt.Fprintf(stderr, "Configuration error: %v\n", err); writeErr != nil {
			return 2
		}
		return 2
	}
	if err := cfg.Validate(); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "Invalid configuration: %v\n", err); writeErr != nil {
			return 2
		}
		return 2
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, stdout, log); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "Run failed: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	if _, writeErr := fmt.Fprintln(stdout, "Run complete."); writeErr != nil {
		return 1
	}
	return 0
}

// run executes one configured benchmark. cfg must be valid.
func run(ctx context.Context, cfg config.Config, stdout io.Writer, log *slog.Logger) (err error) {
	opts, err := cfg.Bench()
	if err != nil {
		return err
	}
	db, dialect, err := openEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()

	label := opts.Layout.Label(dialect.Name())
	metrics := report.NewMetrics()
	recOpts := []report.Option{report.WithTerminal(stdout), report.WithMetrics(metrics), report.WithLogger(log)}
	if cfg.MirrorDriver != "" {
		bs, err := blob.Open(ctx, cfg.Blob())
		if err != nil {
			return fmt.Errorf("open result mirror: %w", err)
		}
		runID := fmt.Sprintf("%s-%d", runName(label, cfg.Tag), now().Unix())
		log.Info("mirroring results", "driver", bs.Driver(), "run", runID)
		recOpts = append(recOpts, report.WithMirror(report.NewBlobMirror(bs, cfg.MirrorPrefix, runID)))
	}
	rec, err := report.Open(cfg.ReportDir, label, cfg.Tag, recOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close results: %w", cerr)
		}
		if cfg.MetricsFile == "" {
			return
		}
		if werr := metrics.WriteFile(cfg.MetricsFile); werr != nil && err == nil {
			err = werr
		}
	}()

	p, err := bench.NewPipeline(db, dialect, opts, rec, log)
	if err != nil {
		return err
	}
	sum, err := p.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("run finished", "method", label, "partitions", sum.Partitions,
		"batteries", len(sum.Observations), "records", rec.Records(), "mirror_failures", rec.MirrorFailures())
	return nil
}

func runName(label, tag string) string {
	if tag == "" {
		return label
	}
	return label + "-" + tag
}

// openEngine opens the configured store, recreating it first when the run is
// fresh and does not resume from a later partition.
func openEngine(ctx context.Context, cfg config.Config, log *slog.Logger) (*sql.DB, store.Dialect, error) {
	recreate := cfg.Fresh && !cfg.Resuming()
	switch cfg.Driver {
	case config.DriverPostgres:
		o := postgres.Options{
			Host:          cfg.Host,
			Port:          cfg.Port,
			User:          cfg.User,
			Password:      cfg.Password,
			Database:      cfg.Database,
			AdminDatabase: cfg.AdminDatabase,
			SSLMode:       cfg.SSLMode,
		}
		if recreate {
			log.Info("recreating database", "database", cfg.Database)
			if err := postgres.Recreate(ctx, o); err != nil {
				return nil, nil, err
			}
		}
		db, err := postgres.Open(ctx, o)
		if err != nil {
			return nil, nil, err
		}
		return db, postgres.Dialect{}, nil
	case config.DriverSQLite:
		if recreate {
			log.Info("recreating database", "path", cfg.SQLitePath)
			if err := sqlite.Remove(cfg.SQLitePath); err != nil {
				return nil, nil, err
			}
		}
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, sqlite.Dialect{}, nil
	}
	return nil, nil, errors.New("unknown driver " + cfg.Driver)
}
