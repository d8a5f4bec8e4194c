// Package config assembles the run configuration. Values come from, in
// increasing precedence, built-in defaults, a dotenv file, SNPBENCH_*
// environment variables and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"snpbench/internal/bench"
	"snpbench/internal/blob"
	"snpbench/internal/store"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "SNPBENCH_"
	// EnvFileVar names the dotenv file to read; it defaults to .env.
	EnvFileVar = EnvPrefix + "ENV_FILE"

	DriverPostgres = "pgsql"
	DriverSQLite   = "sqlite"
)

// Chromosomes is the canonical partition order.
var Chromosomes = []string{
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11",
	"12", "13", "14", "15", "16", "17", "18", "19", "20", "21", "22",
	"X", "Y", "MT",
}

// DevPartition is the only partition loaded in dev mode.
const DevPartition = "21"

// Config is built once at startup and not mutated afterwards.
type Config struct {
	Dev    bool   `env:"DEV"`
	Driver string `env:"DRIVER" envDefault:"pgsql"`

	// Postgres connection.
	Host          string `env:"HOST" envDefault:"127.0.0.1"`
	Port          int    `env:"PORT" envDefault:"5432"`
	User          string `env:"USER" envDefault:"dev"`
	Password      string `env:"PASSWORD"`
	Database      string `env:"DATABASE" envDefault:"snp_research"`
	AdminDatabase string `env:"ADMIN_DATABASE" envDefault:"postgres"`
	SSLMode       string `env:"SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"snpbench.db"`

	Mode      string `env:"MODE" envDefault:"normalized"`
	JSONB     bool   `env:"JSONB"`
	Method    string `env:"METHOD" envDefault:"row"`
	BatchSize int    `env:"BATCH_SIZE" envDefault:"10000"`
	Tag       string `env:"TAG"`
	DataPath  string `env:"DATA_PATH" envDefault:"."`
	Start     string `env:"START" envDefault:"1"`
	Fresh     bool   `env:"FRESH" envDefault:"true"`

	Indexes         bool     `env:"INDEXES"`
	Queries         bool     `env:"QUERIES"`
	QueryIterations int      `env:"QUERY_ITERATIONS" envDefault:"10"`
	RSID            string   `env:"RSID" envDefault:"rs8788"`
	Gene            string   `env:"GENE" envDefault:"GRIN2B"`
	Sweep           bool     `env:"SWEEP"`
	SweepIterations int      `env:"SWEEP_ITERATIONS" envDefault:"10"`
	Genes           []string `env:"GENES" envSeparator:"," envDefault:"ACSL6,ZDHHC8,TPH1,SYN2,DISC1,DISC2,COMT,FXYD6,ERBB4,DAOA,MEGF10,SLC18A1,DYM,SREBF2,NXRN1,CSF2RA,IL3RA,DRD2"`

	ReportDir string        `env:"REPORT_DIR" envDefault:"."`
	TempDir   string        `env:"TEMP_DIR"`
	OpTimeout time.Duration `env:"OP_TIMEOUT"`

	MirrorDriver string        `env:"MIRROR_DRIVER"`
	MirrorPrefix string        `env:"MIRROR_PREFIX" envDefault:"snpbench"`
	MirrorRoot   string        `env:"MIRROR_ROOT" envDefault:"./results-mirror"`
	S3           blob.S3Config `envPrefix:"S3_"`

	MetricsFile string `env:"METRICS_FILE"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load builds the configuration from environ (KEY=VALUE pairs, usually
// os.Environ()) and args. The dotenv file never overrides a variable already
// present in environ. Flag errors are reported on stderr.
func Load(args, environ []string, stderr io.Writer) (Config, error) {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	envFile := ".env"
	if v, ok := vars[EnvFileVar]; ok && v != "" {
		envFile = v
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}
	for k, v := range dotenv {
		if _, ok := vars[k]; !ok {
			vars[k] = v
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Genes = splitList(strings.Join(cfg.Genes, ","))
	if err := cfg.parseFlags(args, stderr); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) parseFlags(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("snpbench", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&c.Dev, "dev", c.Dev, "only load chromosome "+DevPartition)
	fs.StringVar(&c.Driver, "driver", c.Driver, "store engine: pgsql or sqlite")
	fs.StringVar(&c.Host, "host", c.Host, "postgres host")
	fs.IntVar(&c.Port, "port", c.Port, "postgres port")
	fs.StringVar(&c.User, "username", c.User, "postgres username")
	fs.StringVar(&c.Password, "password", c.Password, "postgres password")
	fs.StringVar(&c.Database, "db", c.Database, "database name")
	fs.StringVar(&c.AdminDatabase, "admin-db", c.AdminDatabase, "maintenance database used to recreate -db")
	fs.StringVar(&c.SSLMode, "sslmode", c.SSLMode, "postgres sslmode")
	fs.StringVar(&c.SQLitePath, "sqlite-path", c.SQLitePath, "sqlite database file")

	fs.StringVar(&c.Mode, "mode", c.Mode, "schema strategy: normalized or document")
	fs.BoolVar(&c.JSONB, "jsonb", c.JSONB, "store documents as jsonb")
	fs.StringVar(&c.Method, "method", c.Method, "insertion method: row, batch or bulk")
	fs.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "records per multi-row insert")
	fs.StringVar(&c.Tag, "tag", c.Tag, "tag placed in the results file")
	fs.StringVar(&c.DataPath, "path", c.DataPath, "directory holding chromosome data")
	fs.StringVar(&c.Start, "start", c.Start, "chromosome to start the load from")
	fs.BoolVar(&c.Fresh, "fresh", c.Fresh, "drop and recreate the database first")

	fs.BoolVar(&c.Indexes, "indexes", c.Indexes, "create indexes")
	fs.BoolVar(&c.Queries, "queries", c.Queries, "run queries")
	fs.IntVar(&c.QueryIterations, "query-iterations", c.QueryIterations, "query battery repetitions")
	fs.StringVar(&c.RSID, "rsid", c.RSID, "variant identifier for the rsid query")
	fs.StringVar(&c.Gene, "gene", c.Gene, "gene for the gene queries")
	fs.BoolVar(&c.Sweep, "sweep", c.Sweep, "run the gene sweep")
	fs.IntVar(&c.SweepIterations, "sweep-iterations", c.SweepIterations, "sweep repetitions per gene")
	fs.Func("genes", "comma-separated genes for the sweep", func(s string) error {
		c.Genes = splitList(s)
		return nil
	})

	fs.StringVar(&c.ReportDir, "report-dir", c.ReportDir, "directory for results files")
	fs.StringVar(&c.TempDir, "temp-dir", c.TempDir, "directory for bulk load files")
	fs.DurationVar(&c.OpTimeout, "op-timeout", c.OpTimeout, "bound on each store phase (0 disables)")

	fs.StringVar(&c.MirrorDriver, "mirror", c.MirrorDriver, "remote result mirror: fs, s3 or memory (empty disables)")
	fs.StringVar(&c.MirrorPrefix, "mirror-prefix", c.MirrorPrefix, "object key prefix for mirrored results")
	fs.StringVar(&c.MirrorRoot, "mirror-root", c.MirrorRoot, "directory for the fs mirror")
	fs.StringVar(&c.S3.Bucket, "s3-bucket", c.S3.Bucket, "S3 bucket for the s3 mirror")
	fs.StringVar(&c.S3.Region, "s3-region", c.S3.Region, "S3 region")
	fs.StringVar(&c.S3.Endpoint, "s3-endpoint", c.S3.Endpoint, "S3 endpoint override (MinIO)")
	fs.BoolVar(&c.S3.PathStyle, "s3-path-style", c.S3.PathStyle, "use path-style S3 addressing")

	fs.StringVar(&c.MetricsFile, "metrics-file", c.MetricsFile, "write prometheus metrics to this textfile")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the run cannot execute.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	layout, err := c.Layout()
	if err != nil {
		return err
	}
	method, err := store.ParseMethod(c.Method)
	if err != nil {
		return err
	}
	if err := layout.Validate(method); err != nil {
		return err
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if !c.Dev && !slices.Contains(Chromosomes, c.Start) {
		return fmt.Errorf("unknown start chromosome %q", c.Start)
	}
	switch blob.Driver(c.MirrorDriver) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.S3.Bucket == "" {
			return errors.New("s3 mirror requires a bucket")
		}
	default:
		return fmt.Errorf("unknown mirror driver %q", c.MirrorDriver)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Layout returns the schema strategy selected by Mode and JSONB.
func (c Config) Layout() (store.Layout, error) {
	mode, err := store.ParseMode(c.Mode)
	if err != nil {
		return store.Layout{}, err
	}
	if mode == store.ModeNormalized {
		return store.Normalized(), nil
	}
	return store.Document(c.JSONB), nil
}

// Partitions returns the chromosomes to load in order.
func (c Config) Partitions() []string {
	if c.Dev {
		return []string{DevPartition}
	}
	i := slices.Index(Chromosomes, c.Start)
	if i < 0 {
		return nil
	}
	return slices.Clone(Chromosomes[i:])
}

// Resuming reports whether the run continues a partial load.
func (c Config) Resuming() bool { return !c.Dev && c.Start != Chromosomes[0] }

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Blob returns the mirror store configuration.
func (c Config) Blob() blob.Config {
	return blob.Config{Driver: blob.Driver(c.MirrorDriver), Root: c.MirrorRoot, S3: c.S3}
}

// Bench translates the configuration into pipeline options. Call Validate
// first.
func (c Config) Bench() (bench.Options, error) {
	layout, err := c.Layout()
	if err != nil {
		return bench.Options{}, err
	}
	method, err := store.ParseMethod(c.Method)
	if err != nil {
		return bench.Options{}, err
	}
	return bench.Options{
		Layout:          layout,
		Method:          method,
		BatchSize:       c.BatchSize,
		DataDir:         c.DataPath,
		TempDir:         c.TempDir,
		Partitions:      c.Partitions(),
		Tag:             c.Tag,
		Indexes:         c.Indexes,
		Queries:         c.Queries,
		QueryIterations: c.QueryIterations,
		Lookup:          store.Lookup{RSID: c.RSID, Gene: c.Gene},
		Sweep:           c.Sweep,
		SweepIterations: c.SweepIterations,
		Genes:           slices.Clone(c.Genes),
		OpTimeout:       c.OpTimeout,
	}, nil
}
