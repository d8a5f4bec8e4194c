package config

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"snpbench/internal/blob"
	"snpbench/internal/store"
)

// noDotenv points the loader at a file that does not exist so a stray .env
// in the package directory cannot leak into the test.
func noDotenv(t *testing.T, environ ...string) []string {
	t.Helper()
	return append(environ, EnvFileVar+"="+filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, noDotenv(t), io.Discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Driver != DriverPostgres || cfg.Database != "snp_research" || cfg.Port != 5432 {
		t.Fatalf("unexpected connection defaults %+v", cfg)
	}
	if cfg.BatchSize != 10000 || cfg.QueryIterations != 10 || cfg.SweepIterations != 10 {
		t.Fatalf("unexpected run defaults %+v", cfg)
	}
	if cfg.RSID != "rs8788" || cfg.Gene != "GRIN2B" {
		t.Fatalf("unexpected lookup defaults %q %q", cfg.RSID, cfg.Gene)
	}
	if len(cfg.Genes) != 18 || cfg.Genes[0] != "ACSL6" || cfg.Genes[17] != "DRD2" {
		t.Fatalf("unexpected gene list %v", cfg.Genes)
	}
	if cfg.S3.Region != "us-east-1" || !cfg.Fresh || cfg.MirrorDriver != "" {
		t.Fatalf("unexpected mirror defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), "bench.env")
	content := strings.Join([]string{
		"SNPBENCH_TAG=from-file",
		"SNPBENCH_BATCH_SIZE=500",
		"SNPBENCH_MODE=document",
		"SNPBENCH_S3_BUCKET=results",
		"",
	}, "\n")
	if err := os.WriteFile(dotenv, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	environ := []string{
		EnvFileVar + "=" + dotenv,
		"SNPBENCH_BATCH_SIZE=700",
		"SNPBENCH_GENES=APOE, BRCA1 ,",
		"SNPBENCH_OP_TIMEOUT=90s",
		"UNRELATED",
	}
	cfg, err := Load([]string{"-tag", "from-flag", "-jsonb"}, environ, io.Discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tag != "from-flag" {
		t.Fatalf("flag should win over dotenv, got %q", cfg.Tag)
	}
	if cfg.BatchSize != 700 {
		t.Fatalf("environment should win over dotenv, got %d", cfg.BatchSize)
	}
	if cfg.Mode != "document" || !cfg.JSONB || cfg.S3.Bucket != "results" {
		t.Fatalf("dotenv values missing %+v", cfg)
	}
	if !slices.Equal(cfg.Genes, []string{"APOE", "BRCA1"}) {
		t.Fatalf("unexpected genes %v", cfg.Genes)
	}
	if cfg.OpTimeout != 90*time.Second {
		t.Fatalf("unexpected timeout %v", cfg.OpTimeout)
	}
	layout, err := cfg.Layout()
	if err != nil || layout != store.Document(true) {
		t.Fatalf("unexpected layout %+v %v", layout, err)
	}
}

func TestLoadGenesFlag(t *testing.T) {
	cfg, err := Load([]string{"-genes", "APOE, ,BRCA1"}, noDotenv(t), io.Discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(cfg.Genes, []string{"APOE", "BRCA1"}) {
		t.Fatalf("unexpected genes %v", cfg.Genes)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load([]string{"-nope"}, noDotenv(t), io.Discard); err == nil {
		t.Fatalf("expected unknown flag error")
	}
	if _, err := Load([]string{"-h"}, noDotenv(t), io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected flag.ErrHelp, got %v", err)
	}
	if _, err := Load([]string{"extra"}, noDotenv(t), io.Discard); err == nil {
		t.Fatalf("expected positional argument error")
	}
	if _, err := Load(nil, noDotenv(t, "SNPBENCH_BATCH_SIZE=lots"), io.Discard); err == nil {
		t.Fatalf("expected parse error for non-numeric batch size")
	}
	if _, err := Load(nil, []string{EnvFileVar + "=" + t.TempDir()}, io.Discard); err == nil {
		t.Fatalf("expected error reading a directory as dotenv")
	}
}

func TestValidate(t *testing.T) {
	base, err := Load(nil, noDotenv(t), io.Discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := map[string]func(*Config){
		"driver":       func(c *Config) { c.Driver = "oracle" },
		"mode":         func(c *Config) { c.Mode = "graph" },
		"method":       func(c *Config) { c.Method = "stream" },
		"bulk":         func(c *Config) { c.Method = "bulk" },
		"batch":        func(c *Config) { c.BatchSize = 0 },
		"start":        func(c *Config) { c.Start = "23" },
		"mirror":       func(c *Config) { c.MirrorDriver = "gsheet" },
		"s3 bucket":    func(c *Config) { c.MirrorDriver = "s3"; c.S3.Bucket = "" },
		"log level":    func(c *Config) { c.LogLevel = "loud" },
		"bulk in mode": func(c *Config) { c.Mode = "NORMALIZED"; c.Method = "Bulk" },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	ok := base
	ok.Mode, ok.Method, ok.MirrorDriver = "document", "bulk", "fs"
	if err := ok.Validate(); err != nil {
		t.Fatalf("document bulk with fs mirror should validate: %v", err)
	}
	ok.Dev, ok.Start = true, "bogus"
	if err := ok.Validate(); err != nil {
		t.Fatalf("dev mode ignores start: %v", err)
	}
}

func TestPartitions(t *testing.T) {
	c := Config{Start: "1"}
	if got := c.Partitions(); len(got) != 25 || got[0] != "1" || got[24] != "MT" {
		t.Fatalf("unexpected full sequence %v", got)
	}
	if c.Resuming() {
		t.Fatalf("start 1 is not a resume")
	}
	c.Start = "X"
	if got := c.Partitions(); !slices.Equal(got, []string{"X", "Y", "MT"}) {
		t.Fatalf("unexpected suffix %v", got)
	}
	if !c.Resuming() {
		t.Fatalf("start X resumes")
	}
	c.Dev = true
	if got := c.Partitions(); !slices.Equal(got, []string{"21"}) {
		t.Fatalf("dev mode loads only chromosome 21, got %v", got)
	}
	if (Config{Start: "0"}).Partitions() != nil {
		t.Fatalf("unknown start should yield no partitions")
	}
	got := Config{Start: "22"}.Partitions()
	got[0] = "changed"
	if Chromosomes[21] != "22" {
		t.Fatalf("Partitions must not alias the canonical order")
	}
}

func TestDerivedSettings(t *testing.T) {
	cfg, err := Load([]string{
		"-mode", "document", "-method", "batch", "-batch-size", "25",
		"-rsid", "rs1", "-gene", "APOE", "-queries", "-start", "22",
		"-mirror", "s3", "-s3-bucket", "bench", "-s3-path-style",
		"-log-level", "debug",
	}, noDotenv(t), io.Discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	opts, err := cfg.Bench()
	if err != nil {
		t.Fatalf("bench options: %v", err)
	}
	if opts.Layout != store.Document(false) || opts.Method != store.MethodBatch || opts.BatchSize != 25 {
		t.Fatalf("unexpected load options %+v", opts)
	}
	if opts.Lookup != (store.Lookup{RSID: "rs1", Gene: "APOE"}) || !opts.Queries {
		t.Fatalf("unexpected query options %+v", opts)
	}
	if !slices.Equal(opts.Partitions, []string{"22", "X", "Y", "MT"}) {
		t.Fatalf("unexpected partitions %v", opts.Partitions)
	}
	bc := cfg.Blob()
	if bc.Driver != blob.DriverS3 || bc.S3.Bucket != "bench" || !bc.S3.PathStyle {
		t.Fatalf("unexpected blob config %+v", bc)
	}
	if lvl, err := cfg.Level(); err != nil || lvl != slog.LevelDebug {
		t.Fatalf("unexpected level %v %v", lvl, err)
	}
}
