package bench

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"snpbench/internal/genome"
	"snpbench/internal/report"
	"snpbench/internal/store"
)

// Loader loads one partition, stamping phases and counts on res.
type Loader interface {
	LoadPartition(ctx context.Context, partition string, res *report.Result) error
}

// NewLoader returns the loader for opts.Layout.
func NewLoader(db *sql.DB, d store.Dialect, cat store.Catalog, opts Options, log *slog.Logger) Loader {
	base := loaderBase{db: db, dialect: d, catalog: cat, opts: opts, log: log}
	if opts.Layout.Mode == store.ModeDocument {
		return &documentLoader{loaderBase: base}
	}
	return &normalizedLoader{loaderBase: base}
}

type loaderBase struct {
	db      *sql.DB
	dialect store.Dialect
	catalog store.Catalog
	opts    Options
	log     *slog.Logger
}

func (b loaderBase) chunk(t store.Table) int {
	if b.opts.Method == store.MethodRow {
		return 1
	}
	return store.ChunkSize(b.dialect, t, b.opts.BatchSize)
}

// readVariants parses the partition's variant file.
func (b loaderBase) readVariants(partition string, res *report.Result) (*genome.VariantSet, error) {
	path, _ := genome.PartitionFiles(b.opts.DataDir, partition)
	res.Begin(report.PhaseSnpLoad)
	set, skipped, err := genome.ReadVariantFile(path)
	res.End(report.PhaseSnpLoad)
	if err != nil {
		return nil, err
	}
	res.SetCount(report.CountSnps, set.Len())
	res.SetCount(report.CountSkippedSnps, skipped)
	b.log.Info("variants read", "partition", partition, "rows", set.Len(), "skipped", skipped)
	return set, nil
}

// normalizedLoader inserts variants first to learn their generated ids, then
// inserts the loci that reference a known variant.
type normalizedLoader struct {
	loaderBase
}

func (l *normalizedLoader) LoadPartition(ctx context.Context, partition string, res *report.Result) error {
	set, err := l.readVariants(partition, res)
	if err != nil {
		return err
	}

	variants := make([][]any, 0, set.Len())
	for _, v := range set.Variants() {
		variants = append(variants, []any{v.RSID, v.Chromosome, v.HasSig})
	}
	res.Begin(report.PhaseSnpInsert)
	err = l.withPhase(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return insertChunks(ctx, tx, l.dialect, l.catalog.Variants, variants, l.chunk(l.catalog.Variants), func(rows *sql.Rows) error {
			var id int64
			var rsid string
			if err := rows.Scan(&id, &rsid); err != nil {
				return err
			}
			set.SetID(rsid, id)
			return nil
		})
	})
	res.End(report.PhaseSnpInsert)
	if err != nil {
		return fmt.Errorf("partition %s variants: %w", partition, err)
	}

	_, lociPath := genome.PartitionFiles(l.opts.DataDir, partition)
	var loci [][]any
	read := 0
	res.Begin(report.PhaseLociLoad)
	skipped, err := genome.EachLocus(lociPath, func(loc genome.Locus) {
		read++
		if id := set.ID(loc.RSID); id > 0 {
			loci = append(loci, []any{loc.MRNAAcc, loc.Gene, loc.Class, id})
		}
	})
	res.End(report.PhaseLociLoad)
	if err != nil {
		return err
	}
	res.SetCount(report.CountLoci, len(loci))
	res.SetCount(report.CountSkippedLoci, skipped)
	res.SetCount(report.CountDroppedLoci, read-len(loci))
	l.log.Info("loci read", "partition", partition, "rows", len(loci), "skipped", skipped, "dropped", read-len(loci))

	res.Begin(report.PhaseLociInsert)
	err = l.withPhase(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return insertChunks(ctx, tx, l.dialect, l.catalog.Loci, loci, l.chunk(l.catalog.Loci), nil)
	})
	res.End(report.PhaseLociInsert)
	if err != nil {
		return fmt.Errorf("partition %s loci: %w", partition, err)
	}
	return nil
}

// withPhase runs fn in one transaction bounded by the operation timeout.
func (b loaderBase) withPhase(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	ctx, cancel := b.opts.phase(ctx)
	defer cancel()
	return inTx(ctx, b.db, func(tx *sql.Tx) error { return fn(ctx, tx) })
}

// documentLoader folds loci into one JSON document per variant.
type documentLoader struct {
	loaderBase
}

func (l *documentLoader) LoadPartition(ctx context.Context, partition string, res *report.Result) error {
	set, err := l.readVariants(partition, res)
	if err != nil {
		return err
	}

	_, lociPath := genome.PartitionFiles(l.opts.DataDir, partition)
	asm := genome.NewAssembler()
	asm.SeedAll(set)
	attached := 0
	res.Begin(report.PhaseLociLoad)
	skipped, err := genome.EachLocus(lociPath, func(loc genome.Locus) {
		if asm.Attach(loc) {
			attached++
		}
	})
	res.End(report.PhaseLociLoad)
	if err != nil {
		return err
	}
	res.SetCount(report.CountLoci, attached)
	res.SetCount(report.CountSkippedLoci, skipped)
	res.SetCount(report.CountDroppedLoci, asm.Dropped())
	l.log.Info("documents assembled", "partition", partition, "documents", asm.Len(), "loci", attached, "dropped", asm.Dropped())

	docs := make([]string, 0, asm.Len())
	for _, doc := range asm.Documents() {
		b, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode document %s: %w", doc.RSID, err)
		}
		docs = append(docs, string(b))
	}
	res.SetCount(report.CountDocuments, len(docs))

	if l.opts.Method == store.MethodBulk {
		return l.bulk(ctx, partition, docs, res)
	}
	records := make([][]any, len(docs))
	for i, doc := range docs {
		records[i] = []any{doc}
	}
	res.Begin(report.PhaseDocInsert)
	err = l.withPhase(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return insertChunks(ctx, tx, l.dialect, l.catalog.Documents, records, l.chunk(l.catalog.Documents), nil)
	})
	res.End(report.PhaseDocInsert)
	if err != nil {
		return fmt.Errorf("partition %s documents: %w", partition, err)
	}
	return nil
}

// bulk writes the documents to a temporary COPY file and imports it. The file
// is removed whatever the outcome.
func (l *documentLoader) bulk(ctx context.Context, partition string, docs []string, res *report.Result) error {
	res.Begin(report.PhaseDocWrite)
	path, err := writeBulkFile(l.opts.TempDir, partition, docs)
	res.End(report.PhaseDocWrite)
	if path != "" {
		defer func() {
			if rmErr := os.Remove(path); rmErr != nil {
				l.log.Warn("remove bulk file", "path", path, "err", rmErr)
			}
		}()
	}
	if err != nil {
		return fmt.Errorf("partition %s bulk file: %w", partition, err)
	}

	ctx, cancel := l.opts.phase(ctx)
	defer cancel()
	res.Begin(report.PhaseDocInsert)
	n, err := l.dialect.BulkImport(ctx, l.db, l.catalog.Documents, path)
	res.End(report.PhaseDocInsert)
	if err != nil {
		return fmt.Errorf("partition %s bulk import: %w", partition, err)
	}
	l.log.Info("bulk import", "partition", partition, "rows", n)
	return nil
}

// writeBulkFile returns the created path even on a write error so the
// caller can remove it.
func writeBulkFile(dir, partition string, docs []string) (string, error) {
	f, err := os.CreateTemp(dir, "snpbench-chr"+partition+"-*.copy")
	if err != nil {
		return "", err
	}
	path := f.Name()
	w := bufio.NewWriterSize(f, 1<<20)
	for _, doc := range docs {
		if err := store.WriteCopyLine(w, doc); err != nil {
			_ = f.Close()
			return path, err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return path, err
	}
	return path, f.Close()
}
