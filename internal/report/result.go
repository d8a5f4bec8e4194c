// Package report records benchmark observations and writes them to the
// results file, an optional remote mirror, and Prometheus metrics.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatVersion is written into every row so result files from different
// loader revisions can be told apart.
const FormatVersion = "3.0"

// Phase identifies a timed stage of a partition load.
type Phase int

const (
	PhaseSnpLoad Phase = iota
	PhaseSnpInsert
	PhaseLociLoad
	PhaseLociInsert
	PhaseDocWrite
	PhaseDocInsert
	numPhases
)

var phaseNames = [numPhases]string{"snp_load", "snp_insert", "loci_load", "loci_insert", "doc_write", "doc_insert"}

func (p Phase) String() string { return phaseNames[p] }

// Count identifies a row counter.
type Count int

const (
	CountSnps Count = iota
	CountLoci
	CountDocuments
	CountSkippedSnps
	CountSkippedLoci
	CountDroppedLoci
	numCounts
)

var countNames = [numCounts]string{"total_snps", "total_loci", "total_documents", "skipped_snps", "skipped_loci", "dropped_loci"}

func (c Count) String() string { return countNames[c] }

// IndexKind identifies one of the fixed post-load indexes.
type IndexKind int

const (
	IndexRSID IndexKind = iota
	IndexSignificance
	IndexGene
	IndexFull
	numIndexes
)

var indexNames = [numIndexes]string{"idx_rsid", "idx_clinsig", "idx_gene", "idx_full"}

func (k IndexKind) String() string { return indexNames[k] }

// QueryKind identifies one of the four benchmark query shapes.
type QueryKind int

const (
	QueryByRSID QueryKind = iota
	QueryBySignificance
	QueryByGene
	QueryByGeneSignificance
	numQueries
)

var queryNames = [numQueries]string{"qry_by_rsid", "qry_by_clinsig", "qry_by_gene", "qry_by_gene_sig"}

func (k QueryKind) String() string { return queryNames[k] }

type span struct {
	start time.Time
	end   time.Time
}

// Result is one observation: a partition load, an index pass, or a query
// iteration. Phase spans are captured with Begin/End and turned into
// durations by Compute.
type Result struct {
	Method    string
	Tag       string
	Partition string

	spans   [numPhases]span
	elapsed [numPhases]time.Duration
	counts  [numCounts]int
	indexes [numIndexes]time.Duration
	queries [numQueries]time.Duration
	now     func() time.Time
}

// NewResult returns a result using the wall clock.
func NewResult(method, tag string) *Result {
	return &Result{Method: method, Tag: tag, now: time.Now}
}

// Begin stamps the start of p, discarding any earlier end stamp.
func (r *Result) Begin(p Phase) {
	r.spans[p] = span{start: r.now()}
}

// End stamps the end of p.
func (r *Result) End(p Phase) {
	r.spans[p].end = r.now()
}

// SetCount stores n for c.
func (r *Result) SetCount(c Count, n int) { r.counts[c] = n }

// Count returns the stored value for c.
func (r *Result) Count(c Count) int { return r.counts[c] }

// SetIndex stores the build time of k.
func (r *Result) SetIndex(k IndexKind, d time.Duration) { r.indexes[k] = d }

// Index returns the build time of k.
func (r *Result) Index(k IndexKind) time.Duration { return r.indexes[k] }

// SetQuery stores the latency of k.
func (r *Result) SetQuery(k QueryKind, d time.Duration) { r.queries[k] = d }

// Query returns the latency of k.
func (r *Result) Query(k QueryKind) time.Duration { return r.queries[k] }

// Elapsed returns the computed duration of p. Call Compute first.
func (r *Result) Elapsed(p Phase) time.Duration { return r.elapsed[p] }

// Compute derives phase durations from the captured spans. Phases that were
// never started or never finished report zero.
func (r *Result) Compute() {
	for p := range r.spans {
		s := r.spans[p]
		if s.start.IsZero() || s.end.IsZero() || s.end.Before(s.start) {
			r.elapsed[p] = 0
			continue
		}
		r.elapsed[p] = s.end.Sub(s.start)
	}
}

// Header returns the column names of Row.
func Header() []string {
	cols := []string{"version", "method", "tag", "partition"}
	for _, name := range phaseNames {
		cols = append(cols, name+"_s")
	}
	cols = append(cols, countNames[:]...)
	for _, name := range indexNames {
		cols = append(cols, name+"_s")
	}
	for _, name := range queryNames {
		cols = append(cols, name+"_s")
	}
	return cols
}

// Row renders the result as report fields aligned with Header.
func (r *Result) Row() []string {
	row := make([]string, 0, 4+int(numPhases)+int(numCounts)+int(numIndexes)+int(numQueries))
	row = append(row, FormatVersion, r.Method, r.Tag, r.Partition)
	for _, d := range r.elapsed {
		row = append(row, seconds(d))
	}
	for _, n := range r.counts {
		row = append(row, strconv.Itoa(n))
	}
	for _, d := range r.indexes {
		row = append(row, seconds(d))
	}
	for _, d := range r.queries {
		row = append(row, seconds(d))
	}
	return row
}

// Term renders a one-line terminal summary listing only the populated fields.
func (r *Result) Term() string {
	var b strings.Builder
	b.WriteString(r.Method)
	if r.Partition != "" {
		fmt.Fprintf(&b, " chr%s", r.Partition)
	}
	if r.Tag != "" {
		fmt.Fprintf(&b, " [%s]", r.Tag)
	}
	for p, d := range r.elapsed {
		if d > 0 {
			fmt.Fprintf(&b, " %s=%ss", phaseNames[p], seconds(d))
		}
	}
	for c, n := range r.counts {
		if n > 0 {
			fmt.Fprintf(&b, " %s=%d", countNames[c], n)
		}
	}
	for k, d := range r.indexes {
		if d > 0 {
			fmt.Fprintf(&b, " %s=%ss", indexNames[k], seconds(d))
		}
	}
	for k, d := range r.queries {
		if d > 0 {
			fmt.Fprintf(&b, " %s=%ss", queryNames[k], seconds(d))
		}
	}
	return b.String()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
