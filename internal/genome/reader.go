package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	variantFields = 3
	locusFields   = 4

	maxLineBytes = 1 << 20
)

// tabRows yields lines split on tabs with exactly want fields. Quotes carry no
// meaning. Lines with any other field count are counted and skipped; blank
// lines are ignored.
type tabRows struct {
	sc      *bufio.Scanner
	want    int
	rec     []string
	skipped int
	err     error
}

func newTabRows(r io.Reader, want int) *tabRows {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &tabRows{sc: sc, want: want}
}

func (t *tabRows) next() bool {
	if t.err != nil {
		return false
	}
	for t.sc.Scan() {
		line := strings.TrimSuffix(t.sc.Text(), "\r")
		if line == "" {
			continue
		}
		rec := strings.Split(line, "\t")
		if len(rec) != t.want {
			t.skipped++
			continue
		}
		t.rec = rec
		return true
	}
	t.err = t.sc.Err()
	return false
}

// VariantReader streams Variants from a snpData file.
type VariantReader struct {
	rows *tabRows
	cur  Variant
}

// NewVariantReader returns a reader over tab-delimited variant rows.
func NewVariantReader(r io.Reader) *VariantReader {
	return &VariantReader{rows: newTabRows(r, variantFields)}
}

// Next advances to the next well-formed row.
func (vr *VariantReader) Next() bool {
	if !vr.rows.next() {
		return false
	}
	rec := vr.rows.rec
	vr.cur = Variant{RSID: rec[0], Chromosome: rec[1], HasSig: ParseSignificance(rec[2])}
	return true
}

// Variant returns the row read by the last call to Next.
func (vr *VariantReader) Variant() Variant { return vr.cur }

// Skipped reports how many malformed rows have been passed over.
func (vr *VariantReader) Skipped() int { return vr.rows.skipped }

// Err returns the first non-format error encountered.
func (vr *VariantReader) Err() error { return vr.rows.err }

// LocusReader streams Loci from a lociData file.
type LocusReader struct {
	rows *tabRows
	cur  Locus
}

// NewLocusReader returns a reader over tab-delimited locus rows.
func NewLocusReader(r io.Reader) *LocusReader {
	return &LocusReader{rows: newTabRows(r, locusFields)}
}

// Next advances to the next well-formed row.
func (lr *LocusReader) Next() bool {
	if !lr.rows.next() {
		return false
	}
	rec := lr.rows.rec
	lr.cur = Locus{RSID: rec[0], MRNAAcc: rec[1], Gene: rec[2], Class: rec[3]}
	return true
}

// Locus returns the row read by the last call to Next.
func (lr *LocusReader) Locus() Locus { return lr.cur }

// Skipped reports how many malformed rows have been passed over.
func (lr *LocusReader) Skipped() int { return lr.rows.skipped }

// Err returns the first non-format error encountered.
func (lr *LocusReader) Err() error { return lr.rows.err }

// ReadVariantFile loads every well-formed variant in path into a new set and
// returns the number of malformed rows skipped.
func ReadVariantFile(path string) (*VariantSet, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open variant file: %w", err)
	}
	defer func() { _ = f.Close() }()
	set := NewVariantSet()
	vr := NewVariantReader(f)
	for vr.Next() {
		set.Add(vr.Variant())
	}
	if err := vr.Err(); err != nil {
		return nil, vr.Skipped(), fmt.Errorf("read %s: %w", path, err)
	}
	return set, vr.Skipped(), nil
}

// EachLocus streams the locus file at path, calling fn for every well-formed
// row in file order. It returns the number of malformed rows skipped.
func EachLocus(path string, fn func(Locus)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open locus file: %w", err)
	}
	defer func() { _ = f.Close() }()
	lr := NewLocusReader(f)
	for lr.Next() {
		fn(lr.Locus())
	}
	if err := lr.Err(); err != nil {
		return lr.Skipped(), fmt.Errorf("read %s: %w", path, err)
	}
	return lr.Skipped(), nil
}
