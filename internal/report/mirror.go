package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path"

	"snpbench/internal/blob"
)

// Mirror forwards result rows to a remote sink.
type Mirror interface {
	Mirror(ctx context.Context, header, row []string) error
}

// BlobMirror stores every row as its own immutable CSV object (header plus
// one row) under <prefix>/<runID>/<seq>.csv.
type BlobMirror struct {
	store  blob.Store
	prefix string
	runID  string
	seq    int
}

// NewBlobMirror returns a mirror writing into store.
func NewBlobMirror(store blob.Store, prefix, runID string) *BlobMirror {
	return &BlobMirror{store: store, prefix: prefix, runID: runID}
}

// Key returns the object key used for sequence number seq.
func (m *BlobMirror) Key(seq int) string {
	return path.Join(m.prefix, m.runID, fmt.Sprintf("%06d.csv", seq))
}

// Mirror writes the next object. The sequence advances even when the write
// fails so a retry never collides with a partially written key.
func (m *BlobMirror) Mirror(ctx context.Context, header, row []string) error {
	m.seq++
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll([][]string{header, row}); err != nil {
		return err
	}
	key := m.Key(m.seq)
	_, err := m.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), blob.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"run": m.runID},
	})
	if err != nil {
		return fmt.Errorf("mirror %s: %w", key, err)
	}
	return nil
}
