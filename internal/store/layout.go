// Package store describes how benchmark data is laid out in a relational
// engine: the schema strategy, the insertion method, and the per-engine
// statement catalog the loaders, index builder and query runner execute.
package store

import (
	"fmt"
	"strings"
)

// Mode is the schema strategy.
type Mode string

const (
	// ModeNormalized stores variants and loci in two tables joined by foreign key.
	ModeNormalized Mode = "normalized"
	// ModeDocument stores one JSON document per variant with its loci embedded.
	ModeDocument Mode = "document"
)

// DocType is the column type holding documents.
type DocType string

const (
	DocJSON  DocType = "json"
	DocJSONB DocType = "jsonb"
)

// Method is the insertion strategy.
type Method string

const (
	MethodRow   Method = "row"
	MethodBatch Method = "batch"
	MethodBulk  Method = "bulk"
)

// ParseMode accepts "normalized" or "document" case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNormalized, ModeDocument:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ParseMethod accepts "row", "batch" or "bulk" case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodRow, MethodBatch, MethodBulk:
		return m, nil
	}
	return "", fmt.Errorf("unknown method %q", s)
}

// Layout is a schema strategy plus, for documents, the column type.
type Layout struct {
	Mode    Mode
	DocType DocType
}

// Normalized returns the two-table layout.
func Normalized() Layout { return Layout{Mode: ModeNormalized} }

// Document returns the single-table layout using JSONB when binary is set.
func Document(binary bool) Layout {
	if binary {
		return Layout{Mode: ModeDocument, DocType: DocJSONB}
	}
	return Layout{Mode: ModeDocument, DocType: DocJSON}
}

// Validate checks the layout and that m can load it.
func (l Layout) Validate(m Method) error {
	switch l.Mode {
	case ModeNormalized:
		if m == MethodBulk {
			return fmt.Errorf("method %s requires document mode", m)
		}
	case ModeDocument:
		if l.DocType != DocJSON && l.DocType != DocJSONB {
			return fmt.Errorf("unknown document type %q", l.DocType)
		}
	default:
		return fmt.Errorf("unknown mode %q", l.Mode)
	}
	switch m {
	case MethodRow, MethodBatch, MethodBulk:
		return nil
	}
	return fmt.Errorf("unknown method %q", m)
}

// Label returns the report method label for an engine prefix, e.g. "pgsql",
// "pgsql-json" or "sqlite-jsonb".
func (l Layout) Label(engine string) string {
	if l.Mode == ModeDocument {
		return engine + "-" + string(l.DocType)
	}
	return engine
}
