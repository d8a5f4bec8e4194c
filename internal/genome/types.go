// Package genome parses the per-chromosome SNP and locus exports and assembles
// them into the record shapes the loaders insert.
package genome

// Variant is one row of a snpData file: a SNP keyed by its rsid.
type Variant struct {
	RSID       string
	Chromosome string
	HasSig     bool
}

// Locus is one row of a lociData file. RSID references the owning Variant.
type Locus struct {
	RSID    string
	MRNAAcc string
	Gene    string
	Class   string
}

// LocusEntry is a locus as embedded inside a Document.
type LocusEntry struct {
	MRNAAcc string `json:"mrna_acc"`
	Gene    string `json:"gene"`
	Class   string `json:"class"`
}

// Document is the denormalized form of a variant with all of its loci.
type Document struct {
	RSID       string       `json:"rsid"`
	Chromosome string       `json:"chr"`
	HasSig     bool         `json:"has_sig"`
	Loci       []LocusEntry `json:"loci"`
}

// Entry returns the embedded form of l.
func (l Locus) Entry() LocusEntry {
	return LocusEntry{MRNAAcc: l.MRNAAcc, Gene: l.Gene, Class: l.Class}
}

// ParseSignificance maps the clinical significance column to a flag. Only the
// empty string and the literal "false" are false; anything else is true.
func ParseSignificance(field string) bool {
	return field != "" && field != "false"
}
