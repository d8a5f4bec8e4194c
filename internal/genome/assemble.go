package genome

// Assembler folds loci into per-variant documents.
type Assembler struct {
	order   []*Document
	docs    map[string]*Document
	dropped int
}

// NewAssembler returns an assembler with no documents.
func NewAssembler() *Assembler {
	return &Assembler{docs: make(map[string]*Document)}
}

// Seed starts a document for v. Seeding an rsid twice resets its document
// but keeps its position.
func (a *Assembler) Seed(v Variant) {
	doc := &Document{RSID: v.RSID, Chromosome: v.Chromosome, HasSig: v.HasSig, Loci: []LocusEntry{}}
	if existing, ok := a.docs[v.RSID]; ok {
		*existing = *doc
		return
	}
	a.docs[v.RSID] = doc
	a.order = append(a.order, doc)
}

// SeedAll seeds every variant of set in order.
func (a *Assembler) SeedAll(set *VariantSet) {
	for _, v := range set.Variants() {
		a.Seed(v)
	}
}

// Attach appends l to its variant's document. Loci for unknown variants are
// dropped and counted.
func (a *Assembler) Attach(l Locus) bool {
	doc, ok := a.docs[l.RSID]
	if !ok {
		a.dropped++
		return false
	}
	doc.Loci = append(doc.Loci, l.Entry())
	return true
}

func (a *Assembler) document(rsid string) (*Document, bool) {
	doc, ok := a.docs[rsid]
	return doc, ok
}

// Documents returns all documents in seed order.
func (a *Assembler) Documents() []*Document { return a.order }

// Len returns the number of documents.
func (a *Assembler) Len() int { return len(a.order) }

// Dropped returns the number of loci that referenced no seeded variant.
func (a *Assembler) Dropped() int { return a.dropped }
