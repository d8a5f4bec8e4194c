package genome

import (
	"encoding/json"
	"testing"
)

func TestAssemblerScenario(t *testing.T) {
	a := NewAssembler()
	a.Seed(Variant{RSID: "rs1", Chromosome: "21"})
	a.Seed(Variant{RSID: "rs2", Chromosome: "21", HasSig: true})
	if !a.Attach(Locus{RSID: "rs1", MRNAAcc: "NM_1", Gene: "GENEA", Class: "missense"}) {
		t.Fatalf("expected rs1 locus attached")
	}
	if a.Attach(Locus{RSID: "rs3", MRNAAcc: "NM_2", Gene: "GENEB", Class: "nonsense"}) {
		t.Fatalf("expected rs3 locus dropped")
	}
	if a.Len() != 2 || a.Dropped() != 1 {
		t.Fatalf("expected 2 documents and 1 drop, got %d/%d", a.Len(), a.Dropped())
	}
	rs1, _ := a.document("rs1")
	rs2, _ := a.document("rs2")
	if len(rs1.Loci) != 1 || len(rs2.Loci) != 0 {
		t.Fatalf("unexpected loci counts %d %d", len(rs1.Loci), len(rs2.Loci))
	}
}

func TestDocumentEmptyLociMarshalsAsArray(t *testing.T) {
	a := NewAssembler()
	a.Seed(Variant{RSID: "rs2", Chromosome: "21", HasSig: true})
	doc, _ := a.document("rs2")
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"rsid":"rs2","chr":"21","has_sig":true,"loci":[]}`
	if string(b) != want {
		t.Fatalf("want %s got %s", want, b)
	}
}

func TestAssemblerReseedKeepsPosition(t *testing.T) {
	a := NewAssembler()
	a.Seed(Variant{RSID: "rs1"})
	a.Seed(Variant{RSID: "rs2"})
	a.Attach(Locus{RSID: "rs1", Gene: "G"})
	a.Seed(Variant{RSID: "rs1", HasSig: true})
	docs := a.Documents()
	if len(docs) != 2 || docs[0].RSID != "rs1" || !docs[0].HasSig || len(docs[0].Loci) != 0 {
		t.Fatalf("unexpected documents %+v", docs)
	}
}
