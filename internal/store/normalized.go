package store

import (
	"snpbench/internal/report"
)

// Normalized insert targets shared by every engine.
var (
	VariantTable = Table{Name: "snp", Columns: []string{"rsid", "chr", "has_sig"}, Returning: []string{"id", "rsid"}}
	LocusTable   = Table{Name: "locus", Columns: []string{"mrna_acc", "gene", "class", "snp_id"}}
)

// NormalizedIndexes is the index set of the two-table layout. The layout has
// no whole-record index.
func NormalizedIndexes() []Index {
	return []Index{
		{Kind: report.IndexRSID, Name: "idx_rsid", DDL: "CREATE UNIQUE INDEX idx_rsid ON snp (rsid)"},
		{Kind: report.IndexSignificance, Name: "idx_clin", DDL: "CREATE INDEX idx_clin ON snp (has_sig)"},
		{Kind: report.IndexGene, Name: "idx_gene", DDL: "CREATE INDEX idx_gene ON locus (gene)"},
	}
}

// NormalizedQueries renders the four query shapes over the joined tables
// using ph for bind parameters. The rsid lookup is a left join so a variant
// without loci still returns its row.
func NormalizedQueries(ph func(int) string) []Query {
	byGene := "SELECT count(DISTINCT s.rsid) FROM locus l JOIN snp s ON l.snp_id = s.id WHERE l.gene = " + ph(1)
	return []Query{
		{
			Kind: report.QueryByRSID,
			SQL: "SELECT s.id, s.rsid, s.chr, s.has_sig, l.mrna_acc, l.gene, l.class " +
				"FROM snp s LEFT JOIN locus l ON l.snp_id = s.id WHERE s.rsid = " + ph(1),
			Bind: func(k Lookup) ([]any, error) { return []any{k.RSID}, nil },
		},
		{
			Kind: report.QueryBySignificance,
			SQL:  "SELECT count(*) FROM snp WHERE has_sig = TRUE",
			Bind: Args(),
		},
		{
			Kind: report.QueryByGene,
			SQL:  byGene,
			Bind: func(k Lookup) ([]any, error) { return []any{k.Gene}, nil },
		},
		{
			Kind: report.QueryByGeneSignificance,
			SQL:  byGene + " AND s.has_sig = TRUE",
			Bind: func(k Lookup) ([]any, error) { return []any{k.Gene}, nil },
		},
	}
}

// NormalizedGeneSweep counts the variants a gene touches from the locus table
// alone.
func NormalizedGeneSweep(ph func(int) string) *Query {
	return &Query{
		Kind: report.QueryByGene,
		SQL:  "SELECT count(DISTINCT l.snp_id) FROM locus l WHERE l.gene = " + ph(1),
		Bind: func(k Lookup) ([]any, error) { return []any{k.Gene}, nil },
	}
}

// DocumentTable is the document insert target.
var DocumentTable = Table{Name: "snp", Columns: []string{"jsondata"}}
