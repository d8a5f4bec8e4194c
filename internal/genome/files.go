package genome

import (
	"fmt"
	"path/filepath"
)

const (
	variantFilePattern = "snpData-chr%s.txt"
	locusFilePattern   = "lociData-chr%s.txt"
)

// PartitionFiles returns the variant and locus file paths for a chromosome
// under dir. An empty dir resolves against the working directory.
func PartitionFiles(dir, partition string) (variants, loci string) {
	variants = fmt.Sprintf(variantFilePattern, partition)
	loci = fmt.Sprintf(locusFilePattern, partition)
	if dir == "" {
		return variants, loci
	}
	return filepath.Join(dir, variants), filepath.Join(dir, loci)
}
