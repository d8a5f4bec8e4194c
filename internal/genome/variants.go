package genome

// VariantSet holds one partition's variants in file order, addressable by
// rsid, along with the identity the store assigned to each.
type VariantSet struct {
	order []Variant
	ids   []int64
	index map[string]int
}

// NewVariantSet returns an empty set.
func NewVariantSet() *VariantSet {
	return &VariantSet{index: make(map[string]int)}
}

// Add inserts v. A repeated rsid replaces the earlier row in place.
func (s *VariantSet) Add(v Variant) {
	if i, ok := s.index[v.RSID]; ok {
		s.order[i] = v
		return
	}
	s.index[v.RSID] = len(s.order)
	s.order = append(s.order, v)
	s.ids = append(s.ids, 0)
}

// Len returns the number of distinct variants.
func (s *VariantSet) Len() int { return len(s.order) }

// Variants returns the variants in first-seen order. The slice is shared.
func (s *VariantSet) Variants() []Variant { return s.order }

// SetID records the store-generated identity for rsid.
func (s *VariantSet) SetID(rsid string, id int64) bool {
	i, ok := s.index[rsid]
	if !ok {
		return false
	}
	s.ids[i] = id
	return true
}

// ID returns the identity captured for rsid, or 0 when none was.
func (s *VariantSet) ID(rsid string) int64 {
	i, ok := s.index[rsid]
	if !ok {
		return 0
	}
	return s.ids[i]
}
