package domain

// SeedPartition splits caller-supplied seeds into those the store knows
// and those it does not. Both lists hold normalized domains in input
// order; duplicates are kept.
type SeedPartition struct {
	Valid   []string   `json:"found"`
	Missing []string   `json:"missing"`
	IDs     []VertexID `json:"-"` // parallel to Valid
}

// NewSeedPartition returns a partition with empty, non-nil lists.
func NewSeedPartition() *SeedPartition {
	return &SeedPartition{
		Valid:   []string{},
		Missing: []string{},
		IDs:     []VertexID{},
	}
}

// Add records one resolved seed. Negative ids go to Missing.
func (p *SeedPartition) Add(domain string, id VertexID) {
	if id < 0 {
		p.Missing = append(p.Missing, domain)
		return
	}
	p.Valid = append(p.Valid, domain)
	p.IDs = append(p.IDs, id)
}

// Empty reports whether no seed resolved.
func (p *SeedPartition) Empty() bool {
	return len(p.Valid) == 0
}

// IDSet returns the resolved ids as a set.
func (p *SeedPartition) IDSet() map[VertexID]struct{} {
	set := make(map[VertexID]struct{}, len(p.IDs))
	for _, id := range p.IDs {
		set[id] = struct{}{}
	}
	return set
}

// UniqueSeeds normalizes seeds and drops repeats, keeping the first
// occurrence. Empty strings are dropped.
func UniqueSeeds(seeds []string) []string {
	seen := make(map[string]struct{}, len(seeds))
	out := make([]string, 0, len(seeds))
	for _, s := range seeds {
		n := Normalize(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
