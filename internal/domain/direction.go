package domain

import "fmt"

// Direction selects which side of the adjacency a query walks.
type Direction string

const (
	// Backlinks follows predecessors: vertices linking to a seed.
	Backlinks Direction = "backlinks"
	// Outlinks follows successors: vertices a seed links to.
	Outlinks Direction = "outlinks"
)

// ParseDirection accepts "backlinks"/"outlinks" and the aliases
// "predecessors"/"successors", "in"/"out". Empty defaults to Backlinks.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "backlinks", "predecessors", "in":
		return Backlinks, nil
	case "outlinks", "successors", "out":
		return Outlinks, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == Backlinks || d == Outlinks
}

// Edge orients a (neighbor, seed) pair. Backlinks point from the
// neighbor to the seed, outlinks from the seed to the neighbor.
func (d Direction) Edge(neighbor, seed string) DiscoveryEdge {
	if d == Outlinks {
		return DiscoveryEdge{Source: seed, Target: neighbor}
	}
	return DiscoveryEdge{Source: neighbor, Target: seed}
}

func (d Direction) String() string {
	return string(d)
}
