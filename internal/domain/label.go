package domain

import "strings"

// NotFound is the vertex id the store reports for an unknown label.
const NotFound VertexID = -1

// VertexID is the store-assigned integer identity of a vertex.
// Negative values mean "not found"; ids are never produced locally.
type VertexID = int64

// Normalize trims surrounding whitespace and lowercases a domain.
func Normalize(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

// ToStoreLabel converts a user-facing domain into the store's
// reversed-segment label: "www.example.com" becomes "com.example.www".
// The domain is normalized first. An empty domain maps to "".
func ToStoreLabel(domain string) string {
	return reverseSegments(Normalize(domain))
}

// FromStoreLabel converts a store label back into a user-facing domain.
// No case normalization is applied.
func FromStoreLabel(label string) string {
	return reverseSegments(label)
}

func reverseSegments(s string) string {
	if s == "" {
		return ""
	}
	parts := strings.Split(s, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}
