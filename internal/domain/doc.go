// Package domain defines the value types shared by every layer of ccgraph.
//
// Domains are user-facing names ("www.example.com"); the graph store keys
// vertices by reversed-segment labels ("com.example.www") and integer
// vertex ids. ToStoreLabel and FromStoreLabel convert between the two.
//
// # Results
//
// A DiscoveryResult is immutable once built: discovered nodes ranked by
// connection count, node/seed edges, and the seed list. Accessors return
// copies. Document exposes a plain struct for encoders.
//
// # Seeds
//
// SeedPartition records which seeds resolved to vertex ids and which did
// not, keeping input order and duplicates.
package domain
