// Package repository defines the graph store abstraction for ccgraph.
//
// GraphStore is the only contract discovery code depends on. It exposes
// label/id resolution, per-vertex adjacency and thresholded shared-neighbor
// queries, each as one call. Implementations live in subpackages and in
// the adapter package:
//
// - sqlite: an embedded snapshot store on SQLite
// - memory: an in-memory adjacency store for tests and small graphs
// - adapter.RemoteStore: a store reached over HTTP
//
// # Errors
//
// ErrNotReady signals a session that is not open. *TransportError wraps a
// failed remote call; callers may match it with IsTransport. An unknown
// label is not an error: ResolveID returns -1.
package repository
