// Package service implements the discovery logic of ccgraph.
//
// This package sits between the HTTP handlers / CLI and a graph store. It
// speaks domains on one side and vertex ids on the other.
//
// # Services
//
// Client wraps a repository.GraphStore with the domain codec: seed
// validation, domain/id lookups and neighbor listings.
//
// Discovery runs counted queries. For every seed it fetches the
// neighbor ids in one call (on a bounded worker pool), merges them in seed
// order, counts one connection per seed, filters by a threshold and
// returns a ranked DiscoveryResult.
//
// Intersector runs shared-neighbor queries, pushing the thresholded
// intersection down to the store. Its results carry no per-seed counts.
//
// # Event System
//
// Queries publish start, progress and completion events via EventBus;
// the server relays them to SSE clients.
//
// # Errors
//
// Store errors are wrapped and returned unchanged in kind: callers can
// match repository.ErrNotReady, repository.ErrInvalidArgument and
// *repository.TransportError with errors.Is / errors.As. Neighbor ids
// without a label are skipped and logged, not returned as errors.
package service
