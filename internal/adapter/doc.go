// Package adapter connects the discovery service to graph stores that live
// in another process.
//
// # Protocol
//
// Every repository.GraphStore method maps to exactly one HTTP request
// against a store endpoint:
//
//	POST /v1/resolve-id            {"label": "..."}      -> {"id": n}
//	POST /v1/resolve-label         {"id": n}             -> {"label": "...", "found": true}
//	POST /v1/predecessors?id=n                           -> bulk frame
//	POST /v1/successors?id=n                             -> bulk frame
//	POST /v1/shared-predecessors?min_shared=k&total=t    bulk frame -> bulk frame
//	POST /v1/shared-successors?min_shared=k&total=t      bulk frame -> bulk frame
//	GET  /v1/stats                                       -> {"vertices": n, "arcs": m}
//	GET  /v1/health
//
// Id collections travel as bulk frames (see package bulk). Non-2xx replies
// carry {"error": "..."}.
//
// RemoteStore is the client side and StoreServer serves any GraphStore.
// Tunnel lets RemoteStore reach a store behind an SSH bastion.
package adapter
