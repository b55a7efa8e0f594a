// Package handler implements the HTTP API for discovery queries.
//
// # Endpoints
//
//	POST /api/discover            ranked neighbors of a seed set (?format= selects the codec)
//	POST /api/shared              domains adjacent to at least min_shared seeds
//	POST /api/shared/result       the shared query wrapped as a discovery result
//	POST /api/seeds/validate      found and missing seeds
//	GET  /api/domains/{domain}    domain to vertex id
//	GET  /api/vertices/{id}       vertex id to domain
//	GET  /api/domains/{domain}/neighbors?direction=
//	GET  /api/health              session readiness
//
// Request bodies are JSON and validated before any store call. Errors are
// returned as JSON with {error, details}: invalid input maps to 400, a
// store session that is not open to 503, a failed remote store call to
// 502, anything else to 500.
//
// Middleware provides panic recovery, CORS, request logging with request
// ids, and optional bearer-token authentication.
package handler
