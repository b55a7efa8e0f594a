package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"ccgraph/internal/codec"
	"ccgraph/internal/domain"
	"ccgraph/internal/repository"
	"ccgraph/internal/service"
)

// Health reports store session state.
type Health interface {
	Ready() bool
	Uptime() time.Duration
}

// QueryHandler serves the discovery API.
type QueryHandler struct {
	client    *service.Client
	discovery *service.Discovery
	shared    *service.Intersector
	health    Health
	logger    *slog.Logger

	defaultMinConnections int
}

// New creates the handler. defaultMin is used when a request omits
// min_connections.
func New(client *service.Client, discovery *service.Discovery, shared *service.Intersector, health Health, defaultMin int, logger *slog.Logger) *QueryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultMin < 1 {
		defaultMin = 1
	}
	return &QueryHandler{
		client:                client,
		discovery:             discovery,
		shared:                shared,
		health:                health,
		logger:                logger,
		defaultMinConnections: defaultMin,
	}
}

// Register adds the API routes to mux.
func (h *QueryHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/discover", h.Discover)
	mux.HandleFunc("POST /api/shared", h.Shared)
	mux.HandleFunc("POST /api/shared/result", h.SharedResult)
	mux.HandleFunc("POST /api/seeds/validate", h.ValidateSeeds)
	mux.HandleFunc("GET /api/domains/{domain}", h.LookupDomain)
	mux.HandleFunc("GET /api/domains/{domain}/neighbors", h.Neighbors)
	mux.HandleFunc("GET /api/vertices/{id}", h.LookupVertex)
	mux.HandleFunc("GET /api/health", h.Health)
}

// Discover runs a full discovery query
func (h *QueryHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := decode(r, &req); err != nil {
		writeError(w, "Invalid request", err.Error(), http.StatusBadRequest)
		return
	}
	exporter, ok := h.exporter(w, r)
	if !ok {
		return
	}
	dir, _ := domain.ParseDirection(req.Direction)

	result, report, err := h.discovery.DiscoverReport(r.Context(), req.Seeds, h.minConnections(req.MinConnections), dir)
	if err != nil {
		h.queryError(w, r, "Discovery failed", err)
		return
	}

	w.Header().Set("X-Query-ID", report.QueryID)
	w.Header().Set("X-Missing-Seeds", strconv.Itoa(len(report.Missing)))
	h.writeResult(w, exporter, result)
}

// Shared returns the domains adjacent to at least min_shared seeds
func (h *QueryHandler) Shared(w http.ResponseWriter, r *http.Request) {
	var req SharedRequest
	if err := decode(r, &req); err != nil {
		writeError(w, "Invalid request", err.Error(), http.StatusBadRequest)
		return
	}
	dir, _ := domain.ParseDirection(req.Direction)

	minShared := 0
	if req.MinShared != nil {
		minShared = *req.MinShared
	}

	domains, err := h.shared.SharedNeighbors(r.Context(), req.Seeds, minShared, dir)
	if err != nil {
		h.queryError(w, r, "Shared query failed", err)
		return
	}

	writeJSON(w, SharedResponse{
		Direction: dir.String(),
		MinShared: minShared,
		Domains:   domains,
	}, http.StatusOK)
}

// SharedResult runs the shared query and wraps it as a discovery result
func (h *QueryHandler) SharedResult(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := decode(r, &req); err != nil {
		writeError(w, "Invalid request", err.Error(), http.StatusBadRequest)
		return
	}
	exporter, ok := h.exporter(w, r)
	if !ok {
		return
	}
	dir, _ := domain.ParseDirection(req.Direction)

	result, err := h.shared.SharedResult(r.Context(), req.Seeds, h.minConnections(req.MinConnections), dir)
	if err != nil {
		h.queryError(w, r, "Shared query failed", err)
		return
	}
	h.writeResult(w, exporter, result)
}

// ValidateSeeds partitions seeds into found and missing
func (h *QueryHandler) ValidateSeeds(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, "Invalid request", err.Error(), http.StatusBadRequest)
		return
	}

	part, err := h.client.ValidateSeeds(r.Context(), req.Seeds)
	if err != nil {
		h.queryError(w, r, "Seed validation failed", err)
		return
	}
	writeJSON(w, part, http.StatusOK)
}

// LookupDomain resolves a domain to its vertex id
func (h *QueryHandler) LookupDomain(w http.ResponseWriter, r *http.Request) {
	d := domain.Normalize(r.PathValue("domain"))
	if d == "" {
		writeError(w, "Invalid domain", "Domain is required", http.StatusBadRequest)
		return
	}

	id, found, err := h.client.DomainToID(r.Context(), d)
	if err != nil {
		h.queryError(w, r, "Lookup failed", err)
		return
	}
	if !found {
		writeError(w, "Not found", "domain "+d+" is not in the graph", http.StatusNotFound)
		return
	}
	writeJSON(w, LookupResponse{Domain: d, ID: id}, http.StatusOK)
}

// LookupVertex resolves a vertex id to its domain
func (h *QueryHandler) LookupVertex(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		writeError(w, "Invalid vertex ID", "id must be a non-negative integer", http.StatusBadRequest)
		return
	}

	d, found, err := h.client.IDToDomain(r.Context(), id)
	if err != nil {
		h.queryError(w, r, "Lookup failed", err)
		return
	}
	if !found {
		writeError(w, "Not found", "vertex "+strconv.FormatInt(id, 10)+" has no label", http.StatusNotFound)
		return
	}
	writeJSON(w, LookupResponse{Domain: d, ID: id}, http.StatusOK)
}

// Neighbors lists the direct neighbors of one domain
func (h *QueryHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	d := domain.Normalize(r.PathValue("domain"))
	if d == "" {
		writeError(w, "Invalid domain", "Domain is required", http.StatusBadRequest)
		return
	}
	dir, err := domain.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		writeError(w, "Invalid direction", err.Error(), http.StatusBadRequest)
		return
	}

	neighbors, err := h.client.Neighbors(r.Context(), d, dir)
	if err != nil {
		h.queryError(w, r, "Neighbor query failed", err)
		return
	}
	writeJSON(w, NeighborsResponse{
		Domain:    d,
		Direction: dir.String(),
		Neighbors: neighbors,
	}, http.StatusOK)
}

// Health reports whether the store session is open
func (h *QueryHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Ready: h.health.Ready(), UptimeSeconds: h.health.Uptime().Seconds()}
	status := http.StatusOK
	if !resp.Ready {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, resp, status)
}

func (h *QueryHandler) minConnections(v *int) int {
	if v == nil {
		return h.defaultMinConnections
	}
	return *v
}

func (h *QueryHandler) exporter(w http.ResponseWriter, r *http.Request) (codec.Exporter, bool) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	e, err := codec.Lookup(format)
	if err != nil {
		writeError(w, "Invalid format", err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return e, true
}

func (h *QueryHandler) writeResult(w http.ResponseWriter, e codec.Exporter, result *domain.DiscoveryResult) {
	var buf bytes.Buffer
	if err := e.Export(result, &buf); err != nil {
		h.logger.Error("failed to export result", "format", e.Format(), "error", err)
		writeError(w, "Failed to export result", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.ContentType(e.Format()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *QueryHandler) queryError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	}
	writeError(w, msg, err.Error(), status)
}

// statusFor maps query errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotReady), errors.Is(err, repository.ErrClosed):
		return http.StatusServiceUnavailable
	case repository.IsTransport(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Helper methods

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON", "error", err)
	}
}

func writeError(w http.ResponseWriter, error, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
