package adapter

// Store endpoint paths. Every GraphStore method maps to one request.
const (
	PathResolveID          = "/v1/resolve-id"
	PathResolveLabel       = "/v1/resolve-label"
	PathPredecessors       = "/v1/predecessors"
	PathSuccessors         = "/v1/successors"
	PathSharedPredecessors = "/v1/shared-predecessors"
	PathSharedSuccessors   = "/v1/shared-successors"
	PathStats              = "/v1/stats"
	PathHealth             = "/v1/health"
)

// resolveIDRequest is the body of a label lookup
type resolveIDRequest struct {
	Label string `json:"label"`
}

type resolveIDResponse struct {
	ID int64 `json:"id"`
}

// resolveLabelRequest is the body of an id lookup
type resolveLabelRequest struct {
	ID int64 `json:"id"`
}

type resolveLabelResponse struct {
	Label string `json:"label,omitempty"`
	Found bool   `json:"found"`
}

// errorResponse is returned with every non-2xx status
type errorResponse struct {
	Error string `json:"error"`
}
