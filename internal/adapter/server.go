package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"ccgraph/internal/auth"
	"ccgraph/internal/bulk"
	"ccgraph/internal/repository"
)

// maxFrameBody bounds shared-neighbor request bodies.
const maxFrameBody = 64 << 20

// StoreServer exposes a repository.GraphStore over HTTP using the protocol
// RemoteStore speaks.
type StoreServer struct {
	store  repository.GraphStore
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewStoreServer creates a store endpoint. tokens may be nil to disable
// authentication.
func NewStoreServer(store repository.GraphStore, tokens *auth.TokenService, logger *slog.Logger) *StoreServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreServer{store: store, tokens: tokens, logger: logger}
}

// Handler returns the routed endpoint.
func (s *StoreServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+PathResolveID, s.resolveID)
	mux.HandleFunc("POST "+PathResolveLabel, s.resolveLabel)
	mux.HandleFunc("POST "+PathPredecessors, s.adjacency(s.store.PredecessorIDs))
	mux.HandleFunc("POST "+PathSuccessors, s.adjacency(s.store.SuccessorIDs))
	mux.HandleFunc("POST "+PathSharedPredecessors, s.shared(s.store.SharedPredecessors))
	mux.HandleFunc("POST "+PathSharedSuccessors, s.shared(s.store.SharedSuccessors))
	mux.HandleFunc("GET "+PathStats, s.stats)
	mux.HandleFunc("GET "+PathHealth, func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	if s.tokens == nil {
		return mux
	}
	return s.authenticate(mux)
}

func (s *StoreServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == PathHealth {
			next.ServeHTTP(w, r)
			return
		}
		token, err := auth.BearerToken(r)
		if err != nil {
			s.writeError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		claims, err := s.tokens.Validate(token)
		if err != nil {
			s.writeError(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if !claims.HasScope("store") {
			s.writeError(w, "token lacks store scope", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *StoreServer) resolveID(w http.ResponseWriter, r *http.Request) {
	var req resolveIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.store.ResolveID(r.Context(), req.Label)
	if err != nil {
		s.storeError(w, "resolve-id", err)
		return
	}
	s.writeJSON(w, resolveIDResponse{ID: id}, http.StatusOK)
}

func (s *StoreServer) resolveLabel(w http.ResponseWriter, r *http.Request) {
	var req resolveLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	label, ok, err := s.store.ResolveLabel(r.Context(), req.ID)
	if err != nil {
		s.storeError(w, "resolve-label", err)
		return
	}
	s.writeJSON(w, resolveLabelResponse{Label: label, Found: ok}, http.StatusOK)
}

func (s *StoreServer) adjacency(fetch func(ctx context.Context, id int64) ([]int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil {
			s.writeError(w, "invalid id", http.StatusBadRequest)
			return
		}

		ids, err := fetch(r.Context(), id)
		if err != nil {
			s.storeError(w, r.URL.Path, err)
			return
		}
		s.writeFrame(w, r, ids)
	}
}

func (s *StoreServer) shared(query func(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		minShared, err := strconv.Atoi(q.Get("min_shared"))
		if err != nil || minShared < 0 {
			s.writeError(w, "invalid min_shared", http.StatusBadRequest)
			return
		}
		total, err := strconv.Atoi(q.Get("total"))
		if err != nil || total < 0 {
			s.writeError(w, "invalid total", http.StatusBadRequest)
			return
		}

		ids, err := readIDs(r)
		if err != nil {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		shared, err := query(r.Context(), ids, minShared, total)
		if err != nil {
			s.storeError(w, r.URL.Path, err)
			return
		}
		s.writeFrame(w, r, shared)
	}
}

// readIDs decodes a request body as a bulk frame, or as the bracketed
// text list when the client sends text/plain.
func readIDs(r *http.Request) ([]int64, error) {
	body := io.LimitReader(r.Body, maxFrameBody)
	if !isText(r.Header.Get("Content-Type")) {
		return bulk.ReadIDs(body)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return bulk.ParseArrayString(string(data))
}

func isText(mediaType string) bool {
	return strings.HasPrefix(mediaType, bulk.TextContentType)
}

// wantsText reports whether the client accepts only the text list form.
func wantsText(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, bulk.TextContentType) && !strings.Contains(accept, bulk.ContentType)
}

func (s *StoreServer) stats(w http.ResponseWriter, r *http.Request) {
	sp, ok := s.store.(repository.StatsProvider)
	if !ok {
		s.writeError(w, "store does not report stats", http.StatusNotImplemented)
		return
	}
	stats, err := sp.Stats(r.Context())
	if err != nil {
		s.storeError(w, "stats", err)
		return
	}
	s.writeJSON(w, stats, http.StatusOK)
}

func (s *StoreServer) storeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, repository.ErrClosed) || errors.Is(err, repository.ErrNotReady) {
		status = http.StatusServiceUnavailable
	}
	s.logger.Error("store call failed", "op", op, "error", err)
	s.writeError(w, err.Error(), status)
}

func (s *StoreServer) writeFrame(w http.ResponseWriter, r *http.Request, ids []int64) {
	if wantsText(r) {
		w.Header().Set("Content-Type", bulk.TextContentType+"; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, bulk.FormatArrayString(ids))
		return
	}

	frame, err := bulk.EncodeIDs(ids)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", bulk.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.WriteHeader(http.StatusOK)
	w.Write(frame)
}

func (s *StoreServer) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *StoreServer) writeError(w http.ResponseWriter, msg string, statusCode int) {
	s.writeJSON(w, errorResponse{Error: msg}, statusCode)
}
