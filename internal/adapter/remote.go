package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"ccgraph/internal/bulk"
	"ccgraph/internal/repository"
)

const maxErrorBody = 4 << 10

// RemoteConfig holds settings for a RemoteStore.
type RemoteConfig struct {
	// BaseURL of the store endpoint, e.g. "http://graph-host:8090"
	BaseURL string
	// Timeout bounds each call; zero means no timeout beyond ctx
	Timeout time.Duration
	// RateLimit caps calls per second; zero disables limiting
	RateLimit float64
	Burst     int
	// Token is sent as a bearer token when set
	Token string
	// Serialize makes the session run one call at a time
	Serialize bool
	// Dial overrides connection setup, e.g. through an SSH tunnel
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// RemoteStore is a repository.GraphStore reached over HTTP. Each method
// is exactly one request; id collections travel as bulk frames. Failed
// calls surface as *repository.TransportError and are never retried.
type RemoteStore struct {
	base      *url.URL
	client    *http.Client
	limiter   *rate.Limiter
	token     string
	serialize bool
	logger    *slog.Logger

	closeOnce sync.Once
	closers   []io.Closer
}

var _ repository.GraphStore = (*RemoteStore)(nil)

// NewRemoteStore creates a client for the store at cfg.BaseURL. No request
// is made until the first call.
func NewRemoteStore(cfg RemoteConfig, logger *slog.Logger) (*RemoteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid store url %q", cfg.BaseURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Dial != nil {
		transport.DialContext = cfg.Dial
	}

	s := &RemoteStore{
		base:      base,
		client:    &http.Client{Timeout: cfg.Timeout, Transport: transport},
		token:     cfg.Token,
		serialize: cfg.Serialize,
		logger:    logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s, nil
}

// AddCloser registers a resource released on Close, such as a tunnel.
func (s *RemoteStore) AddCloser(c io.Closer) {
	s.closers = append(s.closers, c)
}

// ResolveID implements repository.GraphStore
func (s *RemoteStore) ResolveID(ctx context.Context, label string) (int64, error) {
	var resp resolveIDResponse
	if err := s.callJSON(ctx, "resolve-id", PathResolveID, resolveIDRequest{Label: label}, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// ResolveLabel implements repository.GraphStore
func (s *RemoteStore) ResolveLabel(ctx context.Context, id int64) (string, bool, error) {
	var resp resolveLabelResponse
	if err := s.callJSON(ctx, "resolve-label", PathResolveLabel, resolveLabelRequest{ID: id}, &resp); err != nil {
		return "", false, err
	}
	return resp.Label, resp.Found, nil
}

// PredecessorIDs implements repository.GraphStore
func (s *RemoteStore) PredecessorIDs(ctx context.Context, id int64) ([]int64, error) {
	return s.adjacency(ctx, "predecessors", PathPredecessors, id)
}

// SuccessorIDs implements repository.GraphStore
func (s *RemoteStore) SuccessorIDs(ctx context.Context, id int64) ([]int64, error) {
	return s.adjacency(ctx, "successors", PathSuccessors, id)
}

// SharedPredecessors implements repository.GraphStore
func (s *RemoteStore) SharedPredecessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	return s.shared(ctx, "shared-predecessors", PathSharedPredecessors, ids, minShared, totalCount)
}

// SharedSuccessors implements repository.GraphStore
func (s *RemoteStore) SharedSuccessors(ctx context.Context, ids []int64, minShared, totalCount int) ([]int64, error) {
	return s.shared(ctx, "shared-successors", PathSharedSuccessors, ids, minShared, totalCount)
}

// Stats implements repository.StatsProvider
func (s *RemoteStore) Stats(ctx context.Context) (repository.Stats, error) {
	var stats repository.Stats
	body, err := s.do(ctx, "stats", http.MethodGet, PathStats, nil, "", nil)
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return stats, &repository.TransportError{Op: "stats", Err: fmt.Errorf("decode response: %w", err)}
	}
	return stats, nil
}

// Ping checks that the endpoint answers.
func (s *RemoteStore) Ping(ctx context.Context) error {
	_, err := s.do(ctx, "health", http.MethodGet, PathHealth, nil, "", nil)
	return err
}

// ConcurrentSafe implements repository.ConcurrentSafe
func (s *RemoteStore) ConcurrentSafe() bool {
	return !s.serialize
}

// Close releases idle connections and registered closers.
func (s *RemoteStore) Close() error {
	var firstErr error
	s.closeOnce.Do(func() {
		s.client.CloseIdleConnections()
		for _, c := range s.closers {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

func (s *RemoteStore) adjacency(ctx context.Context, op, path string, id int64) ([]int64, error) {
	q := url.Values{"id": {strconv.FormatInt(id, 10)}}
	body, err := s.do(ctx, op, http.MethodPost, path, q, "", nil)
	if err != nil {
		return nil, err
	}
	return decodeFrame(op, body)
}

func (s *RemoteStore) shared(ctx context.Context, op, path string, ids []int64, minShared, totalCount int) ([]int64, error) {
	frame, err := bulk.EncodeIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	q := url.Values{
		"min_shared": {strconv.Itoa(minShared)},
		"total":      {strconv.Itoa(totalCount)},
	}
	body, err := s.do(ctx, op, http.MethodPost, path, q, bulk.ContentType, frame)
	if err != nil {
		return nil, err
	}
	return decodeFrame(op, body)
}

// decodeFrame accepts a bulk frame, or the bracketed text list older
// store endpoints reply with.
func decodeFrame(op string, body []byte) ([]int64, error) {
	decode := bulk.DecodeIDs
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		decode = func(b []byte) ([]int64, error) { return bulk.ParseArrayString(string(b)) }
	}
	ids, err := decode(body)
	if err != nil {
		return nil, &repository.TransportError{Op: op, Err: err}
	}
	return ids, nil
}

func (s *RemoteStore) callJSON(ctx context.Context, op, path string, req, resp interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	body, err := s.do(ctx, op, http.MethodPost, path, nil, "application/json", payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, resp); err != nil {
		return &repository.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// do performs one request and returns the response body of a 2xx reply.
func (s *RemoteStore) do(ctx context.Context, op, method, path string, query url.Values, contentType string, payload []byte) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, &repository.TransportError{Op: op, Err: err}
		}
	}

	u := *s.base
	u.Path = s.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", bulk.ContentType+", application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &repository.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &repository.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	s.logger.Debug("store call", "op", op, "status", resp.StatusCode, "bytes", len(data), "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &repository.TransportError{Op: op, Err: remoteError(resp.StatusCode, data)}
	}
	return data, nil
}

func remoteError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return fmt.Errorf("status %d: %s", status, er.Error)
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body)))
}
