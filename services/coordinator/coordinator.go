// File: services/coordinator/coordinator.go
package coordinator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Coordinator wraps outbound HTTP calls with in-flight deduplication and a
// short-lived response cache. A UI issuing the same request from several
// effects in quick succession produces exactly one network round trip.
//
// It is constructed per application session and torn down with Close; there is
// no ambient package-level state.
type Coordinator struct {
	baseURL string
	client  *http.Client
	group   singleflight.Group
	recent  *gocache.Cache
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Result is a completed HTTP exchange. Concurrent deduplicated callers all
// receive the same Result value.
type Result struct {
	Status    int
	Body      []byte
	RequestID string
}

// JSON decodes the response body into v.
func (r *Result) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// HTTPError is returned for non-2xx responses. Failed calls are never cached,
// so an immediate retry goes back to the network.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// Options tunes a Coordinator. Zero values fall back to sane defaults.
type Options struct {
	// CacheWindow is how long a completed response is served without a new
	// network call. Defaults to 1s.
	CacheWindow time.Duration
	// RequestsPerMin throttles outbound calls. Defaults to 100.
	RequestsPerMin int
	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New returns a Coordinator for the given backend base URL.
func New(baseURL string, opts Options) *Coordinator {
	if opts.CacheWindow <= 0 {
		opts.CacheWindow = time.Second
	}
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 100
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Coordinator{
		baseURL: baseURL,
		client:  opts.HTTPClient,
		recent:  gocache.New(opts.CacheWindow, opts.CacheWindow),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMin)), opts.RequestsPerMin),
		logger:  opts.Logger,
	}
}

// Execute performs a JSON request against the backend. Calls with an identical
// (endpoint, body) key share one in-flight round trip, and a completed result
// is replayed from cache for the duration of the cache window.
func (c *Coordinator) Execute(ctx context.Context, endpoint, method string, body any) (*Result, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	key := requestKey(method, endpoint, payload)
	return c.do(ctx, key, endpoint, method, "application/json", payload)
}

// ExecuteRaw performs a request with a pre-encoded payload, e.g. a multipart
// audio upload. Dedup semantics match Execute.
func (c *Coordinator) ExecuteRaw(ctx context.Context, endpoint, method, contentType string, payload []byte) (*Result, error) {
	key := requestKey(method, endpoint, payload)
	return c.do(ctx, key, endpoint, method, contentType, payload)
}

func (c *Coordinator) do(ctx context.Context, key, endpoint, method, contentType string, payload []byte) (*Result, error) {
	if cached, ok := c.recent.Get(key); ok {
		c.logger.Debug("request served from cache", zap.String("endpoint", endpoint))
		return cached.(*Result), nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		res, err := c.roundTrip(ctx, endpoint, method, contentType, payload)
		if err != nil {
			return nil, err
		}
		c.recent.Set(key, res, gocache.DefaultExpiration)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("request deduplicated", zap.String("endpoint", endpoint))
	}
	return v.(*Result), nil
}

func (c *Coordinator) roundTrip(ctx context.Context, endpoint, method, contentType string, payload []byte) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	// Tag every real network call for server-side idempotency.
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("backend error response",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, &HTTPError{Status: resp.StatusCode, Body: data}
	}

	return &Result{Status: resp.StatusCode, Body: data, RequestID: requestID}, nil
}

// Close releases idle connections and drops cached responses.
func (c *Coordinator) Close() {
	c.recent.Flush()
	c.client.CloseIdleConnections()
}

// requestKey derives the dedup key from the request parameters. JSON encoding
// of Go maps is key-sorted, so identical bodies always produce identical keys.
func requestKey(method, endpoint string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return method + " " + endpoint + " " + hex.EncodeToString(sum[:])
}
