package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/wormhole/internal/ratelimit"
)

const checkTimeout = 2 * time.Second

// Checker defines the interface for checking a dependency.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisChecker adapts a Redis client to Checker.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler reports the state of every registered dependency.
type Handler struct {
	checks map[string]Checker
}

// NewHandler creates a handler with no dependencies.
func NewHandler() *Handler {
	return &Handler{checks: make(map[string]Checker)}
}

// Register adds a named dependency and returns the handler for chaining.
func (h *Handler) Register(name string, c Checker) *Handler {
	h.checks[name] = c

	return h
}

// Response is the response for the health endpoint.
type Response struct {
	Body struct {
		Status       string            `enum:"ok,degraded"  json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
}

// Check pings every dependency concurrently. Any failure degrades the status.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}

	results := make(chan result, len(h.checks))
	for name, c := range h.checks {
		go func() {
			results <- result{name: name, err: c.Ping(ctx)}
		}()
	}

	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Dependencies = make(map[string]string, len(h.checks))

	for range h.checks {
		r := <-results
		if r.err != nil {
			resp.Body.Dependencies[r.name] = "unhealthy"
			resp.Body.Status = "degraded"

			continue
		}

		resp.Body.Dependencies[r.name] = "healthy"
	}

	return resp, nil
}

// Names lists registered dependencies in order.
func (h *Handler) Names() []string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// RegisterRoutes registers health check routes. Health probes are not rate limited.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, h.Check)
}
