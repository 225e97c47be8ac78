package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/wormhole/internal/events"
	"github.com/serroba/wormhole/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOutput struct {
	Body string `json:"body"`
}

func setupTestAPI(t *testing.T) (*chi.Mux, chan events.RequestMeta) {
	t.Helper()

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.RequestMeta(api))

	captured := make(chan events.RequestMeta, 1)

	huma.Get(api, "/test", func(ctx context.Context, _ *struct{}) (*testOutput, error) {
		captured <- events.RequestMetaFromContext(ctx)

		return &testOutput{Body: "ok"}, nil
	})

	return router, captured
}

func serve(t *testing.T, router http.Handler, headers map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.1.2.3:5555"

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequestMeta(t *testing.T) {
	t.Run("copies user-agent and referrer", func(t *testing.T) {
		router, captured := setupTestAPI(t)

		serve(t, router, map[string]string{
			"User-Agent": "TestAgent/1.0",
			"Referer":    "https://example.com",
		})

		meta := <-captured
		assert.Equal(t, "TestAgent/1.0", meta.UserAgent)
		assert.Equal(t, "https://example.com", meta.Referrer)
		assert.Equal(t, "10.1.2.3", meta.ClientIP)
	})

	t.Run("first X-Forwarded-For hop wins", func(t *testing.T) {
		router, captured := setupTestAPI(t)

		serve(t, router, map[string]string{
			"X-Forwarded-For": "192.168.1.1, 10.0.0.1, 172.16.0.1",
			"X-Real-IP":       "172.16.0.9",
		})

		assert.Equal(t, "192.168.1.1", (<-captured).ClientIP)
	})

	t.Run("X-Real-IP when no forwarding chain", func(t *testing.T) {
		router, captured := setupTestAPI(t)

		serve(t, router, map[string]string{"X-Real-IP": " 172.16.0.9 "})

		assert.Equal(t, "172.16.0.9", (<-captured).ClientIP)
	})

	t.Run("empty headers leave fields empty", func(t *testing.T) {
		router, captured := setupTestAPI(t)

		serve(t, router, nil)

		meta := <-captured
		assert.Empty(t, meta.UserAgent)
		assert.Empty(t, meta.Referrer)
	})
}
