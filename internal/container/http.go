package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/wormhole/internal/events"
	"github.com/serroba/wormhole/internal/handlers"
	"github.com/serroba/wormhole/internal/health"
	"github.com/serroba/wormhole/internal/messaging"
	"github.com/serroba/wormhole/internal/middleware"
	"github.com/serroba/wormhole/internal/ratelimit"
	"github.com/serroba/wormhole/internal/shortener"
	"go.uber.org/zap"
)

// HTTPPackage provides the router and the API with every route registered.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)

		api := humachi.New(router, huma.DefaultConfig("Wormhole", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api),
			middleware.RateLimiter(api, do.MustInvoke[*ratelimit.Limiter](i), ratelimit.NewOperationScopeResolver(), logger),
		)

		publisher := do.MustInvoke[*messaging.PublisherGroup](i).Publisher()
		handlers.RegisterRoutes(api, handlers.NewLinkHandler(
			do.MustInvoke[*shortener.Service](i),
			opts.baseURL(),
			messaging.NewPublishFunc[events.LinkResolved](publisher, events.TopicLinkResolved),
			logger,
		))
		health.RegisterRoutes(api, healthChecks(i, opts))

		return api, nil
	})
}

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// HTTPServer serves the API on Options.Port.
type HTTPServer struct {
	*http.Server
}

// Shutdown drains open requests, bounded by shutdownTimeout.
func (s *HTTPServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.Server.Shutdown(ctx)
}

// ServerPackage provides the HTTP server for the registered API.
func ServerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*HTTPServer, error) {
		opts := do.MustInvoke[*Options](i)
		_ = do.MustInvoke[huma.API](i)

		return &HTTPServer{&http.Server{
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           do.MustInvoke[*chi.Mux](i),
			ReadHeaderTimeout: readHeaderTimeout,
		}}, nil
	})
}

func healthChecks(i *do.Injector, opts *Options) *health.Handler {
	h := health.NewHandler()

	if opts.usesRedis() {
		h.Register("redis", health.NewRedisChecker(do.MustInvoke[*RedisConn](i).UniversalClient))
	}

	if opts.Storage == "postgres" {
		h.Register("postgres", health.CheckerFunc(do.MustInvoke[*PostgresPool](i).Ping))
	}

	return h
}

func (o *Options) usesRedis() bool {
	return o.Storage == "redis" ||
		o.Events == "redis" ||
		o.RateLimitStore == "redis" ||
		(o.RemoteCache && len(o.sentinels()) == 0)
}
