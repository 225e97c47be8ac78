package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/wormhole/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimiter returns a Huma middleware enforcing the limiter's policy.
//
// Operations can tune it through ratelimit.MetadataKey metadata:
//   - Disabled skips the check
//   - Limits replaces the policy with per-operation limits
//   - Scope charges the request to a scope other than the method's
func RateLimiter(
	api huma.API,
	limiter *ratelimit.Limiter,
	resolver ratelimit.ScopeResolver,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		path := operationPath(ctx)
		key := clientKey(ctx)

		var (
			exceeded *ratelimit.LimitExceeded
			err      error
		)

		if cfg != nil && len(cfg.Limits) > 0 {
			exceeded, err = limiter.AllowLimits(ctx.Context(), key, path, cfg.Limits)
		} else {
			exceeded, err = limiter.Allow(ctx.Context(), key, resolver.Resolve(ctx))
		}

		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error")

			return
		}

		if exceeded != nil {
			logger.Warn("rate limit exceeded",
				zap.String("path", path),
				zap.String("method", ctx.Method()),
				zap.String("scope", string(exceeded.Scope)),
				zap.Int64("count", exceeded.Count),
				zap.Int64("max", exceeded.Config.Max),
				zap.Duration("window", exceeded.Config.Window),
				zap.String("client_ip", ClientIP(ctx)),
			)

			retryAfter := int64(math.Ceil(exceeded.Config.Window.Seconds()))
			ctx.SetHeader("Retry-After", strconv.FormatInt(retryAfter, 10))
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, exceeded.Error())

			return
		}

		next(ctx)
	}
}

// operationPath is the route template, so every code shares one bucket.
func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ctx.URL().Path
}

// clientKey identifies a client by IP and User-Agent.
func clientKey(ctx huma.Context) string {
	hash := sha256.Sum256([]byte(ClientIP(ctx) + "|" + ctx.Header("User-Agent")))

	return hex.EncodeToString(hash[:])
}
