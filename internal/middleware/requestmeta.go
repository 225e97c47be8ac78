package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/wormhole/internal/events"
)

// RequestMeta stores client IP, user-agent and referrer on the request context
// for the events a request emits.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := events.RequestMeta{
			ClientIP:  ClientIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
		}

		next(huma.WithContext(ctx, events.ContextWithRequestMeta(ctx.Context(), meta)))
	}
}
