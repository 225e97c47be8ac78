package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/wormhole/internal/ratelimit"
)

// reservedAliases are paths served by other routes, so GET /{code} never sees them.
var reservedAliases = map[string]struct{}{
	"shorten": {},
	"links":   {},
	"health":  {},
	"docs":    {},
	"schemas": {},
}

func scoped(scope ratelimit.Scope) map[string]any {
	return map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: scope}}
}

// RegisterRoutes registers the short link routes. Each operation is charged
// against its own rate limit scope.
func RegisterRoutes(api huma.API, h *LinkHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-link",
		Method:        http.MethodPost,
		Path:          "/shorten",
		Summary:       "Create short link",
		Description:   "Creates a short link with a generated code or a custom alias, optionally expiring.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusServiceUnavailable},
		Metadata:      scoped(ratelimit.ScopeCreate),
	}, h.Shorten)

	huma.Register(api, huma.Operation{
		OperationID: "inspect-link",
		Method:      http.MethodGet,
		Path:        "/links/{code}",
		Summary:     "Get short link",
		Description: "Returns the stored link without redirecting.",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusServiceUnavailable},
		Metadata:    scoped(ratelimit.ScopeManage),
	}, h.Inspect)

	huma.Register(api, huma.Operation{
		OperationID: "redirect",
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Redirect to original URL",
		Description: "Redirects to the original URL associated with the short code.",
		Tags:        []string{"Links"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusServiceUnavailable},
		Metadata:    scoped(ratelimit.ScopeRedirect),
	}, h.Redirect)

	huma.Register(api, huma.Operation{
		OperationID:   "delete-link",
		Method:        http.MethodDelete,
		Path:          "/{code}",
		Summary:       "Delete short link",
		Description:   "Deletes the link. Its code stops resolving on every node.",
		Tags:          []string{"Links"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
		Metadata:      scoped(ratelimit.ScopeManage),
	}, h.Delete)
}
