package ratelimit

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Scope groups requests that share a budget.
type Scope string

const (
	// ScopeGlobal applies to every request.
	ScopeGlobal Scope = "global"
	// ScopeRedirect covers short code lookups.
	ScopeRedirect Scope = "redirect"
	// ScopeCreate covers link creation.
	ScopeCreate Scope = "create"
	// ScopeManage covers link inspection and deletion.
	ScopeManage Scope = "manage"
	// ScopeEndpoint reports limits set on an operation itself.
	ScopeEndpoint Scope = "endpoint"
)

// MetadataKey is the huma operation metadata key holding an EndpointConfig.
const MetadataKey = "rateLimit"

// EndpointConfig tunes rate limiting for one operation.
type EndpointConfig struct {
	// Scope replaces the method-derived scope. ScopeGlobal always applies too.
	Scope Scope

	// Limits replace the policy for this operation. Scope is ignored when set.
	Limits []LimitConfig

	// Disabled skips rate limiting.
	Disabled bool
}

// ScopeResolver picks the scopes a request is charged against.
type ScopeResolver interface {
	Resolve(ctx huma.Context) []Scope
}

// OperationScopeResolver uses the operation's EndpointConfig scope when set and
// otherwise derives one from the HTTP method: safe methods are redirects,
// DELETE is management, everything else creates links.
type OperationScopeResolver struct{}

// NewOperationScopeResolver creates the resolver.
func NewOperationScopeResolver() *OperationScopeResolver {
	return &OperationScopeResolver{}
}

func (r *OperationScopeResolver) Resolve(ctx huma.Context) []Scope {
	if cfg := GetEndpointConfig(ctx); cfg != nil && cfg.Scope != "" {
		return []Scope{ScopeGlobal, cfg.Scope}
	}

	return []Scope{ScopeGlobal, methodScope(ctx.Method())}
}

func methodScope(method string) Scope {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ScopeRedirect
	case http.MethodDelete:
		return ScopeManage
	default:
		return ScopeCreate
	}
}

// GetEndpointConfig returns the operation's EndpointConfig, or nil.
func GetEndpointConfig(ctx huma.Context) *EndpointConfig {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return nil
	}

	cfg, ok := op.Metadata[MetadataKey].(EndpointConfig)
	if !ok {
		return nil
	}

	return &cfg
}
