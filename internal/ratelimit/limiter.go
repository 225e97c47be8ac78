package ratelimit

import (
	"context"
	"fmt"
)

// LimitExceeded describes the first limit a request broke.
type LimitExceeded struct {
	Scope  Scope
	Config LimitConfig
	Count  int64
}

func (e *LimitExceeded) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s",
		e.Scope, e.Count, e.Config.Max, e.Config.Window)
}

// Limiter checks requests against a Policy. Every limit keeps its own window
// per client, so a client burning its create budget keeps its redirect budget.
type Limiter struct {
	store  Store
	policy *Policy
}

// NewLimiter creates a new policy-based rate limiter.
func NewLimiter(store Store, policy *Policy) *Limiter {
	return &Limiter{store: store, policy: policy}
}

// Allow records the request under every limit of every scope and returns the
// first limit exceeded, or nil when the request may proceed.
func (l *Limiter) Allow(ctx context.Context, client string, scopes []Scope) (*LimitExceeded, error) {
	for _, scope := range scopes {
		exceeded, err := l.check(ctx, client, scope, string(scope), l.policy.Limits[scope])
		if exceeded != nil || err != nil {
			return exceeded, err
		}
	}

	return nil, nil
}

// AllowLimits enforces endpoint-specific limits under their own bucket, in
// place of the policy.
func (l *Limiter) AllowLimits(ctx context.Context, client, bucket string, limits []LimitConfig) (*LimitExceeded, error) {
	return l.check(ctx, client, ScopeEndpoint, "endpoint:"+bucket, limits)
}

func (l *Limiter) check(
	ctx context.Context, client string, scope Scope, bucket string, limits []LimitConfig,
) (*LimitExceeded, error) {
	for _, limit := range limits {
		key := fmt.Sprintf("%s:%s:%d", client, bucket, limit.Window.Milliseconds())

		count, err := l.store.Record(ctx, key, limit.Window)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", bucket, err)
		}

		if count > limit.Max {
			return &LimitExceeded{Scope: scope, Config: limit, Count: count}, nil
		}
	}

	return nil, nil
}
