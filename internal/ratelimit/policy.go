package ratelimit

import (
	"fmt"
	"time"
)

// LimitConfig allows at most Max requests in any trailing Window.
type LimitConfig struct {
	Window time.Duration
	Max    int64
}

func (c LimitConfig) String() string {
	return fmt.Sprintf("%d/%s", c.Max, c.Window)
}

// Enabled reports whether the limit restricts anything.
func (c LimitConfig) Enabled() bool {
	return c.Window > 0 && c.Max > 0
}

// Policy maps scopes to the limits enforced for them. A scope without
// limits is unrestricted.
type Policy struct {
	Limits map[Scope][]LimitConfig
}

// NewPolicy creates an empty policy.
func NewPolicy() *Policy {
	return &Policy{Limits: make(map[Scope][]LimitConfig)}
}

// With adds enabled limits for scope and returns the policy for chaining.
func (p *Policy) With(scope Scope, limits ...LimitConfig) *Policy {
	for _, l := range limits {
		if l.Enabled() {
			p.Limits[scope] = append(p.Limits[scope], l)
		}
	}

	return p
}

// Rates are per-client request budgets. A zero rate disables that limit.
type Rates struct {
	GlobalPerMinute   int64
	RedirectPerMinute int64
	CreatePerMinute   int64
	CreatePerHour     int64
	ManagePerMinute   int64
}

// DefaultRates favor redirects, which are cheap and cached, over link
// creation, which allocates identifiers and writes storage.
var DefaultRates = Rates{
	GlobalPerMinute:   1200,
	RedirectPerMinute: 600,
	CreatePerMinute:   30,
	CreatePerHour:     500,
	ManagePerMinute:   60,
}

// Policy turns the rates into a policy.
func (r Rates) Policy() *Policy {
	return NewPolicy().
		With(ScopeGlobal, LimitConfig{Window: time.Minute, Max: r.GlobalPerMinute}).
		With(ScopeRedirect, LimitConfig{Window: time.Minute, Max: r.RedirectPerMinute}).
		With(ScopeCreate,
			LimitConfig{Window: time.Minute, Max: r.CreatePerMinute},
			LimitConfig{Window: time.Hour, Max: r.CreatePerHour},
		).
		With(ScopeManage, LimitConfig{Window: time.Minute, Max: r.ManagePerMinute})
}

// DefaultPolicy is DefaultRates as a policy.
func DefaultPolicy() *Policy {
	return DefaultRates.Policy()
}
