package shortener

import (
	"fmt"
	"time"
)

type expirationKind uint8

const (
	expireNever expirationKind = iota
	expireAfter
	expireAt
)

// Expiration describes when a new link stops resolving.
type Expiration struct {
	kind  expirationKind
	after time.Duration
	at    time.Time
}

// Never keeps the link alive until it is deleted.
func Never() Expiration {
	return Expiration{kind: expireNever}
}

// ExpireAfter expires the link d after it is created.
func ExpireAfter(d time.Duration) Expiration {
	return Expiration{kind: expireAfter, after: d}
}

// ExpireAt expires the link at t.
func ExpireAt(t time.Time) Expiration {
	return Expiration{kind: expireAt, at: t}
}

// Resolve returns the absolute expiry for a link created at now, or the zero
// time for links that never expire. Expiries that are not in the future are rejected.
// Storage keeps whole seconds, so the result is rounded up to the next second.
func (e Expiration) Resolve(now time.Time) (time.Time, error) {
	switch e.kind {
	case expireAfter:
		if e.after <= 0 {
			return time.Time{}, fmt.Errorf("%w: duration %s must be positive", ErrInvalidExpiration, e.after)
		}

		return ceilSecond(now.Add(e.after)), nil
	case expireAt:
		if !e.at.After(now) {
			return time.Time{}, fmt.Errorf("%w: %s is not in the future", ErrInvalidExpiration, e.at.UTC().Format(time.RFC3339))
		}

		return ceilSecond(e.at), nil
	default:
		return time.Time{}, nil
	}
}

func ceilSecond(t time.Time) time.Time {
	if s := t.Truncate(time.Second); !s.Equal(t) {
		return s.Add(time.Second)
	}

	return t
}
