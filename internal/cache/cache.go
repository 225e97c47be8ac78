// Package cache holds the URL cache tiers and the single-flight cache that
// fronts them.
//
// A Store is one tier (process-local, Redis, a Sentinel-managed Redis, or a
// Layered stack of those). Cache wraps a Store and makes concurrent misses on
// the same key share one fetch from the repository.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/wormhole/internal/shortener"
)

var (
	// ErrUnavailable means the tier could not be reached. Callers treat it as a miss.
	ErrUnavailable = errors.New("cache unavailable")
	// ErrCoalesceTimeout is returned to a waiter that gave up on an in-flight fetch.
	ErrCoalesceTimeout = errors.New("timed out waiting for in-flight fetch")
)

// Entry is a cached lookup result. A nil Record marks a code confirmed absent.
type Entry struct {
	Record *shortener.Record
}

// Found wraps a record.
func Found(rec *shortener.Record) Entry {
	return Entry{Record: rec}
}

// Absent is the confirmed-absent marker.
func Absent() Entry {
	return Entry{}
}

func (e Entry) IsAbsent() bool {
	return e.Record == nil
}

func (e Entry) clone() Entry {
	return Entry{Record: e.Record.Clone()}
}

// Store is a single cache tier. Get reports a miss with ok == false.
type Store interface {
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ComputeFunc fetches the value for a missing key.
type ComputeFunc func(ctx context.Context) (Entry, error)

// URLCache is the read-through cache used by the cached repository.
type URLCache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (Entry, error)
}

// TTLPolicy decides how long entries live.
type TTLPolicy struct {
	Positive time.Duration
	Negative time.Duration
}

// TTL returns the lifetime for e stored at now. Records never outlive their
// own expiry. A non-positive result means the entry must not be stored.
func (p TTLPolicy) TTL(e Entry, now time.Time) time.Duration {
	if e.IsAbsent() {
		return p.Negative
	}

	ttl := p.Positive
	if !e.Record.ExpireAt.IsZero() {
		ttl = min(ttl, e.Record.ExpireAt.Sub(now))
	}

	return ttl
}
