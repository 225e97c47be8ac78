package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/wormhole/internal/ratelimit"
)

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
// Request logs are pruned on access and keys with an empty log are dropped.
type RateLimitMemoryStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	valid := prune(s.requests[key], now.Add(-window))
	valid = append(valid, now)
	s.requests[key] = valid

	return int64(len(valid)), nil
}

// Sweep drops logs with no request newer than maxWindow and returns how many
// keys it removed.
func (s *RateLimitMemoryStore) Sweep(maxWindow time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxWindow)
	removed := 0

	for key, ts := range s.requests {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(s.requests, key)

			removed++
		}
	}

	return removed
}

// Keys counts tracked keys.
func (s *RateLimitMemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

// prune keeps timestamps after cutoff. Timestamps are appended in order.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}

	return append(ts[:0:0], ts[i:]...)
}

var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
