package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Local is the in-process tier. Entries expire by TTL, capped at maxTTL, and a
// janitor sweeps expired entries every cleanup interval. There is no size bound.
type Local struct {
	items  *gocache.Cache
	maxTTL time.Duration
}

// NewLocal creates a local tier. A zero maxTTL leaves TTLs uncapped.
func NewLocal(maxTTL, cleanupInterval time.Duration) *Local {
	return &Local{
		items:  gocache.New(gocache.NoExpiration, cleanupInterval),
		maxTTL: maxTTL,
	}
}

func (l *Local) Get(_ context.Context, key string) (Entry, bool, error) {
	v, ok := l.items.Get(key)
	if !ok {
		return Entry{}, false, nil
	}

	entry, ok := v.(Entry)
	if !ok {
		return Entry{}, false, nil
	}

	return entry.clone(), true, nil
}

func (l *Local) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	if l.maxTTL > 0 {
		ttl = min(ttl, l.maxTTL)
	}

	if ttl <= 0 {
		l.items.Delete(key)

		return nil
	}

	l.items.Set(key, entry.clone(), ttl)

	return nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	l.items.Delete(key)

	return nil
}

// Len returns the number of entries, including expired ones not yet swept.
func (l *Local) Len() int {
	return l.items.ItemCount()
}

// Flush drops every entry.
func (l *Local) Flush() {
	l.items.Flush()
}

var _ Store = (*Local)(nil)
