package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxWait        = 5 * time.Second
	DefaultComputeTimeout = 5 * time.Second
)

// Config tunes a Cache.
type Config struct {
	TTL TTLPolicy
	// MaxWait bounds how long a caller waits on a fetch, including one it leads.
	MaxWait time.Duration
	// ComputeTimeout bounds the fetch itself. The fetch is detached from the
	// leader's cancellation so waiters still get a result if the leader leaves.
	ComputeTimeout time.Duration
}

// Cache is a read-through URLCache over a Store. Concurrent misses for the
// same key run compute once and share its outcome. Errors are shared with the
// waiters of that flight but never stored. Store failures are logged and
// treated as misses.
//
// A Delete that lands while a fetch for the same key is running marks that
// fetch stale, and a stale fetch never leaves its result in the store.
type Cache struct {
	store  Store
	cfg    Config
	group  singleflight.Group
	logger *zap.Logger

	mu      sync.Mutex
	flights map[string]map[*flight]struct{}
}

type flight struct {
	stale bool
}

// New creates a cache over store.
func New(store Store, cfg Config, logger *zap.Logger) *Cache {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}

	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = DefaultComputeTimeout
	}

	return &Cache{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		flights: make(map[string]map[*flight]struct{}),
	}
}

func (c *Cache) Get(ctx context.Context, key string) (Entry, bool, error) {
	return c.store.Get(ctx, key)
}

func (c *Cache) Set(ctx context.Context, key string, entry Entry) error {
	ttl := c.cfg.TTL.TTL(entry, time.Now())
	if ttl <= 0 {
		return c.store.Delete(ctx, key)
	}

	return c.store.Set(ctx, key, entry.clone(), ttl)
}

// Delete removes key from the store and detaches any in-flight fetch for it,
// so the next miss starts a fresh one.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	for f := range c.flights[key] {
		f.stale = true
	}
	c.mu.Unlock()

	c.group.Forget(key)

	return c.store.Delete(ctx, key)
}

func (c *Cache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (Entry, error) {
	if entry, ok := c.lookup(ctx, key); ok {
		return entry, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.fill(ctx, key, compute)
	})

	timer := time.NewTimer(c.cfg.MaxWait)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}

		entry, _ := res.Val.(Entry)

		return entry.clone(), nil
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case <-timer.C:
		return Entry{}, fmt.Errorf("%w: key %q after %s", ErrCoalesceTimeout, key, c.cfg.MaxWait)
	}
}

// fill runs once per flight on the singleflight goroutine.
func (c *Cache) fill(ctx context.Context, key string, compute ComputeFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute for key %q panicked: %v", key, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ComputeTimeout)
	defer cancel()

	f := c.begin(key)
	defer c.end(key, f)

	// A flight that finished between our lookup and joining the group has
	// already stored the entry.
	if entry, ok := c.lookup(ctx, key); ok {
		return entry, nil
	}

	entry, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	if c.isStale(f) {
		c.logger.Debug("cache fill skipped, key deleted during fetch", zap.String("key", key))

		return entry, nil
	}

	if err := c.Set(ctx, key, entry); err != nil {
		c.logger.Warn("cache fill failed", zap.String("key", key), zap.Error(err))
	}

	// A Delete between the check above and Set finishing may have run its
	// store delete before our write landed.
	if c.isStale(f) {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("cache fill rollback failed", zap.String("key", key), zap.Error(err))
		}
	}

	return entry, nil
}

func (c *Cache) begin(key string) *flight {
	f := &flight{}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flights[key] == nil {
		c.flights[key] = make(map[*flight]struct{})
	}

	c.flights[key][f] = struct{}{}

	return f
}

func (c *Cache) end(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.flights[key], f)

	if len(c.flights[key]) == 0 {
		delete(c.flights, key)
	}
}

func (c *Cache) isStale(f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return f.stale
}

func (c *Cache) lookup(ctx context.Context, key string) (Entry, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed, treating as miss", zap.String("key", key), zap.Error(err))

		return Entry{}, false
	}

	if ok {
		c.logger.Debug("cache hit", zap.String("key", key))
	}

	return entry, ok
}

var _ URLCache = (*Cache)(nil)
