package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PrimaryResolver reports the address of the current primary.
type PrimaryResolver interface {
	Primary(ctx context.Context) (string, error)
}

// StoreFactory builds a tier talking to the primary at addr.
type StoreFactory func(addr string) Store

// HAConfig bounds failover retries.
type HAConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// HARedis is a remote tier that follows primary failover. Operations that fail
// with ErrUnavailable re-resolve the primary, swap clients when it moved, and
// retry up to MaxRetries times.
type HARedis struct {
	resolver PrimaryResolver
	factory  StoreFactory
	cfg      HAConfig
	logger   *zap.Logger

	mu    sync.RWMutex
	addr  string
	store Store

	resolving singleflight.Group
}

// NewHARedis creates the tier. The primary is resolved lazily on first use.
func NewHARedis(resolver PrimaryResolver, factory StoreFactory, cfg HAConfig, logger *zap.Logger) *HARedis {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &HARedis{
		resolver: resolver,
		factory:  factory,
		cfg:      cfg,
		logger:   logger,
	}
}

func (h *HARedis) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)

	err := h.do(ctx, "get", func(s Store) error {
		var err error
		entry, found, err = s.Get(ctx, key)

		return err
	})

	return entry, found, err
}

func (h *HARedis) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	return h.do(ctx, "set", func(s Store) error {
		return s.Set(ctx, key, entry, ttl)
	})
}

func (h *HARedis) Delete(ctx context.Context, key string) error {
	return h.do(ctx, "delete", func(s Store) error {
		return s.Delete(ctx, key)
	})
}

// Primary returns the address currently in use, empty before first resolution.
func (h *HARedis) Primary() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.addr
}

// SwitchPrimary points the tier at addr. It is the failover notification hook.
func (h *HARedis) SwitchPrimary(addr string) {
	if h.swap(addr) {
		h.logger.Warn("cache primary switched", zap.String("addr", addr))
	}
}

// Close releases the current client.
func (h *HARedis) Close() error {
	h.mu.Lock()
	old := h.store
	h.store, h.addr = nil, ""
	h.mu.Unlock()

	return closeStore(old)
}

func (h *HARedis) do(ctx context.Context, op string, fn func(Store) error) error {
	var err error

	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if werr := sleepCtx(ctx, h.cfg.RetryBackoff); werr != nil {
				return fmt.Errorf("%w: %w", ErrUnavailable, werr)
			}

			if rerr := h.refresh(ctx); rerr != nil {
				err = rerr

				continue
			}
		}

		var s Store

		s, err = h.current(ctx)
		if err != nil {
			continue
		}

		err = fn(s)
		if err == nil || !errors.Is(err, ErrUnavailable) {
			return err
		}

		h.logger.Warn("cache primary unavailable",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.String("addr", h.Primary()),
			zap.Error(err),
		)
	}

	return err
}

func (h *HARedis) current(ctx context.Context) (Store, error) {
	h.mu.RLock()
	s := h.store
	h.mu.RUnlock()

	if s != nil {
		return s, nil
	}

	if err := h.refresh(ctx); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.store == nil {
		return nil, fmt.Errorf("%w: no primary", ErrUnavailable)
	}

	return h.store, nil
}

// refresh asks the resolver for the primary. Concurrent callers share one lookup.
func (h *HARedis) refresh(ctx context.Context) error {
	_, err, _ := h.resolving.Do("primary", func() (any, error) {
		addr, err := h.resolver.Primary(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve primary: %w", ErrUnavailable, err)
		}

		if h.swap(addr) {
			h.logger.Info("cache primary resolved", zap.String("addr", addr))
		}

		return nil, nil
	})

	return err
}

// swap installs a client for addr and reports whether anything changed.
func (h *HARedis) swap(addr string) bool {
	h.mu.Lock()
	if h.store != nil && h.addr == addr {
		h.mu.Unlock()

		return false
	}

	old := h.store
	h.store = h.factory(addr)
	h.addr = addr
	h.mu.Unlock()

	if err := closeStore(old); err != nil {
		h.logger.Warn("closing previous cache primary failed", zap.Error(err))
	}

	return true
}

func closeStore(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Store = (*HARedis)(nil)
