package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Layered stacks tiers, fastest first. A hit in a slower tier is copied into
// every faster one. A failing tier counts as a miss for reads.
type Layered struct {
	tiers  []Store
	ttl    TTLPolicy
	logger *zap.Logger
}

// NewLayered composes tiers, fastest first. ttl sizes promoted entries.
func NewLayered(ttl TTLPolicy, logger *zap.Logger, tiers ...Store) *Layered {
	return &Layered{tiers: tiers, ttl: ttl, logger: logger}
}

func (l *Layered) Get(ctx context.Context, key string) (Entry, bool, error) {
	for i, tier := range l.tiers {
		entry, ok, err := tier.Get(ctx, key)
		if err != nil {
			l.logger.Warn("cache tier read failed", zap.Int("tier", i), zap.String("key", key), zap.Error(err))

			continue
		}

		if !ok {
			continue
		}

		l.promote(ctx, key, entry, i)

		return entry, true, nil
	}

	return Entry{}, false, nil
}

func (l *Layered) promote(ctx context.Context, key string, entry Entry, hitTier int) {
	if hitTier == 0 {
		return
	}

	ttl := l.ttl.TTL(entry, time.Now())
	if ttl <= 0 {
		return
	}

	for i := hitTier - 1; i >= 0; i-- {
		if err := l.tiers[i].Set(ctx, key, entry, ttl); err != nil {
			l.logger.Warn("cache promotion failed", zap.Int("tier", i), zap.String("key", key), zap.Error(err))
		}
	}
}

// Set writes every tier, slowest first.
func (l *Layered) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	var errs []error

	for i := len(l.tiers) - 1; i >= 0; i-- {
		if err := l.tiers[i].Set(ctx, key, entry, ttl); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Delete clears every tier, slowest first, and reports all failures.
func (l *Layered) Delete(ctx context.Context, key string) error {
	var errs []error

	for i := len(l.tiers) - 1; i >= 0; i-- {
		if err := l.tiers[i].Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

var _ Store = (*Layered)(nil)
