package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
)

// BloomConfig sizes the filter.
type BloomConfig struct {
	ExpectedItems     uint
	FalsePositiveRate float64
}

// Bloom fronts a tier with a Bloom filter of the keys written through it. A
// key the filter has never seen is a miss without a round-trip to the inner
// tier. Deletes leave the filter alone, so a deleted key only costs a lookup.
//
// The filter is cleared once it holds twice ExpectedItems keys. Clearing only
// turns hits into misses, which the read-through cache refills.
type Bloom struct {
	inner Store
	cfg   BloomConfig

	mu     sync.RWMutex
	filter *bloom.BloomFilter
	added  uint
}

func NewBloom(inner Store, cfg BloomConfig) (*Bloom, error) {
	if cfg.ExpectedItems == 0 {
		return nil, fmt.Errorf("bloom filter expected items must be positive")
	}

	if cfg.FalsePositiveRate <= 0 || cfg.FalsePositiveRate >= 1 {
		return nil, fmt.Errorf("bloom filter false positive rate %v must be in (0, 1)", cfg.FalsePositiveRate)
	}

	return &Bloom{
		inner:  inner,
		cfg:    cfg,
		filter: bloom.NewWithEstimates(cfg.ExpectedItems, cfg.FalsePositiveRate),
	}, nil
}

func (b *Bloom) Get(ctx context.Context, key string) (Entry, bool, error) {
	if !b.mayContain(key) {
		return Entry{}, false, nil
	}

	return b.inner.Get(ctx, key)
}

func (b *Bloom) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	b.mu.Lock()
	if b.added >= 2*b.cfg.ExpectedItems {
		b.filter.ClearAll()
		b.added = 0
	}

	b.filter.AddString(key)
	b.added++
	b.mu.Unlock()

	return b.inner.Set(ctx, key, entry, ttl)
}

func (b *Bloom) Delete(ctx context.Context, key string) error {
	return b.inner.Delete(ctx, key)
}

func (b *Bloom) mayContain(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.filter.TestString(key)
}

var _ Store = (*Bloom)(nil)
