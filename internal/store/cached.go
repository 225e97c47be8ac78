package store

import (
	"context"
	"errors"
	"time"

	"github.com/serroba/wormhole/internal/cache"
	"github.com/serroba/wormhole/internal/shortener"
	"go.uber.org/zap"
)

// CachedRepository wraps a Repository with a read-through URL cache. Writes go
// to the repository first and then drop the code from every cache tier.
type CachedRepository struct {
	store  shortener.Repository
	cache  cache.URLCache
	logger *zap.Logger
	now    func() time.Time
}

// NewCachedRepository creates a new cached repository decorator.
func NewCachedRepository(store shortener.Repository, c cache.URLCache, logger *zap.Logger) *CachedRepository {
	return &CachedRepository{
		store:  store,
		cache:  c,
		logger: logger,
		now:    time.Now,
	}
}

// Get serves from the cache, falling through to the repository on a miss.
// Concurrent misses for one code share a single repository read.
func (r *CachedRepository) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	rec, err := r.get(ctx, code)
	if err != nil || !rec.Expired(r.now()) {
		return rec, err
	}

	// The cached copy outlived the record. Drop it and read once more.
	r.invalidate(ctx, code, "expired")

	rec, err = r.get(ctx, code)
	if err != nil {
		return nil, err
	}

	if rec.Expired(r.now()) {
		return nil, shortener.ErrNotFound
	}

	return rec, nil
}

func (r *CachedRepository) get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	entry, err := r.cache.GetOrCompute(ctx, code.String(), func(ctx context.Context) (cache.Entry, error) {
		rec, err := r.store.Get(ctx, code)
		if errors.Is(err, shortener.ErrNotFound) {
			return cache.Absent(), nil
		}

		if err != nil {
			return cache.Entry{}, err
		}

		return cache.Found(rec), nil
	})
	if err != nil {
		return nil, err
	}

	if entry.IsAbsent() {
		return nil, shortener.ErrNotFound
	}

	return entry.Record, nil
}

func (r *CachedRepository) Exists(ctx context.Context, code shortener.Code) (bool, error) {
	_, err := r.Get(ctx, code)
	if errors.Is(err, shortener.ErrNotFound) {
		return false, nil
	}

	return err == nil, err
}

func (r *CachedRepository) Put(ctx context.Context, code shortener.Code, rec *shortener.Record, overwrite bool) error {
	if err := r.store.Put(ctx, code, rec, overwrite); err != nil {
		return err
	}

	r.invalidate(ctx, code, "put")

	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, code shortener.Code) (bool, error) {
	removed, err := r.store.Delete(ctx, code)
	if err != nil {
		return false, err
	}

	r.invalidate(ctx, code, "delete")

	return removed, nil
}

func (r *CachedRepository) invalidate(ctx context.Context, code shortener.Code, reason string) {
	if err := r.cache.Delete(ctx, code.String()); err != nil {
		r.logger.Warn("cache invalidation failed",
			zap.String("code", code.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

var _ shortener.Repository = (*CachedRepository)(nil)
