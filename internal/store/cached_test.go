package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/wormhole/internal/cache"
	"github.com/serroba/wormhole/internal/shortener"
	"github.com/serroba/wormhole/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// countingRepo counts reads and can block or fail them.
type countingRepo struct {
	*store.MemoryStore

	gets    atomic.Int32
	getErr  error
	release chan struct{}
}

func newCountingRepo() *countingRepo {
	return &countingRepo{MemoryStore: store.NewMemoryStore()}
}

func (r *countingRepo) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	r.gets.Add(1)

	if r.release != nil {
		<-r.release
	}

	if r.getErr != nil {
		return nil, r.getErr
	}

	return r.MemoryStore.Get(ctx, code)
}

// pausingRepo reads the record, then waits before returning it.
type pausingRepo struct {
	*store.MemoryStore

	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *pausingRepo) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	rec, err := r.MemoryStore.Get(ctx, code)

	r.once.Do(func() {
		close(r.read)
		<-r.release
	})

	return rec, err
}

// brokenCache fails every invalidation.
type brokenCache struct {
	cache.URLCache
}

func (brokenCache) Delete(context.Context, string) error {
	return errors.New("cache down")
}

func newCachedFixture() (*countingRepo, *cache.Local, *store.CachedRepository) {
	repo := newCountingRepo()
	local := cache.NewLocal(0, time.Minute)
	c := cache.New(local, cache.Config{
		TTL: cache.TTLPolicy{Positive: time.Hour, Negative: time.Minute},
	}, zap.NewNop())

	return repo, local, store.NewCachedRepository(repo, c, zap.NewNop())
}

func TestCachedRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through once", func(t *testing.T) {
		repo, _, cached := newCachedFixture()
		rec := newRecord("abc123", "https://example.com")
		require.NoError(t, repo.Put(ctx, rec.Code, rec, false))

		for range 3 {
			got, err := cached.Get(ctx, rec.Code)
			require.NoError(t, err)
			assert.Equal(t, "https://example.com", got.OriginalURL)
		}

		assert.Equal(t, int32(1), repo.gets.Load())
	})

	t.Run("caches absence", func(t *testing.T) {
		repo, local, cached := newCachedFixture()
		code := shortener.TrustedCode("missing", shortener.KindCustom)

		for range 2 {
			_, err := cached.Get(ctx, code)
			assert.ErrorIs(t, err, shortener.ErrNotFound)
		}

		assert.Equal(t, int32(1), repo.gets.Load())

		entry, ok, _ := local.Get(ctx, "missing")
		require.True(t, ok)
		assert.True(t, entry.IsAbsent())
	})

	t.Run("concurrent misses share one read", func(t *testing.T) {
		repo, _, cached := newCachedFixture()
		rec := newRecord("hot", "https://hot.example.com")
		require.NoError(t, repo.Put(ctx, rec.Code, rec, false))
		repo.release = make(chan struct{})

		var wg sync.WaitGroup

		for range 25 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				got, err := cached.Get(ctx, rec.Code)
				assert.NoError(t, err)

				if got != nil {
					assert.Equal(t, "https://hot.example.com", got.OriginalURL)
				}
			}()
		}

		time.Sleep(50 * time.Millisecond)
		close(repo.release)
		wg.Wait()

		assert.Equal(t, int32(1), repo.gets.Load())
	})

	t.Run("storage errors surface and are not cached", func(t *testing.T) {
		repo, local, cached := newCachedFixture()
		repo.getErr = shortener.ErrStorageFailure
		code := shortener.TrustedCode("abc123", shortener.KindCustom)

		_, err := cached.Get(ctx, code)

		require.ErrorIs(t, err, shortener.ErrStorageFailure)
		assert.Zero(t, local.Len())
	})

	t.Run("expired cached record is refetched", func(t *testing.T) {
		repo, local, cached := newCachedFixture()
		fresh := newRecord("abc123", "https://fresh.example.com")
		require.NoError(t, repo.Put(ctx, fresh.Code, fresh, false))

		stale := newRecord("abc123", "https://stale.example.com")
		stale.ExpireAt = time.Now().Add(-time.Second)
		require.NoError(t, local.Set(ctx, "abc123", cache.Found(stale), time.Minute))

		got, err := cached.Get(ctx, fresh.Code)

		require.NoError(t, err)
		assert.Equal(t, "https://fresh.example.com", got.OriginalURL)
		assert.Equal(t, int32(1), repo.gets.Load())
	})

	t.Run("expired everywhere is not found", func(t *testing.T) {
		repo, local, cached := newCachedFixture()
		stale := newRecord("abc123", "https://stale.example.com")
		stale.ExpireAt = time.Now().Add(-time.Second)
		require.NoError(t, local.Set(ctx, "abc123", cache.Found(stale), time.Minute))

		_, err := cached.Get(ctx, stale.Code)

		require.ErrorIs(t, err, shortener.ErrNotFound)
		assert.Equal(t, int32(1), repo.gets.Load())
	})

	t.Run("exists follows get", func(t *testing.T) {
		repo, _, cached := newCachedFixture()
		rec := newRecord("abc123", "https://example.com")
		require.NoError(t, repo.Put(ctx, rec.Code, rec, false))

		ok, err := cached.Exists(ctx, rec.Code)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = cached.Exists(ctx, shortener.TrustedCode("other", shortener.KindCustom))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCachedRepository_Writes(t *testing.T) {
	ctx := context.Background()

	t.Run("put clears a cached absence", func(t *testing.T) {
		_, _, cached := newCachedFixture()
		rec := newRecord("alias", "https://example.com")

		_, err := cached.Get(ctx, rec.Code)
		require.ErrorIs(t, err, shortener.ErrNotFound)

		require.NoError(t, cached.Put(ctx, rec.Code, rec, false))

		got, err := cached.Get(ctx, rec.Code)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", got.OriginalURL)
	})

	t.Run("put conflict leaves the cache alone", func(t *testing.T) {
		repo, local, cached := newCachedFixture()
		rec := newRecord("alias", "https://example.com")
		require.NoError(t, repo.Put(ctx, rec.Code, rec, false))
		_, err := cached.Get(ctx, rec.Code)
		require.NoError(t, err)

		err = cached.Put(ctx, rec.Code, newRecord("alias", "https://other.com"), false)

		require.ErrorIs(t, err, shortener.ErrAliasConflict)
		assert.Equal(t, 1, local.Len())
	})

	t.Run("delete drops the cached record", func(t *testing.T) {
		repo, local, cached := newCachedFixture()
		rec := newRecord("abc123", "https://example.com")
		require.NoError(t, repo.Put(ctx, rec.Code, rec, false))
		_, err := cached.Get(ctx, rec.Code)
		require.NoError(t, err)

		removed, err := cached.Delete(ctx, rec.Code)
		require.NoError(t, err)
		assert.True(t, removed)

		_, ok, _ := local.Get(ctx, "abc123")
		assert.False(t, ok)

		_, err = cached.Get(ctx, rec.Code)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("delete during an in-flight read is not undone by it", func(t *testing.T) {
		repo := &pausingRepo{
			MemoryStore: store.NewMemoryStore(),
			read:        make(chan struct{}),
			release:     make(chan struct{}),
		}
		local := cache.NewLocal(0, time.Minute)
		c := cache.New(local, cache.Config{
			TTL: cache.TTLPolicy{Positive: time.Hour, Negative: time.Minute},
		}, zap.NewNop())
		cached := store.NewCachedRepository(repo, c, zap.NewNop())

		rec := newRecord("abc123", "https://example.com")
		require.NoError(t, repo.Put(ctx, rec.Code, rec, false))

		done := make(chan struct{})

		go func() {
			defer close(done)

			got, err := cached.Get(ctx, rec.Code)
			assert.NoError(t, err)

			if got != nil {
				assert.Equal(t, "https://example.com", got.OriginalURL)
			}
		}()

		<-repo.read

		removed, err := cached.Delete(ctx, rec.Code)
		require.NoError(t, err)
		assert.True(t, removed)

		close(repo.release)
		<-done

		_, ok, _ := local.Get(ctx, "abc123")
		assert.False(t, ok)

		_, err = cached.Get(ctx, rec.Code)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("invalidation failures are logged, not returned", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		repo := newCountingRepo()
		cached := store.NewCachedRepository(repo, brokenCache{}, zap.New(core))
		rec := newRecord("abc123", "https://example.com")

		require.NoError(t, cached.Put(ctx, rec.Code, rec, false))

		removed, err := cached.Delete(ctx, rec.Code)
		require.NoError(t, err)
		assert.True(t, removed)

		entries := logs.FilterMessage("cache invalidation failed").All()
		require.Len(t, entries, 2)
		assert.Equal(t, "abc123", entries[0].ContextMap()["code"])
		assert.Equal(t, "put", entries[0].ContextMap()["reason"])
	})
}

// downSentinel never finds a primary.
type downSentinel struct {
	calls atomic.Int32
}

func (s *downSentinel) Primary(context.Context) (string, error) {
	s.calls.Add(1)

	return "", errors.New("no sentinel reachable")
}

// refusingPrimary resolves but drops every command.
type refusingPrimary struct {
	calls atomic.Int32
}

func (p *refusingPrimary) Get(context.Context, string) (cache.Entry, bool, error) {
	p.calls.Add(1)

	return cache.Entry{}, false, cache.ErrUnavailable
}

func (p *refusingPrimary) Set(context.Context, string, cache.Entry, time.Duration) error {
	p.calls.Add(1)

	return cache.ErrUnavailable
}

func (p *refusingPrimary) Delete(context.Context, string) error {
	p.calls.Add(1)

	return cache.ErrUnavailable
}

type fixedPrimary string

func (f fixedPrimary) Primary(context.Context) (string, error) {
	return string(f), nil
}

func newHAFixture(resolver cache.PrimaryResolver, factory cache.StoreFactory) (*store.MemoryStore, *store.CachedRepository) {
	policy := cache.TTLPolicy{Positive: time.Hour, Negative: time.Minute}
	repo := store.NewMemoryStore()
	remote := cache.NewHARedis(resolver, factory, cache.HAConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, zap.NewNop())
	layered := cache.NewLayered(policy, zap.NewNop(), cache.NewLocal(0, time.Minute), remote)
	c := cache.New(layered, cache.Config{TTL: policy}, zap.NewNop())

	return repo, store.NewCachedRepository(repo, c, zap.NewNop())
}

func TestCachedRepository_RemoteFailover(t *testing.T) {
	ctx := context.Background()

	t.Run("no reachable primary falls back to storage", func(t *testing.T) {
		sentinel := &downSentinel{}

		var dialed atomic.Int32

		repo, cached := newHAFixture(sentinel, func(string) cache.Store {
			dialed.Add(1)

			return &refusingPrimary{}
		})
		rec := newRecord("abc123", "https://example.com")
		require.NoError(t, repo.Put(ctx, rec.Code, rec, false))

		got, err := cached.Get(ctx, rec.Code)

		require.NoError(t, err)
		assert.Equal(t, "https://example.com", got.OriginalURL)
		assert.Positive(t, sentinel.calls.Load())
		assert.Zero(t, dialed.Load())

		_, err = cached.Get(ctx, shortener.TrustedCode("missing", shortener.KindCustom))
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("primary refusing commands falls back to storage", func(t *testing.T) {
		primary := &refusingPrimary{}
		repo, cached := newHAFixture(fixedPrimary("10.0.0.1:6379"), func(string) cache.Store {
			return primary
		})
		rec := newRecord("abc123", "https://example.com")

		require.NoError(t, cached.Put(ctx, rec.Code, rec, false))

		got, err := cached.Get(ctx, rec.Code)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", got.OriginalURL)
		assert.Positive(t, primary.calls.Load())

		removed, err := cached.Delete(ctx, rec.Code)
		require.NoError(t, err)
		assert.True(t, removed)

		_, err = repo.Get(ctx, rec.Code)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})
}
