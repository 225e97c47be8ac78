package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/wormhole/internal/ratelimit"
	"github.com/serroba/wormhole/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("records and counts requests", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		for want := int64(1); want <= 3; want++ {
			count, err := s.Record(ctx, "key1", time.Minute)

			require.NoError(t, err)
			assert.Equal(t, want, count)
		}
	})

	t.Run("tracks keys independently", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		_, _ = s.Record(ctx, "key1", time.Minute)
		_, _ = s.Record(ctx, "key1", time.Minute)

		count, err := s.Record(ctx, "key2", time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "key2 should have its own counter")
	})

	t.Run("prunes expired entries", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		_, _ = s.Record(ctx, "key1", 50*time.Millisecond)
		_, _ = s.Record(ctx, "key1", 50*time.Millisecond)

		time.Sleep(60 * time.Millisecond)

		count, err := s.Record(ctx, "key1", 50*time.Millisecond)

		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "expired entries should be pruned")
	})

	t.Run("sweep drops idle keys", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		_, _ = s.Record(ctx, "idle", time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		_, _ = s.Record(ctx, "busy", time.Minute)

		removed := s.Sweep(10 * time.Millisecond)

		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, s.Keys())
	})

	t.Run("drives the limiter", func(t *testing.T) {
		policy := ratelimit.NewPolicy().With(ratelimit.ScopeCreate, ratelimit.LimitConfig{Window: time.Minute, Max: 2})
		limiter := ratelimit.NewLimiter(store.NewRateLimitMemoryStore(), policy)
		scopes := []ratelimit.Scope{ratelimit.ScopeCreate}

		for range 2 {
			exceeded, err := limiter.Allow(ctx, "client", scopes)
			require.NoError(t, err)
			assert.Nil(t, exceeded)
		}

		exceeded, err := limiter.Allow(ctx, "client", scopes)
		require.NoError(t, err)
		assert.NotNil(t, exceeded)
	})
}
