package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serroba/wormhole/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLayered_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("first tier hit wins", func(t *testing.T) {
		l1, l2 := newMemStore(), newMemStore()
		l1.items["abc"] = cache.Found(record("abc", "https://local"))
		l2.items["abc"] = cache.Found(record("abc", "https://remote"))
		layered := cache.NewLayered(testPolicy, zap.NewNop(), l1, l2)

		entry, ok, err := layered.Get(ctx, "abc")

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://local", entry.Record.OriginalURL)
		assert.Zero(t, l2.gets)
	})

	t.Run("lower tier hit is promoted", func(t *testing.T) {
		l1, l2 := newMemStore(), newMemStore()
		l2.items["abc"] = cache.Found(record("abc", "https://remote"))
		layered := cache.NewLayered(testPolicy, zap.NewNop(), l1, l2)

		entry, ok, err := layered.Get(ctx, "abc")

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://remote", entry.Record.OriginalURL)
		assert.True(t, l1.has("abc"))
		assert.Equal(t, time.Hour, l1.ttls["abc"])
	})

	t.Run("absent markers are promoted with the negative ttl", func(t *testing.T) {
		l1, l2 := newMemStore(), newMemStore()
		l2.items["nope"] = cache.Absent()
		layered := cache.NewLayered(testPolicy, zap.NewNop(), l1, l2)

		entry, ok, err := layered.Get(ctx, "nope")

		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, entry.IsAbsent())
		assert.Equal(t, time.Minute, l1.ttls["nope"])
	})

	t.Run("failing tier counts as a miss", func(t *testing.T) {
		l1, l2 := newMemStore(), newMemStore()
		l1.items["abc"] = cache.Found(record("abc", "https://local"))
		l1.setFailures(errors.New("local broken"), nil, nil)
		l2.items["abc"] = cache.Found(record("abc", "https://remote"))
		layered := cache.NewLayered(testPolicy, zap.NewNop(), l1, l2)

		entry, ok, err := layered.Get(ctx, "abc")

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "https://remote", entry.Record.OriginalURL)
	})

	t.Run("miss everywhere", func(t *testing.T) {
		l1, l2 := newMemStore(), newMemStore()
		l2.setFailures(errors.New("remote down"), nil, nil)
		layered := cache.NewLayered(testPolicy, zap.NewNop(), l1, l2)

		_, ok, err := layered.Get(ctx, "abc")

		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLayered_SetDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("set writes every tier", func(t *testing.T) {
		l1, l2 := newMemStore(), newMemStore()
		layered := cache.NewLayered(testPolicy, zap.NewNop(), l1, l2)

		require.NoError(t, layered.Set(ctx, "abc", cache.Absent(), time.Minute))

		assert.True(t, l1.has("abc"))
		assert.True(t, l2.has("abc"))
	})

	t.Run("set reports failures but still writes other tiers", func(t *testing.T) {
		l1, l2 := newMemStore(), newMemStore()
		l2.setFailures(nil, errors.New("remote down"), nil)
		layered := cache.NewLayered(testPolicy, zap.NewNop(), l1, l2)

		err := layered.Set(ctx, "abc", cache.Absent(), time.Minute)

		require.Error(t, err)
		assert.True(t, l1.has("abc"))
	})

	t.Run("delete clears every tier and joins errors", func(t *testing.T) {
		l1, l2 := newMemStore(), newMemStore()
		l1.items["abc"] = cache.Absent()
		l2.items["abc"] = cache.Absent()
		l2.setFailures(nil, nil, errors.New("remote down"))
		layered := cache.NewLayered(testPolicy, zap.NewNop(), l1, l2)

		err := layered.Delete(ctx, "abc")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote down")
		assert.False(t, l1.has("abc"))
	})
}

func TestLayered_WithCache(t *testing.T) {
	ctx := context.Background()
	local := cache.NewLocal(time.Minute, time.Minute)
	remote := newMemStore()
	c := cache.New(cache.NewLayered(testPolicy, zap.NewNop(), local, remote), cache.Config{TTL: testPolicy}, zap.NewNop())

	calls := 0
	compute := func(context.Context) (cache.Entry, error) {
		calls++

		return cache.Found(record("abc", "https://a")), nil
	}

	_, err := c.GetOrCompute(ctx, "abc", compute)
	require.NoError(t, err)

	assert.True(t, remote.has("abc"))

	_, ok, _ := local.Get(ctx, "abc")
	assert.True(t, ok)

	local.Flush()

	_, err = c.GetOrCompute(ctx, "abc", compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "remote tier serves the second read")

	_, ok, _ = local.Get(ctx, "abc")
	assert.True(t, ok, "remote hit is promoted back into the local tier")
}
