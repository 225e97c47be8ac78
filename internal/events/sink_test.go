package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serroba/wormhole/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := events.NewLogSink(zap.New(core))
	expireAt := time.Now().Add(time.Hour)

	t.Run("logs created events", func(t *testing.T) {
		err := sink.LinkCreated(context.Background(), &events.LinkCreated{
			Code:        "abc123",
			Kind:        "custom",
			OriginalURL: "https://example.com",
			ExpireAt:    &expireAt,
			CreatedAt:   time.Now(),
		})

		require.NoError(t, err)

		entries := logs.FilterMessage("link created").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "abc123", entries[0].ContextMap()["code"])
		assert.Contains(t, entries[0].ContextMap(), "expireAt")
	})

	t.Run("logs resolved events", func(t *testing.T) {
		err := sink.LinkResolved(context.Background(), &events.LinkResolved{
			Code:       "abc123",
			ResolvedAt: time.Now(),
			Referrer:   "https://referrer.com",
		})

		require.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("link resolved").Len())
	})

	t.Run("logs deleted events", func(t *testing.T) {
		err := sink.LinkDeleted(context.Background(), &events.LinkDeleted{
			Code:      "abc123",
			DeletedAt: time.Now(),
		})

		require.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("link deleted").Len())
	})
}

type fakeEvictor struct {
	deleted []string
	err     error
}

func (f *fakeEvictor) Delete(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}

	f.deleted = append(f.deleted, key)

	return nil
}

func TestInvalidator(t *testing.T) {
	t.Run("evicts created and deleted codes", func(t *testing.T) {
		local := &fakeEvictor{}
		inv := events.NewInvalidator(local, zap.NewNop())

		require.NoError(t, inv.LinkCreated(context.Background(), &events.LinkCreated{Code: "alias"}))
		require.NoError(t, inv.LinkDeleted(context.Background(), &events.LinkDeleted{Code: "gone"}))

		assert.Equal(t, []string{"alias", "gone"}, local.deleted)
	})

	t.Run("ignores events without a code", func(t *testing.T) {
		local := &fakeEvictor{}
		inv := events.NewInvalidator(local, zap.NewNop())

		require.NoError(t, inv.LinkDeleted(context.Background(), &events.LinkDeleted{}))

		assert.Empty(t, local.deleted)
	})

	t.Run("returns eviction errors so the message is retried", func(t *testing.T) {
		local := &fakeEvictor{err: errors.New("boom")}
		inv := events.NewInvalidator(local, zap.NewNop())

		err := inv.LinkDeleted(context.Background(), &events.LinkDeleted{Code: "gone"})

		assert.Error(t, err)
	})
}

func TestRequestMeta(t *testing.T) {
	t.Run("round trips through context", func(t *testing.T) {
		meta := events.RequestMeta{ClientIP: "10.0.0.1", UserAgent: "TestAgent/1.0", Referrer: "https://ref"}

		ctx := events.ContextWithRequestMeta(context.Background(), meta)

		assert.Equal(t, meta, events.RequestMetaFromContext(ctx))
	})

	t.Run("empty when absent", func(t *testing.T) {
		assert.Equal(t, events.RequestMeta{}, events.RequestMetaFromContext(context.Background()))
	})
}
