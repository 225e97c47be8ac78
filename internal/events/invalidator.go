package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Evictor drops a key from a node-local cache tier.
type Evictor interface {
	Delete(ctx context.Context, key string) error
}

// Invalidator keeps node-local caches coherent with writes made on other nodes.
// A created event matters too: the local tier may hold an absent marker for a
// code that was just claimed as a custom alias.
type Invalidator struct {
	local  Evictor
	logger *zap.Logger
}

// NewInvalidator creates an invalidator evicting from local.
func NewInvalidator(local Evictor, logger *zap.Logger) *Invalidator {
	return &Invalidator{local: local, logger: logger}
}

func (i *Invalidator) LinkCreated(ctx context.Context, event *LinkCreated) error {
	return i.evict(ctx, event.Code)
}

func (i *Invalidator) LinkDeleted(ctx context.Context, event *LinkDeleted) error {
	return i.evict(ctx, event.Code)
}

func (i *Invalidator) evict(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}

	if err := i.local.Delete(ctx, code); err != nil {
		return fmt.Errorf("evict %q: %w", code, err)
	}

	i.logger.Debug("evicted local cache entry", zap.String("code", code))

	return nil
}
