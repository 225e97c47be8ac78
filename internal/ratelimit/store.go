package ratelimit

import (
	"context"
	"time"
)

// Store keeps sliding-window request logs.
type Store interface {
	// Record logs one request under key and returns how many requests key
	// made within the trailing window, this one included.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
