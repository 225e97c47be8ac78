package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/wormhole/internal/ratelimit"
)

// RateLimitRedisStore keeps request logs in Redis sorted sets scored by
// timestamp, so every server instance shares one budget per client.
type RateLimitRedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client redis.UniversalClient) *RateLimitRedisStore {
	return &RateLimitRedisStore{
		client: client,
		prefix: "wh:rl:",
		now:    time.Now,
	}
}

func (s *RateLimitRedisStore) Record(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := s.now()
	zkey := s.prefix + key
	cutoff := now.Add(-window).UnixMicro()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, zkey, redis.Z{
		Score:  float64(now.UnixMicro()),
		Member: uuid.NewString(),
	})
	count := pipe.ZCard(ctx, zkey)
	pipe.PExpire(ctx, zkey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit record: %w", err)
	}

	return count.Val(), nil
}

var _ ratelimit.Store = (*RateLimitRedisStore)(nil)
