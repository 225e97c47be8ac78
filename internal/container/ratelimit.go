package container

import (
	"context"
	"time"

	"github.com/samber/do"
	"github.com/serroba/wormhole/internal/ratelimit"
	"github.com/serroba/wormhole/internal/store"
	"go.uber.org/zap"
)

const sweepInterval = time.Minute

func (o *Options) rates() ratelimit.Rates {
	return ratelimit.Rates{
		GlobalPerMinute:   int64(o.RateLimitGlobal),
		RedirectPerMinute: int64(o.RateLimitRedirect),
		CreatePerMinute:   int64(o.RateLimitCreate),
		CreatePerHour:     int64(o.RateLimitHourly),
		ManagePerMinute:   int64(o.RateLimitManage),
	}
}

// sweptStore drops idle in-memory counters until shut down.
type sweptStore struct {
	*store.RateLimitMemoryStore
	stop context.CancelFunc
}

func (s *sweptStore) Shutdown() error {
	s.stop()

	return nil
}

func newSweptStore(maxWindow time.Duration, logger *zap.Logger) *sweptStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &sweptStore{RateLimitMemoryStore: store.NewRateLimitMemoryStore(), stop: cancel}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(maxWindow); n > 0 {
					logger.Debug("swept rate limit counters", zap.Int("removed", n), zap.Int("remaining", s.Keys()))
				}
			}
		}
	}()

	return s
}

// RateLimitPackage provides the limiter and its counter store.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (ratelimit.Store, error) {
		if do.MustInvoke[*Options](i).RateLimitStore == "redis" {
			return store.NewRateLimitRedisStore(do.MustInvoke[*RedisConn](i).UniversalClient), nil
		}

		return newSweptStore(time.Hour, do.MustInvoke[*zap.Logger](i)), nil
	})

	do.Provide(i, func(i *do.Injector) (*ratelimit.Limiter, error) {
		policy := do.MustInvoke[*Options](i).rates().Policy()

		return ratelimit.NewLimiter(do.MustInvoke[ratelimit.Store](i), policy), nil
	})
}
