package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/wormhole/internal/cache"
	"github.com/serroba/wormhole/internal/shortener"
	"github.com/serroba/wormhole/internal/store"
	"go.uber.org/zap"
)

const (
	localCleanupInterval = time.Minute
	failoverBackoff      = 100 * time.Millisecond
)

// CacheTiers are the cache tiers of this process. Local is exposed so the
// invalidation consumer can evict from it.
type CacheTiers struct {
	Local  *cache.Local
	Remote cache.Store
	Stack  *cache.Layered

	ha        *cache.HARedis
	resolver  *cache.SentinelResolver
	stopWatch context.CancelFunc
}

func (t *CacheTiers) Shutdown() error {
	if t.stopWatch != nil {
		t.stopWatch()
	}

	var errs []error
	if t.ha != nil {
		errs = append(errs, t.ha.Close())
	}

	if t.resolver != nil {
		errs = append(errs, t.resolver.Close())
	}

	return errors.Join(errs...)
}

func (o *Options) ttlPolicy() cache.TTLPolicy {
	return cache.TTLPolicy{
		Positive: seconds(o.CacheTTLSeconds),
		Negative: seconds(o.NegativeCacheTTLSeconds),
	}
}

// CachePackage provides the cache tiers and the coalescing cache over them.
//
// With sentinels configured the remote tier resolves the primary itself and
// switches on +switch-master notifications. Otherwise it shares the Redis client.
// A Bloom filter can front the remote tier to skip reads for unseen codes.
func CachePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*CacheTiers, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		tiers := &CacheTiers{Local: cache.NewLocal(seconds(opts.LocalCacheTTLSeconds), localCleanupInterval)}
		stack := []cache.Store{tiers.Local}

		if opts.RemoteCache {
			if sentinels := opts.sentinels(); len(sentinels) > 0 {
				tiers.startHA(opts, sentinels, logger)
			} else {
				tiers.Remote = cache.NewRedis(do.MustInvoke[*RedisConn](i).UniversalClient, cache.DefaultKeyPrefix)
			}

			if opts.BloomFilter {
				bloom, err := newBloom(opts, tiers.Remote)
				if err != nil {
					_ = tiers.Shutdown()

					return nil, err
				}

				tiers.Remote = bloom
			}

			stack = append(stack, tiers.Remote)
		}

		tiers.Stack = cache.NewLayered(opts.ttlPolicy(), logger, stack...)

		return tiers, nil
	})

	do.Provide(i, func(i *do.Injector) (*cache.Cache, error) {
		opts := do.MustInvoke[*Options](i)
		tiers := do.MustInvoke[*CacheTiers](i)

		return cache.New(tiers.Stack, cache.Config{
			TTL:     opts.ttlPolicy(),
			MaxWait: millis(opts.CoalesceWaitMs),
		}, do.MustInvoke[*zap.Logger](i)), nil
	})
}

func (t *CacheTiers) startHA(opts *Options, sentinels []string, logger *zap.Logger) {
	t.resolver = cache.NewSentinelResolver(opts.RedisMaster, sentinels, opts.RedisPassword, logger)
	t.ha = cache.NewHARedis(t.resolver, func(addr string) cache.Store {
		return cache.NewRedis(redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: opts.RedisPassword,
		}), cache.DefaultKeyPrefix)
	}, cache.HAConfig{MaxRetries: opts.FailoverRetries, RetryBackoff: failoverBackoff}, logger)
	t.Remote = t.ha

	ctx, cancel := context.WithCancel(context.Background())
	t.stopWatch = cancel

	go func() {
		if err := t.resolver.Watch(ctx, t.ha.SwitchPrimary); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sentinel watch stopped", zap.Error(err))
		}
	}()
}

func newBloom(opts *Options, remote cache.Store) (*cache.Bloom, error) {
	cfg, err := opts.bloomConfig()
	if err != nil {
		return nil, err
	}

	return cache.NewBloom(remote, cfg)
}

// RepositoryPackage provides the cached link repository over the configured storage.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var base shortener.Repository

		switch opts.Storage {
		case "memory":
			base = store.NewMemoryStore()
		case "postgres":
			base = store.NewPostgresStore(do.MustInvoke[*PostgresPool](i).Pool)
		case "redis":
			base = store.NewRedisStore(do.MustInvoke[*RedisConn](i).UniversalClient)
		default:
			return nil, fmt.Errorf("unknown storage %q", opts.Storage)
		}

		logger.Info("link repository ready", zap.String("storage", opts.Storage))

		return store.NewCachedRepository(base, do.MustInvoke[*cache.Cache](i), logger), nil
	})
}
