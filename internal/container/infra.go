package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/wormhole/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const connectTimeout = 5 * time.Second

// LoggerPackage provides the process logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		return NewLogger(opts.LogFormat, opts.LogLevel)
	})
}

// NewLogger builds a JSON (production) or console (development) logger.
func NewLogger(format, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// RedisConn owns the shared Redis client.
type RedisConn struct {
	redis.UniversalClient
}

func (c *RedisConn) Shutdown() error {
	return c.Close()
}

// RedisPackage provides the shared Redis client. With sentinels configured it
// follows the master through failovers.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*RedisConn, error) {
		opts := do.MustInvoke[*Options](i)

		if sentinels := opts.sentinels(); len(sentinels) > 0 {
			return &RedisConn{redis.NewFailoverClient(&redis.FailoverOptions{
				MasterName:       opts.RedisMaster,
				SentinelAddrs:    sentinels,
				Password:         opts.RedisPassword,
				SentinelPassword: opts.RedisPassword,
			})}, nil
		}

		return &RedisConn{redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
		})}, nil
	})
}

// PostgresPool owns the connection pool.
type PostgresPool struct {
	*pgxpool.Pool
}

func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

// PostgresPackage provides a connected pool, migrated when Options.Migrate is set.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*PostgresPool, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		if opts.Migrate {
			if err := store.Migrate(pool, logger); err != nil {
				pool.Close()

				return nil, err
			}
		}

		return &PostgresPool{pool}, nil
	})
}
