package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do"
	"github.com/serroba/wormhole/internal/container"
	"github.com/serroba/wormhole/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	injector := container.NewConsumer(&container.Options{
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisSentinels: env("REDIS_SENTINELS", ""),
		RedisMaster:    env("REDIS_MASTER", "mymaster"),
		RedisPassword:  env("REDIS_PASSWORD", ""),
		Events:         env("EVENTS", "redis"),
		LogFormat:      env("LOG_FORMAT", "console"),
		LogLevel:       env("LOG_LEVEL", "info"),
	})

	logger := do.MustInvoke[*zap.Logger](injector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := do.MustInvoke[*messaging.Router](injector)
	if err := router.Start(ctx); err != nil {
		logger.Fatal("failed to start analytics consumer", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("shutting down")

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}
