package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/samber/do"
	"github.com/serroba/wormhole/internal/container"
	"go.uber.org/zap"
)

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := container.NewServer(options)
		logger := do.MustInvoke[*zap.Logger](injector)

		hooks.OnStart(func() {
			invalidation := do.MustInvoke[*container.Invalidation](injector)
			if err := invalidation.Start(context.Background()); err != nil {
				logger.Fatal("failed to start cache invalidation", zap.Error(err))
			}

			server := do.MustInvoke[*container.HTTPServer](injector)

			logger.Info("server starting",
				zap.String("addr", server.Addr),
				zap.String("storage", options.Storage),
				zap.String("generator", options.Generator),
				zap.Int("node_id", options.NodeID),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			// Services stop in reverse order: the server drains before its backends close.
			if err := injector.Shutdown(); err != nil {
				logger.Error("shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Run()
}
