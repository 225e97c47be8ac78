package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink records lifecycle events in the structured log. Its methods have
// the shape of messaging handlers.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) LinkCreated(_ context.Context, event *LinkCreated) error {
	fields := []zap.Field{
		zap.String("code", event.Code),
		zap.String("kind", event.Kind),
		zap.String("originalUrl", event.OriginalURL),
		zap.Time("createdAt", event.CreatedAt),
		zap.Uint8("nodeId", event.NodeID),
	}
	if event.ExpireAt != nil {
		fields = append(fields, zap.Time("expireAt", *event.ExpireAt))
	}

	s.logger.Info("link created", fields...)

	return nil
}

func (s *LogSink) LinkResolved(_ context.Context, event *LinkResolved) error {
	s.logger.Info("link resolved",
		zap.String("code", event.Code),
		zap.Time("resolvedAt", event.ResolvedAt),
		zap.String("referrer", event.Referrer),
	)

	return nil
}

func (s *LogSink) LinkDeleted(_ context.Context, event *LinkDeleted) error {
	s.logger.Info("link deleted",
		zap.String("code", event.Code),
		zap.Time("deletedAt", event.DeletedAt),
		zap.Uint8("nodeId", event.NodeID),
	)

	return nil
}
