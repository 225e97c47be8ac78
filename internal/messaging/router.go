package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.uber.org/zap"
)

const (
	defaultRetries       = 3
	defaultRetryInterval = 100 * time.Millisecond
)

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

// RouterOption tunes a Router.
type RouterOption func(*routerOptions)

type routerOptions struct {
	retries       int
	retryInterval time.Duration
}

// WithRetry sets how often a failing handler is retried in place, and the
// pause between attempts, before the message is nacked.
func WithRetry(retries int, interval time.Duration) RouterOption {
	return func(o *routerOptions) {
		o.retries = retries
		o.retryInterval = interval
	}
}

// Router runs typed event handlers over one subscriber.
//
// Handler errors and panics are retried, then nack the message so the
// transport redelivers it. Payloads that cannot be decoded are acked and
// logged, since no retry can fix them.
type Router struct {
	name       string
	router     *message.Router
	subscriber message.Subscriber
	logger     *zap.Logger
	handlers   int
}

// NewRouter creates a router named name. The router owns subscriber and
// closes it on shutdown.
func NewRouter(name string, subscriber message.Subscriber, logger *zap.Logger, opts ...RouterOption) (*Router, error) {
	o := routerOptions{retries: defaultRetries, retryInterval: defaultRetryInterval}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With(zap.String("router", name))
	wmLogger := NewZapLogger(logger)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router %s: %w", name, err)
	}

	if o.retries > 0 {
		router.AddMiddleware(middleware.Retry{
			MaxRetries:      o.retries,
			InitialInterval: o.retryInterval,
			Logger:          wmLogger,
		}.Middleware)
	}

	router.AddMiddleware(middleware.Recoverer)

	return &Router{
		name:       name,
		router:     router,
		subscriber: subscriber,
		logger:     logger,
	}, nil
}

// Handle registers handler for the events published on topic.
func Handle[T any](r *Router, topic string, handler Handler[T]) {
	r.handlers++

	r.router.AddNoPublisherHandler(r.name+"."+topic, topic, r.subscriber, func(msg *message.Message) error {
		var event T
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			r.logger.Error("dropping undecodable event",
				zap.String("topic", topic),
				zap.String("messageId", msg.UUID),
				zap.Error(err),
			)

			return nil
		}

		if err := handler(msg.Context(), &event); err != nil {
			return fmt.Errorf("handle %s event %s: %w", topic, msg.UUID, err)
		}

		r.logger.Debug("processed event", zap.String("topic", topic), zap.String("messageId", msg.UUID))

		return nil
	})
}

// Start subscribes every handler and returns once they are all running. The
// handlers stop when ctx is done or Shutdown is called.
func (r *Router) Start(ctx context.Context) error {
	errc := make(chan error, 1)

	go func() {
		errc <- r.router.Run(ctx)
	}()

	select {
	case <-r.router.Running():
	case err := <-errc:
		if err == nil {
			err = errors.New("stopped before running")
		}

		return fmt.Errorf("start router %s: %w", r.name, err)
	}

	r.logger.Info("event router started", zap.Int("handlers", r.handlers))

	go func() {
		if err := <-errc; err != nil {
			r.logger.Error("event router stopped", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown stops the handlers, waiting for in-flight messages, then closes the
// subscriber. All errors are reported.
func (r *Router) Shutdown() error {
	r.logger.Info("shutting down event router")

	var errs []error

	if err := r.router.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close router: %w", err))
	}

	if err := r.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}

	return errors.Join(errs...)
}
