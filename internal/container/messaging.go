package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/serroba/wormhole/internal/events"
	"github.com/serroba/wormhole/internal/messaging"
	"go.uber.org/zap"
)

const analyticsGroup = "analytics"

// PublisherGroupPackage provides the event publisher for the configured transport.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.Events == "memory" {
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		}

		pub, err := messaging.NewRedisStreamPublisher(do.MustInvoke[*RedisConn](i).UniversalClient, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(pub), nil
	})
}

// TransportPackage provides the in-memory event bus. It is only built when
// Options.Events is "memory"; publisher and subscribers then share it.
func TransportPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*gochannel.GoChannel, error) {
		return messaging.NewInMemoryPubSub(messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i))), nil
	})
}

func newSubscriber(i *do.Injector, group string, tail bool) (message.Subscriber, error) {
	if do.MustInvoke[*Options](i).Events == "memory" {
		return do.MustInvoke[*gochannel.GoChannel](i), nil
	}

	client := do.MustInvoke[*RedisConn](i).UniversalClient
	logger := messaging.NewZapLogger(do.MustInvoke[*zap.Logger](i))

	if tail {
		return messaging.NewRedisStreamTailSubscriber(client, group, logger)
	}

	return messaging.NewRedisStreamSubscriber(client, group, logger)
}

// AnalyticsPackage provides the analytics router, which logs every lifecycle
// event. Instances share the consumer group and split the stream.
func AnalyticsPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.Router, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		sub, err := newSubscriber(i, analyticsGroup, false)
		if err != nil {
			return nil, err
		}

		router, err := messaging.NewRouter(analyticsGroup, sub, logger)
		if err != nil {
			return nil, err
		}

		sink := events.NewLogSink(logger)
		messaging.Handle[events.LinkCreated](router, events.TopicLinkCreated, sink.LinkCreated)
		messaging.Handle[events.LinkResolved](router, events.TopicLinkResolved, sink.LinkResolved)
		messaging.Handle[events.LinkDeleted](router, events.TopicLinkDeleted, sink.LinkDeleted)

		return router, nil
	})
}

// Invalidation is the router evicting the local cache tier when any node
// creates or deletes a link.
type Invalidation struct {
	*messaging.Router
}

// InvalidationPackage provides the invalidation router. Each process joins
// with its own consumer group so every node sees every event.
func InvalidationPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Invalidation, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		name := fmt.Sprintf("invalidate-%s", uuid.NewString())

		sub, err := newSubscriber(i, name, true)
		if err != nil {
			return nil, err
		}

		router, err := messaging.NewRouter(name, sub, logger)
		if err != nil {
			return nil, err
		}

		invalidator := events.NewInvalidator(do.MustInvoke[*CacheTiers](i).Local, logger)
		messaging.Handle[events.LinkCreated](router, events.TopicLinkCreated, invalidator.LinkCreated)
		messaging.Handle[events.LinkDeleted](router, events.TopicLinkDeleted, invalidator.LinkDeleted)

		return &Invalidation{router}, nil
	})
}
