package messaging

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// NewRedisStreamPublisher publishes to Redis streams named after topics.
func NewRedisStreamPublisher(client redis.UniversalClient, logger watermill.LoggerAdapter) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}

	return pub, nil
}

// NewRedisStreamSubscriber reads topics as members of a stream consumer group.
// Subscribers sharing a group split the messages; give each node its own group
// when every node must see every message.
func NewRedisStreamSubscriber(
	client redis.UniversalClient, group string, logger watermill.LoggerAdapter,
) (message.Subscriber, error) {
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: group,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream subscriber for group %s: %w", group, err)
	}

	return sub, nil
}

// NewRedisStreamTailSubscriber is NewRedisStreamSubscriber for a group that
// only cares about messages published after it first joins.
func NewRedisStreamTailSubscriber(
	client redis.UniversalClient, group string, logger watermill.LoggerAdapter,
) (message.Subscriber, error) {
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: group,
		OldestId:      "$",
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream subscriber for group %s: %w", group, err)
	}

	return sub, nil
}

// NewInMemoryPubSub returns a process-local transport. Every subscriber
// receives every message.
func NewInMemoryPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
}
