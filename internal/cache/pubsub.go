package cache

import (
	"context"

	"cryptotracker/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TriggeredChannel carries triggered-alert events from the notifier
// service to every API instance's SSE stream.
const TriggeredChannel = "price_alerts"

// Publish publishes a message to a Redis channel
func (c *Cache) Publish(ctx context.Context, channel, message string) error {
	return c.rdb.Publish(ctx, channel, message).Err()
}

// Subscriber represents a subscription to a Redis channel
type Subscriber struct {
	pubsub *redis.PubSub
}

// Subscribe creates a subscriber for the given channel
func (c *Cache) Subscribe(channel string) (*Subscriber, error) {
	ctx := context.Background()
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Confirm subscription
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, err
	}

	logger.Log.Info("Subscribed to Redis channel", zap.String("channel", channel))
	return &Subscriber{pubsub: pubsub}, nil
}

// ReceiveMessage waits for and returns the next message
func (s *Subscriber) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	return s.pubsub.ReceiveMessage(ctx)
}

// Close closes the subscription
func (s *Subscriber) Close() error {
	return s.pubsub.Close()
}
