package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FieldCacheBroadcaster propagates field memo invalidations between replicas over Redis pub/sub.
type FieldCacheBroadcaster struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewFieldCacheBroadcaster constructs a broadcaster. A nil client disables it.
func NewFieldCacheBroadcaster(client *redis.Client, channel string, logger *zap.Logger) *FieldCacheBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldCacheBroadcaster{client: client, channel: channel, logger: logger}
}

// Enabled reports whether messages are actually sent.
func (b *FieldCacheBroadcaster) Enabled() bool {
	return b != nil && b.client != nil && b.channel != ""
}

// Publish announces an invalidation originating from origin.
func (b *FieldCacheBroadcaster) Publish(ctx context.Context, origin string) error {
	if !b.Enabled() {
		return nil
	}
	if err := b.client.Publish(ctx, b.channel, origin).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", b.channel, err)
	}
	return nil
}

// Subscribe calls fn with the origin of every invalidation until ctx is done.
func (b *FieldCacheBroadcaster) Subscribe(ctx context.Context, fn func(origin string)) error {
	if !b.Enabled() {
		return nil
	}
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.logger.Debug("field cache invalidation received", zap.String("origin", msg.Payload))
			fn(msg.Payload)
		}
	}
}
