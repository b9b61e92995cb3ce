package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agent-demo-webhooks/internal/common/database"
)

// RedisBroadcaster publishes demo UI messages on Redis pub/sub. The realtime
// hub relays them to connected browsers.
type RedisBroadcaster struct {
	client *database.RedisClient
}

func NewRedisBroadcaster(client *database.RedisClient) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, channel string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := b.client.Publish(ctx, channel, string(payload)); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// RedisDemoCache caches conversation to demo lookups.
type RedisDemoCache struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisDemoCache(client *database.RedisClient, ttl time.Duration) *RedisDemoCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisDemoCache{client: client, ttl: ttl}
}

func demoCacheKey(conversationID string) string {
	return "demo:conversation:" + conversationID
}

func (c *RedisDemoCache) Get(ctx context.Context, conversationID string) (*Demo, error) {
	raw, err := c.client.Get(ctx, demoCacheKey(conversationID))
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var demo Demo
	if err := json.Unmarshal([]byte(raw), &demo); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &demo, nil
}

func (c *RedisDemoCache) Set(ctx context.Context, conversationID string, demo *Demo) error {
	payload, err := json.Marshal(demo)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, demoCacheKey(conversationID), payload, c.ttl)
}
