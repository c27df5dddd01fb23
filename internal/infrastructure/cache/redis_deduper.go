package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const eventKeyPrefix = "webhook:event:"

// RedisDeduper remembers gateway event ids as Redis keys with a TTL, so
// replayed webhook deliveries are acknowledged without touching the store.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper from a URL of the form
// redis://[:password@]host[:port][/database].
func NewRedisDeduper(redisURL string, ttl time.Duration) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &RedisDeduper{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (r *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := r.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// Mark records eventID. Marking an id twice keeps the first TTL.
func (r *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	if err := r.client.SetNX(ctx, eventKeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event %s: %w", eventID, err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (r *RedisDeduper) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisDeduper) Close() error {
	return r.client.Close()
}

// NopDeduper never reports an event as seen. The per-order event window
// still catches replays.
type NopDeduper struct{}

func (NopDeduper) Seen(context.Context, string) (bool, error) { return false, nil }
func (NopDeduper) Mark(context.Context, string) error         { return nil }
