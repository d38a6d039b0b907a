package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window counter shared by every server instance.
type Redis struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewRedis allows limit events per window for each key, counting in client under prefix.
func NewRedis(client *redis.Client, limit int, window time.Duration, prefix string) *Redis {
	if window <= 0 {
		window = time.Minute
	}
	if prefix == "" {
		prefix = "ussd:rl"
	}
	return &Redis{client: client, limit: int64(limit), window: window, prefix: prefix}
}

// Allow implements Limiter. Redis errors fail open.
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.prefix + ":" + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return true, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return true, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
	}
	return count <= r.limit, nil
}

// Ping checks connectivity to Redis.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
