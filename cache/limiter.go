package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Allow counts one hit against key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

// FixedWindowLimiter allows limit hits per key in each window.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int64, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + ":" + key

	hits, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, err
	}
	if hits == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return true, err
		}
	}
	return hits <= l.limit, nil
}

// NoopLimiter allows everything.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
