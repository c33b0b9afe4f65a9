package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const rateLimitPrefix = "watchearn:rate:"

// RateLimiter is a fixed one-minute window counter per chat.
type RateLimiter struct {
	rdb   *redis.Client
	limit int64
	now   func() time.Time
}

func NewRateLimiter(rdb *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: int64(perMinute), now: time.Now}
}

// Allow counts one event for chatID and reports whether it is within the limit.
func (r *RateLimiter) Allow(ctx context.Context, chatID int64) (bool, int64, error) {
	window := r.now().Unix() / 60
	key := fmt.Sprintf("%s%d:%d", rateLimitPrefix, chatID, window)

	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("rate limit incr: %w", err)
	}

	count := incr.Val()
	return count <= r.limit, count, nil
}
