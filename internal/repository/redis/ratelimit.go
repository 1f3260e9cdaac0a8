package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter enforces fixed-window request limits in Redis. It guards
// abuse-prone endpoints (registration, login, OTP) per caller; the daily
// message quota is a separate concern handled by the chat ledgers.
type RateLimiter struct {
	client *Client
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one request against the (scope, key) window and reports
// whether it fits under limit.
// Returns (allowed, remaining, resetTime, error)
func (r *RateLimiter) Allow(ctx context.Context, scope, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	fullKey := fmt.Sprintf("%s%s:%s", rateLimitPrefix, scope, key)
	now := time.Now()
	windowEnd := now.Truncate(window).Add(window)

	pipe := r.client.rdb.Pipeline()

	// Increment counter
	incrCmd := pipe.Incr(ctx, fullKey)

	// Set expiry if key is new
	pipe.ExpireNX(ctx, fullKey, window)

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := incrCmd.Val()
	remaining := int(int64(limit) - count)
	if remaining < 0 {
		remaining = 0
	}

	allowed := count <= int64(limit)

	return allowed, remaining, windowEnd, nil
}

// Reset clears the counter for a (scope, key) pair
func (r *RateLimiter) Reset(ctx context.Context, scope, key string) error {
	fullKey := fmt.Sprintf("%s%s:%s", rateLimitPrefix, scope, key)
	return r.client.rdb.Del(ctx, fullKey).Err()
}
