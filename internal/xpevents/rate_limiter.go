package xpevents

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts XP-earning actions per user in fixed Redis windows
type RateLimiter struct {
	rdb    redis.Cmdable
	max    int
	window time.Duration
}

// NewRateLimiter allows max actions of each kind per user per window
func NewRateLimiter(rdb redis.Cmdable, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, max: max, window: window}
}

func rateKey(userID, action string) string {
	return fmt.Sprintf("rate:xp:%s:%s", action, userID)
}

// Allow records one action and reports whether it is within the limit
func (rl *RateLimiter) Allow(ctx context.Context, userID, action string) (bool, error) {
	if rl == nil || rl.rdb == nil {
		return false, fmt.Errorf("Redis client not available")
	}

	key := rateKey(userID, action)
	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}

	// Set expiration if first time
	if count == 1 {
		if err := rl.rdb.Expire(ctx, key, rl.window).Err(); err != nil {
			return false, err
		}
	}

	return count <= int64(rl.max), nil
}
