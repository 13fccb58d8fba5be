package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// The window TTL is armed only by the hit that creates the counter, so a busy
// window still closes on time.
var windowCounter = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RateLimiter counts catalog lookups per window in Redis, so every process on
// the same database draws from one budget.
type RateLimiter struct {
	c      *redis.Client
	prefix string
}

func NewRateLimiter(c *redis.Client, prefix string) *RateLimiter {
	return &RateLimiter{c: c, prefix: prefix}
}

// Allow records one hit on the window key. Returns (allowed, countInWindow).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	n, err := windowCounter.Run(ctx, rl.c, []string{rl.prefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	return n <= limit, n, nil
}
