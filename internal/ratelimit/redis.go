package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The expiry is set only by the first hit so the window is fixed, not sliding.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisLimiter is a fixed-window limiter shared by every instance that talks
// to the same Redis.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter allows limit units per window for each key.
func NewRedisLimiter(client redis.Scripter, prefix string, limit int, win time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: win}
}

func (l *RedisLimiter) TryConsume(ctx context.Context, key string) (bool, error) {
	count, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check for %s: %w", key, err)
	}
	return count <= int64(l.limit), nil
}
