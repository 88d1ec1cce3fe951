// Package ratelimit implements a distributed leaky-bucket rate limiter on
// top of Redis. Buckets are keyed by (traffic class, identifier) and sized
// per role tier; the read-modify-write step runs as a server-side Lua
// script so that concurrent replicas checking the same key stay atomic.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// admitScript leaks the bucket since its last update, adds the current
// request, and admits it unless the new level exceeds capacity. The caller
// supplies the clock (ARGV[1], fractional seconds) so that the script stays
// deterministic across replicas and replicas' clocks are the only skew.
var admitScript = redis.NewScript(`
local level = 0
local last = tonumber(ARGV[1])
local state = redis.call('HMGET', KEYS[1], 'level', 'last_refill')
if state[1] then
  level = tonumber(state[1])
  last = tonumber(state[2])
end

local elapsed = tonumber(ARGV[1]) - last
if elapsed < 0 then
  elapsed = 0
end
level = level - elapsed * tonumber(ARGV[2])
if level < 0 then
  level = 0
end
level = level + 1

if level > tonumber(ARGV[3]) then
  return 0
end

redis.call('HSET', KEYS[1], 'level', level, 'last_refill', ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// Limiter admits or rejects requests against shared Redis buckets.
type Limiter struct {
	client *redis.Client
	matrix Matrix
	now    func() time.Time
}

func NewLimiter(client *redis.Client, matrix Matrix) *Limiter {
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	return &Limiter{
		client: client,
		matrix: matrix,
		now:    time.Now,
	}
}

// Allow reports whether one more request from identifier may proceed under
// the given traffic class. Roles select the bucket shape (highest tier
// wins). A Redis failure is returned as an error; callers fail closed.
func (l *Limiter) Allow(ctx context.Context, class, identifier string, roles []string) (bool, error) {
	cfg := l.matrix.Resolve(class, roles)
	key := fmt.Sprintf("rate_limit:%s:%s", class, identifier)

	now := float64(l.now().UnixNano()) / float64(time.Second)

	res, err := admitScript.Run(ctx, l.client, []string{key},
		now, cfg.LeakRate, cfg.Capacity, cfg.TTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if res != 1 {
		slog.Warn("rate_limit_exceeded",
			"class", class,
			"identifier", identifier,
			"capacity", cfg.Capacity,
		)
		return false, nil
	}
	return true, nil
}
