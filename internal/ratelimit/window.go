// Package ratelimit implements a distributed sliding-window rate limiter on Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Window admits at most limit events in any rolling window, shared across all processes
// that use the same key.
type Window struct {
	client *redis.Client
	key    string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewWindow constructs a limiter allowing limit events per window under key.
func NewWindow(client *redis.Client, key string, limit int, window time.Duration) *Window {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Window{
		client: client,
		key:    key,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records one event if the window has room. When it does not, retryAfter is how long
// until the oldest recorded event leaves the window.
func (w *Window) Allow(ctx context.Context) (bool, time.Duration, error) {
	now := w.now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())
	res, err := windowScript.Run(ctx, w.client, []string{w.key}, now, w.window.Milliseconds(), w.limit, member).Int64Slice()
	if err != nil {
		return false, 0, errors.Wrap(err, "rate limit check")
	}
	if len(res) < 2 {
		return false, 0, errors.Newf("rate limit check: unexpected reply %v", res)
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

var windowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  retry = tonumber(oldest[2]) + window - now
end
if retry < 1 then
  retry = 1
end
return {0, retry}
`)
