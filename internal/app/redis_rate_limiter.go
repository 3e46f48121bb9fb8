package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript admits a hit only while fewer than limit hits remain in the
// window; rejected attempts are not recorded.
// KEYS[1] = window set, ARGV[1] = now ms, ARGV[2] = window ms, ARGV[3] = limit,
// ARGV[4] = member id.
// Returns {hits before this attempt, 1 if admitted else 0, ms until a slot frees}.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local hits = redis.call("ZCARD", KEYS[1])
if hits < limit then
  redis.call("ZADD", KEYS[1], now, ARGV[4])
  redis.call("PEXPIRE", KEYS[1], window)
  return {hits, 1, 0}
end
local blocking = redis.call("ZRANGE", KEYS[1], hits - limit, hits - limit, "WITHSCORES")
local wait = window
if blocking[2] then
  wait = tonumber(blocking[2]) + window - now
end
return {hits, 0, wait}
`)

// RedisRateLimiter counts hits per (scope, subject) over a sliding window shared by
// every replica of the service.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	base := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if base == "" {
		base = "aurum"
	}
	return &RedisRateLimiter{client: client, prefix: base + ":ratelimit", now: time.Now}
}

func (r *RedisRateLimiter) windowKey(scope, subject string) string {
	return r.prefix + ":" + scope + ":" + subject
}

// ConsumeRateLimit admits one hit when the window still has room. When it does not,
// it reports the whole seconds until enough earlier hits expire to admit the next one.
// A nil limiter, a non-positive limit or an empty scope or subject disables limiting.
func (r *RedisRateLimiter) ConsumeRateLimit(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (allowed bool, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return true, 0, nil
	}
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return true, 0, nil
	}

	windowMs := max(window.Milliseconds(), int64(time.Second/time.Millisecond))
	nowMs := r.now().UnixMilli()

	reply, err := slidingWindowScript.Run(
		ctx,
		r.client,
		[]string{r.windowKey(scope, subject)},
		nowMs, windowMs, limit, strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return true, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(reply) != 3 {
		return true, 0, fmt.Errorf("rate limit script: expected 3 values, got %d", len(reply))
	}
	if reply[1] == 1 {
		return true, 0, nil
	}
	return false, retryAfterFromMillis(reply[2], windowMs), nil
}

// retryAfterFromMillis rounds a remaining wait up to whole seconds, never below one.
func retryAfterFromMillis(waitMs, windowMs int64) int {
	if waitMs <= 0 || waitMs > windowMs {
		waitMs = windowMs
	}
	seconds := (waitMs + 999) / 1000
	if seconds < 1 {
		seconds = 1
	}
	return int(seconds)
}
