package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRateLimitPrefix namespaces limiter keys next to the queue cache keys.
const DefaultRateLimitPrefix = "queueline:ratelimit"

// RedisRateLimiter is a fixed-window rate limiter backed by Redis, shared by
// every booking-service replica.
type RedisRateLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// The script returns {count, pttl} so a rejected caller learns when the
// window resets without a second round trip.
var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

func NewRedisRateLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultRateLimitPrefix
	}
	return &RedisRateLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

// Middleware limits each client. When Redis is unreachable the request is let
// through if failOpen is set and answered 503 otherwise.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptFromRateLimit(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			d, err := rl.check(r.Context(), rl.prefix+":"+clientKey(r))
			if err != nil {
				logger.Warn("redis rate limiter error", "err", err, "fail_open", failOpen)
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusServiceUnavailable, CodeLimiterUnavailable, "rate limiter unavailable")
				return
			}
			setRateLimitHeaders(w, rl.limit, d)
			if !d.allowed {
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RedisRateLimiter) check(ctx context.Context, key string) (decision, error) {
	vals, err := redisFixedWindowScript.Run(ctx, rl.rdb, []string{key}, rl.window.Milliseconds()).Int64Slice()
	if err != nil {
		return decision{}, err
	}
	if len(vals) != 2 {
		return decision{}, fmt.Errorf("unexpected rate limit script result %v", vals)
	}
	count, ttl := vals[0], time.Duration(vals[1])*time.Millisecond
	if count > int64(rl.limit) {
		return decision{retryAfter: ttl}, nil
	}
	return decision{allowed: true, remaining: rl.limit - int(count)}, nil
}
