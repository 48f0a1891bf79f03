package httpx

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter is an in-process fixed-window limiter keyed by client address.
// It serves single-instance deployments; RedisRateLimiter shares the window
// across replicas.
type RateLimiter struct {
	limit     int
	window    time.Duration
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	count     int
	resetTime time.Time
}

// decision is the outcome of one limiter check.
type decision struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		visitors: map[string]*visitor{},
		now:      time.Now,
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptFromRateLimit(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			d := rl.allow(clientKey(r))
			setRateLimitHeaders(w, rl.limit, d)
			if !d.allowed {
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	v := rl.visitors[key]
	if v == nil || !now.Before(v.resetTime) {
		rl.visitors[key] = &visitor{count: 1, resetTime: now.Add(rl.window)}
		return decision{allowed: true, remaining: rl.limit - 1}
	}
	if v.count >= rl.limit {
		return decision{retryAfter: v.resetTime.Sub(now)}
	}
	v.count++
	return decision{allowed: true, remaining: rl.limit - v.count}
}

// sweep drops expired visitors at most once per window so the map does not
// grow with every address ever seen.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for k, v := range rl.visitors {
		if !now.Before(v.resetTime) {
			delete(rl.visitors, k)
		}
	}
}

func setRateLimitHeaders(w http.ResponseWriter, limit int, d decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.remaining, 0)))
	if !d.allowed {
		secs := int(math.Ceil(d.retryAfter.Seconds()))
		h.Set("Retry-After", strconv.Itoa(max(secs, 1)))
	}
}

// exemptFromRateLimit keeps orchestrator health checks and scrapes out of the
// client budget.
func exemptFromRateLimit(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

func clientKey(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		first, _, _ := strings.Cut(ip, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
