package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiter_PerClient(t *testing.T) {
	h := Chain(okHandler(), NewRateLimiter(2, time.Minute).Middleware())

	for i := 0; i < 2; i++ {
		if code := serve(h, "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := serve(h, "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := serve(h, "10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", code)
	}
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Chain(okHandler(), NewRedisRateLimiter(rdb, 1, time.Minute, "test").Middleware(logger, false))

	if code := serve(h, "10.0.0.1:1"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	req.RemoteAddr = "10.0.0.1:1"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
	if ttl := mr.TTL("test:10.0.0.1"); ttl <= 0 {
		t.Fatalf("expected window expiry on key, got %s", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if code := serve(h, "10.0.0.1:1"); code != http.StatusOK {
		t.Fatalf("after window: expected 200, got %d", code)
	}
}

func TestRedisRateLimiter_FailOpenAndClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rl := NewRedisRateLimiter(rdb, 1, time.Minute, "")

	if code := serve(Chain(okHandler(), rl.Middleware(logger, true)), "10.0.0.1:1"); code != http.StatusOK {
		t.Fatalf("fail open: expected 200, got %d", code)
	}
	if code := serve(Chain(okHandler(), rl.Middleware(logger, false)), "10.0.0.1:1"); code != http.StatusServiceUnavailable {
		t.Fatalf("fail closed: expected 503, got %d", code)
	}
}

func TestWithCORS(t *testing.T) {
	h := Chain(okHandler(), WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://clinic.example"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
		MaxAge:         time.Minute,
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/public/book", nil)
	req.Header.Set("Origin", "https://clinic.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://clinic.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "60" {
		t.Fatalf("unexpected max age %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unknown origin must pass through without cors headers")
	}
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "req-1" || rec.Header().Get(RequestIDHeader) != "req-1" {
		t.Fatalf("expected propagated id, got ctx=%q header=%q", seen, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 32 {
		t.Fatalf("expected generated 32 char id, got %q", seen)
	}
}

func TestRateLimiter_HeadersAndRetryAfter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := Chain(okHandler(), rl.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-RateLimit-Limit") != "2" || rec.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("unexpected limit headers %v", rec.Header())
	}

	h.ServeHTTP(httptest.NewRecorder(), req)
	now = now.Add(45 * time.Second)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "15" {
		t.Fatalf("expected Retry-After 15, got %q", got)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Code != CodeRateLimited {
		t.Fatalf("expected rate_limited body, got %q", rec.Body.String())
	}

	now = now.Add(15 * time.Second)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("after reset: expected 200, got %d", rec.Code)
	}
}

func TestRateLimiter_SweepsExpiredClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for _, c := range []string{"a", "b", "c"} {
		rl.allow(c)
	}
	now = now.Add(2 * time.Minute)
	rl.allow("d")
	if len(rl.visitors) != 1 {
		t.Fatalf("expected expired clients swept, have %d", len(rl.visitors))
	}
}

func TestRateLimiter_HealthEndpointsExempt(t *testing.T) {
	h := Chain(okHandler(), NewRateLimiter(1, time.Minute).Middleware())
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("readyz %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestRedisRateLimiter_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := Chain(okHandler(), NewRedisRateLimiter(rdb, 5, time.Minute, " ").Middleware(nil, false))
	if code := serve(h, "10.0.0.9:1"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !mr.Exists(DefaultRateLimitPrefix + ":10.0.0.9") {
		t.Fatalf("expected key under %s, have %v", DefaultRateLimitPrefix, mr.Keys())
	}
}

func TestWithRequestID_RejectsMalformedIDs(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	for _, bad := range []string{strings.Repeat("a", maxRequestIDLen+1), "req 1", "req\n1", "<script>"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == bad || len(seen) != 32 {
			t.Fatalf("expected %q replaced by a generated id, got %q", bad, seen)
		}
	}
}

func TestWithAccessLog_LevelsAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	status := http.StatusConflict
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}), WithRequestID, WithAccessLog(logger))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost,
		"/api/v1/appointments/0b6f1d4e-3c2a-4f7e-9a51-2d8c7e6b1a90/cancel", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["level"] != "WARN" || line["route"] != "/api/v1/appointments/{id}/cancel" {
		t.Fatalf("unexpected log line %v", line)
	}

	buf.Reset()
	status = http.StatusInternalServerError
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil))
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Fatalf("expected error level, got %s", buf.String())
	}

	buf.Reset()
	status = http.StatusOK
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if !strings.Contains(buf.String(), `"level":"DEBUG"`) {
		t.Fatalf("expected debug level for health, got %s", buf.String())
	}
}

func TestWithTimeout_JSONBody(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), WithTimeout(10*time.Millisecond))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Code != CodeTimeout {
		t.Fatalf("expected timeout body, got %q", rec.Body.String())
	}
}

func TestWithCORS_ExposesHeaders(t *testing.T) {
	h := Chain(okHandler(), WithCORS(CORSPolicy{
		AllowedOrigins: []string{"*"},
		ExposedHeaders: []string{"Retry-After", " ", RequestIDHeader},
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots", nil)
	req.Header.Set("Origin", "https://clinic.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "Retry-After, X-Request-Id" {
		t.Fatalf("unexpected expose headers %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
