package httpx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusCapturingResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// WithAccessLog writes one line per request. Server errors log at Error,
// client errors at Warn and everything else at Info. Health endpoints are
// logged at Debug so they do not drown booking traffic.
func WithAccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusCapturingResponseWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			if sw.status == 0 {
				sw.status = http.StatusOK
			}
			logger.Log(r.Context(), accessLevel(r.URL.Path, sw.status), "http request",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"route", RouteLabel(r.URL.Path),
				"status", sw.status,
				"bytes", sw.bytes,
				"client", clientKey(r),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

func accessLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/healthz" || path == "/readyz" || path == "/metrics":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// RouteLabel replaces id segments of a path with "{id}" so log lines and
// metrics group by route instead of by provider or appointment.
func RouteLabel(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if s == "" {
			continue
		}
		if _, err := uuid.Parse(s); err == nil {
			segs[i] = "{id}"
		}
	}
	return strings.Join(segs, "/")
}
