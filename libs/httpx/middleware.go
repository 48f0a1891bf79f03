package httpx

import (
	"net/http"
	"time"
)

type Middleware func(http.Handler) http.Handler

// Chain applies middleware so that Chain(h, a, b) serves as a(b(h)).
func Chain(h http.Handler, m ...Middleware) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// WithBodyLimit caps request bodies; decoders see an error past the limit.
func WithBodyLimit(limitBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithTimeout cancels the handler context after d and answers 503 with a
// JSON error body. Booking calls hold a partition lock, so the deadline also
// bounds lock wait time.
func WithTimeout(d time.Duration) Middleware {
	body := timeoutBody()
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, body)
	}
}
