package httpx

import (
	"encoding/json"
	"net/http"
)

// Error codes written by the middleware in this package. They share the
// {"error","code"} envelope used by the service handlers.
const (
	CodeRateLimited        = "rate_limited"
	CodeLimiterUnavailable = "rate_limiter_unavailable"
	CodeTimeout            = "timeout"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Code: code})
}

func timeoutBody() string {
	b, _ := json.Marshal(errorBody{Error: "request timed out", Code: CodeTimeout})
	return string(b)
}
