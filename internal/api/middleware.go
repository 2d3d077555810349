package api

import (
	"net"
	"net/http"
	"strconv"

	"github.com/orbiterhq/orbiter/internal/ratelimit"
	"github.com/orbiterhq/orbiter/pkg/models"
)

// RateLimitMiddleware enforces the per-key request budget. Rejections
// use the same envelope as every other failure so clients interpret
// them through one code path.
func RateLimitMiddleware(limiter *ratelimit.Limiter, requestsPerHour int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerKey(r)

			if !limiter.Allow(key) {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requestsPerHour))
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeEnvelope(w, models.APIResponse{
					Success: false,
					Message: "rate limit exceeded",
				})
				return
			}

			tokens := limiter.Tokens(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requestsPerHour))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(tokens)))

			next.ServeHTTP(w, r)
		})
	}
}

// callerKey identifies the caller: the API key header when present,
// the remote host otherwise.
func callerKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
