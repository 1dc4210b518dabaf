package middleware

import (
	"net"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/auth/ratelimit"
)

// RateLimit throttles requests per editor session, falling back to the
// client address when no session is attached yet.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(rateKey(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateKey(r *http.Request) string {
	if sess, ok := GetSession(r.Context()); ok {
		return "session:" + sess.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
