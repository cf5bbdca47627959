package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/MrEthical07/sessionkit"
)

// RateLimit admits every request against the engine limiter using the
// remote IP as client and the URL path as route. The client IP is also
// attached to the request context for lifecycle events.
func RateLimit(engine *sessionkit.Engine) func(http.Handler) http.Handler {
	retryAfter := ""
	if engine != nil {
		retryAfter = strconv.Itoa(int(engine.Config().RateLimit.Window.Seconds()))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			ctx := sessionkit.WithClientIP(r.Context(), ip)
			if engine != nil {
				if err := engine.Admit(ctx, ip, r.URL.Path); errors.Is(err, sessionkit.ErrRateLimited) {
					w.Header().Set("Retry-After", retryAfter)
					WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded")
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are
// ignored; deployments behind a proxy must rewrite RemoteAddr first.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
