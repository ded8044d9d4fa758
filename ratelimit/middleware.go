package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/user/chatbot-go/apperror"
)

// Middleware gates every request through the limiter before routing. The
// client identifier is the request's network address with the port stripped;
// chi's RealIP middleware runs earlier in the stack, so RemoteAddr already
// reflects proxy forwarding headers when present.
func Middleware(l *Limiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientAddr(r)) {
				appErr := apperror.NewTooManyRequestsError("too many requests", nil)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(appErr.StatusCode())
				_ = json.NewEncoder(w).Encode(appErr.ToResponse())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr extracts the host part of the peer address. RemoteAddr is
// normally "host:port"; RealIP may have rewritten it to a bare host.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
