// Package auth. This file defines the bearer-token middleware protecting the
// chat and history routes. It runs the full authentication sequence (token
// verification, then subject resolution against the user directory) before
// any handler executes, so no downstream work (in particular no generation
// call) is ever spent on unauthenticated traffic.
package auth

import (
	"net/http"
	"strings"

	"github.com/user/chatbot-go/apperror"
)

// Middleware verifies the Authorization header and resolves the token
// subject to a user record, which is placed in the request context. Every
// failure mode is the same generic 401.
func Middleware(svc *Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteError(w, r, apperror.NewAuthError("could not validate credentials", nil))
				return
			}

			// The header must be of the form "Bearer {token}".
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				WriteError(w, r, apperror.NewAuthError("could not validate credentials", nil))
				return
			}

			subject, err := svc.VerifyToken(parts[1])
			if err != nil {
				WriteError(w, r, err)
				return
			}

			user, err := svc.ResolveSubject(r.Context(), subject)
			if err != nil {
				WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithUser(r.Context(), user)))
		})
	}
}
