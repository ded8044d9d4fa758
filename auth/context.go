// Package auth. This file holds the context plumbing between the bearer
// middleware and the protected handlers: the middleware resolves the token
// to a full user record and stashes it in the request context.
package auth

import "context"

// contextKey is a private type for context keys to avoid collisions with
// other packages.
type contextKey string

const userContextKey contextKey = "auth_user"

// NewContextWithUser returns a child context carrying the authenticated user.
func NewContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the authenticated user placed by the middleware.
// The second return value reports whether a user was present.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok
}
