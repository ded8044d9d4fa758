// Package auth is responsible for authentication: user registration, login,
// token issuance and verification, and resolving a verified token back to a
// user record. This file defines the user entity as stored and as used by
// the rest of the application.
package auth

import "time"

// User represents a registered account. The stored password is a bcrypt
// hash; the `json:"-"` tag keeps it out of every API response.
type User struct {
	ID             int       `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
