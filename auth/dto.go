// Package auth. This file defines the request/response payloads for the
// registration and login endpoints.
package auth

// RegisterRequest represents the registration request payload.
type RegisterRequest struct {
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password" example:"strongpassword123"`
}

// RegisterResponse confirms account creation.
type RegisterResponse struct {
	Message string `json:"message" example:"User created successfully"`
}

// TokenResponse is returned to the client upon successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType   string `json:"token_type" example:"bearer"`
}
