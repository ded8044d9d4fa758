// Package auth. This file holds the HTTP handlers for registration and
// login, plus the response-writing helpers shared by the other handler
// packages.
package auth

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/user/chatbot-go/apperror"
)

// Handlers wraps the auth Service with the HTTP surface.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleRegister godoc
// @Summary User Registration
// @Description Registers a new user account.
// @Tags auth
// @Accept json
// @Produce json
// @Param registerBody body auth.RegisterRequest true "User registration details"
// @Success 201 {object} auth.RegisterResponse "User created successfully"
// @Failure 400 {object} apperror.ErrorResponse "Missing or invalid fields"
// @Failure 409 {object} apperror.ErrorResponse "Username already registered"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /api/register [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		if req.Username == "" || req.Email == "" || req.Password == "" {
			WriteError(w, r, apperror.NewBadRequestError("username, email, and password are required", nil))
			return
		}

		if _, err := h.service.Register(r.Context(), req); err != nil {
			WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, RegisterResponse{Message: "User created successfully"})
	}
}

// HandleLogin godoc
// @Summary User Login
// @Description Authenticates a user and returns a bearer access token.
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Success 200 {object} auth.TokenResponse "Login successful"
// @Failure 400 {object} apperror.ErrorResponse "Missing credentials"
// @Failure 401 {object} apperror.ErrorResponse "Incorrect username or password"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /api/login [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Credentials arrive as form fields or query parameters; FormValue
		// checks both.
		username := r.FormValue("username")
		password := r.FormValue("password")
		if username == "" || password == "" {
			WriteError(w, r, apperror.NewBadRequestError("username and password are required", nil))
			return
		}

		resp, err := h.service.Login(r.Context(), username, password)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// writeJSON serializes data to JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		}
	}
}

// WriteJSON is the exported variant used by the other handler packages.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

// WriteError converts any error into the standardized error envelope. Errors
// that are not AppErrors are wrapped as generic internal failures so nothing
// leaks to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}

	if appErr.StatusCode() >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).
			Msg("request failed")
	}

	writeJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
