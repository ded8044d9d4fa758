// Package chat. HTTP handlers for the chat and history endpoints. Both run
// behind the bearer middleware, which has already resolved the authenticated
// user into the request context.
package chat

import (
	"encoding/json"
	"net/http"

	"github.com/user/chatbot-go/apperror"
	"github.com/user/chatbot-go/auth"
)

// Handlers wraps the chat Service with the HTTP surface.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleChat godoc
// @Summary Send a chat message
// @Description Submits one message and returns the generated reply.
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param chatBody body chat.MessageRequest true "The message to send"
// @Success 200 {object} chat.MessageResponse "Generated reply"
// @Failure 400 {object} apperror.ErrorResponse "Empty or malformed message"
// @Failure 401 {object} apperror.ErrorResponse "Not authenticated"
// @Failure 429 {object} apperror.ErrorResponse "Too many requests"
// @Failure 503 {object} apperror.ErrorResponse "Model not loaded"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /api/chat [post]
func (h *Handlers) HandleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("could not validate credentials", nil))
			return
		}

		var req MessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, r, apperror.NewBadRequestError("invalid request body: "+err.Error(), nil))
			return
		}
		defer r.Body.Close()

		turn, err := h.service.Send(r.Context(), user, req.Message)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		auth.WriteJSON(w, http.StatusOK, MessageResponse{Message: turn.BotResponse})
	}
}

// HandleHistory godoc
// @Summary Conversation history
// @Description Returns the authenticated user's most recent turns, newest first, at most 50.
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Success 200 {array} chat.Turn "Conversation turns"
// @Failure 401 {object} apperror.ErrorResponse "Not authenticated"
// @Failure 429 {object} apperror.ErrorResponse "Too many requests"
// @Failure 500 {object} apperror.ErrorResponse "Internal Server Error"
// @Router /api/history [get]
func (h *Handlers) HandleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("could not validate credentials", nil))
			return
		}

		turns, err := h.service.History(r.Context(), user.ID)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		auth.WriteJSON(w, http.StatusOK, turns)
	}
}
