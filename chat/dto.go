// Package chat. Request/response payloads for the chat and history endpoints.
package chat

// MessageRequest carries the user's message for one chat turn.
type MessageRequest struct {
	Message string `json:"message" example:"hello"`
}

// MessageResponse carries the generated reply.
type MessageResponse struct {
	Message string `json:"message" example:"hello there, how can I help?"`
}
