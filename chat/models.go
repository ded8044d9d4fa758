// Package chat implements the conversation side of the service: the
// orchestration of a single chat turn (validate, generate, persist, respond)
// and the append-only conversation store behind the history endpoint.
package chat

import "time"

// Turn is one user-message/bot-response pair, the atomic unit of
// conversation history. Turns are append-only: created exactly once per
// successful chat turn and never updated.
type Turn struct {
	ID          int       `json:"id"`
	UserID      int       `json:"-"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Timestamp   time.Time `json:"timestamp"`
}
