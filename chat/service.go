// Package chat. This file holds the Service: the per-turn orchestration and
// the conversation-store queries.
package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/user/chatbot-go/apperror"
	"github.com/user/chatbot-go/auth"
	"github.com/user/chatbot-go/db"
	"github.com/user/chatbot-go/generator"
)

// historyLimit caps how many turns the history endpoint returns.
const historyLimit = 50

// Service orchestrates chat turns and serves conversation history.
type Service struct {
	db db.Querier
	// gen is the text-generation capability, resolved once at startup. A nil
	// gen means the backend failed to load; every turn checks and fails with
	// a service-unavailable outcome rather than panicking on a dead handle.
	gen        generator.Client
	genTimeout time.Duration
	log        zerolog.Logger

	now func() time.Time
}

// NewService creates the chat Service. gen may be nil when the generation
// backend is unavailable.
func NewService(q db.Querier, gen generator.Client, genTimeout time.Duration, log zerolog.Logger) *Service {
	return &Service{
		db:         q,
		gen:        gen,
		genTimeout: genTimeout,
		log:        log,
		now:        time.Now,
	}
}

// Send runs one chat turn for an authenticated user: check the generation
// capability, generate a reply, persist the turn, return the reply. By the
// time this runs, admission and authentication have already happened in the
// middleware stack. The generation call is bounded by its own deadline and
// holds no locks; a failure at any step is terminal for the turn and
// persists nothing partial.
func (s *Service) Send(ctx context.Context, user *auth.User, message string) (*Turn, error) {
	if message == "" {
		return nil, apperror.NewValidationError("message must not be empty", nil)
	}

	if s.gen == nil {
		return nil, apperror.NewUnavailableError("model not loaded", nil)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()

	reply, err := s.gen.Generate(genCtx, message)
	if err != nil {
		s.log.Error().Err(err).Int("user_id", user.ID).Msg("generation failed")
		return nil, apperror.NewInternalError("failed to generate response", err)
	}

	// Persistence is the last step: a turn exists in history only if a
	// complete reply was produced. When the write fails the reply is
	// withheld as well, so history never silently drops a delivered turn.
	turn, err := s.appendTurn(ctx, user.ID, message, reply)
	if err != nil {
		s.log.Error().Err(err).Int("user_id", user.ID).Msg("failed to persist conversation turn")
		return nil, apperror.NewInternalError("failed to save conversation", err)
	}

	return turn, nil
}

// History returns the user's most recent turns, newest first, capped at 50.
func (s *Service) History(ctx context.Context, userID int) ([]Turn, error) {
	query := `SELECT id, user_id, user_message, bot_response, created_at
              FROM conversations
              WHERE user_id = $1
              ORDER BY created_at DESC
              LIMIT $2`
	rows, err := s.db.Query(ctx, query, userID, historyLimit)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load conversation history", err)
	}
	defer rows.Close()

	turns := make([]Turn, 0, historyLimit)
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserMessage, &t.BotResponse, &t.Timestamp); err != nil {
			return nil, apperror.NewDatabaseError("failed to scan conversation turn", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabaseError("failed to load conversation history", err)
	}

	return turns, nil
}

func (s *Service) appendTurn(ctx context.Context, userID int, userMessage, botResponse string) (*Turn, error) {
	turn := &Turn{
		UserID:      userID,
		UserMessage: userMessage,
		BotResponse: botResponse,
		Timestamp:   s.now(),
	}

	query := `INSERT INTO conversations (user_id, user_message, bot_response, created_at)
              VALUES ($1, $2, $3, $4)
              RETURNING id`
	err := s.db.QueryRow(ctx, query, turn.UserID, turn.UserMessage, turn.BotResponse, turn.Timestamp).
		Scan(&turn.ID)
	if err != nil {
		return nil, err
	}
	return turn, nil
}
