// Package auth. This file holds the Service: the token issue/verify logic
// and the user directory queries backing registration, login, and subject
// resolution.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/chatbot-go/apperror"
	"github.com/user/chatbot-go/config"
	"github.com/user/chatbot-go/db"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint
// violations; the users table enforces username uniqueness with one.
const pgUniqueViolation = "23505"

// Service provides registration, login, and token handling. Token issue and
// verify are pure functions of the signing secret and the clock, so the
// service holds no mutable state and is safe for concurrent use.
type Service struct {
	db         db.Querier
	authConfig config.AuthConfig
	log        zerolog.Logger

	// now is the clock used for token issue and verification; swapped out in
	// tests to pin expiry behavior.
	now func() time.Time
}

// NewService creates a new auth Service.
func NewService(q db.Querier, authConfig config.AuthConfig, log zerolog.Logger) *Service {
	return &Service{
		db:         q,
		authConfig: authConfig,
		log:        log,
		now:        time.Now,
	}
}

// Claims is the JWT payload: the registered claims carry everything this
// service needs: `sub` is the username, `exp` the absolute expiry.
type Claims struct {
	jwt.RegisteredClaims
}

// Register creates a new user. Username uniqueness is enforced by the store;
// a violation surfaces as a conflict error without touching the existing row.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: string(hashedPassword),
	}

	query := `INSERT INTO users (username, email, password)
              VALUES ($1, $2, $3)
              RETURNING id, created_at`
	err = s.db.QueryRow(ctx, query, user.Username, user.Email, user.HashedPassword).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperror.NewConflictError("username already registered", nil)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}

	return user, nil
}

// Login authenticates by credentials and returns a bearer token. A missing
// user and a wrong password yield the identical failure, so the response
// never reveals whether the username exists.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	user, err := s.getUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewAuthError("incorrect username or password", nil)
		}
		s.log.Error().Err(err).Msg("user lookup failed during login")
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, apperror.NewAuthError("incorrect username or password", nil)
	}

	token, err := s.issueToken(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// issueToken mints an HS256 token whose subject is the username and whose
// expiry is issue-time plus the configured lifetime.
func (s *Service) issueToken(subject string) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.authConfig.AccessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.authConfig.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyToken parses and validates a token string and returns its subject.
// Expired tokens and malformed/forged tokens both come back as the same
// generic authentication error for clients, but the underlying cause is
// preserved in the error chain (`errors.Is(err, jwt.ErrTokenExpired)`).
// Whether the subject still denotes a real account is the caller's concern;
// see ResolveSubject.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.authConfig.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		// err wraps jwt.ErrTokenExpired or jwt.ErrTokenMalformed as applicable.
		return "", apperror.NewAuthError("could not validate credentials", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", apperror.NewAuthError("could not validate credentials", nil)
	}

	return claims.Subject, nil
}

// ResolveSubject confirms that a verified token subject still denotes a real
// account. A signature may be valid long after the account is gone; absence
// here fails authentication.
func (s *Service) ResolveSubject(ctx context.Context, subject string) (*User, error) {
	user, err := s.getUserByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewAuthError("could not validate credentials", nil)
		}
		s.log.Error().Err(err).Msg("user lookup failed during token resolution")
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}
	return user, nil
}

func (s *Service) getUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	query := `SELECT id, username, email, password, created_at FROM users WHERE username = $1`
	err := s.db.QueryRow(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.Email, &user.HashedPassword, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
