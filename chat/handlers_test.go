package chat_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/user/chatbot-go/auth"
	"github.com/user/chatbot-go/chat"
	"github.com/user/chatbot-go/config"
	"github.com/user/chatbot-go/generator"
	"github.com/user/chatbot-go/ratelimit"
)

const testSecret = "test-secret"

type testApp struct {
	router *chi.Mux
	mock   pgxmock.PgxPoolIface
	gen    *generator.Mock
}

// newTestApp assembles the API router the way main does, with the pool and
// the generation backend mocked out.
func newTestApp(t *testing.T, rateLimit int) *testApp {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	authCfg := config.AuthConfig{
		JWTSecret:           testSecret,
		AccessTokenDuration: 30 * time.Minute,
	}
	authSvc := auth.NewService(mock, authCfg, zerolog.Nop())
	authHandlers := auth.NewHandlers(authSvc)

	gen := &generator.Mock{Reply: "canned reply"}
	chatSvc := chat.NewService(mock, gen, 5*time.Second, zerolog.Nop())
	chatHandlers := chat.NewHandlers(chatSvc)

	limiter := ratelimit.New(rateLimit, time.Minute)

	r := chi.NewRouter()
	r.Use(ratelimit.Middleware(limiter))
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandlers.HandleRegister())
		r.Post("/login", authHandlers.HandleLogin())
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(authSvc))
			r.Post("/chat", chatHandlers.HandleChat())
			r.Get("/history", chatHandlers.HandleHistory())
		})
	})

	return &testApp{router: r, mock: mock, gen: gen}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// signToken mints a token the middleware will accept, outside the service,
// so tests control the expiry directly.
func signToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func expectUserLookup(t *testing.T, mock pgxmock.PgxPoolIface, username, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT id, username, email, password, created_at FROM users WHERE username = \$1`).
		WithArgs(username).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "password", "created_at"}).
			AddRow(1, username, username+"@example.com", string(hash), time.Now()))
}

func TestRegisterLoginChatHistoryFlow(t *testing.T) {
	app := newTestApp(t, 60)

	// Register.
	app.mock.ExpectQuery(`INSERT INTO users \(username, email, password\)`).
		WithArgs("alice", "alice@example.com", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	body, _ := json.Marshal(auth.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "strongpassword123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	rr := app.do(req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// Login with the same credentials.
	expectUserLookup(t, app.mock, "alice", "strongpassword123")

	form := strings.NewReader("username=alice&password=strongpassword123")
	req = httptest.NewRequest(http.MethodPost, "/api/login", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = app.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tok auth.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "bearer", tok.TokenType)

	// Chat: the bearer middleware resolves the subject, then the turn is
	// generated and persisted.
	expectUserLookup(t, app.mock, "alice", "strongpassword123")
	app.mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs(1, "hello bot", "canned reply", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(7))

	req = httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello bot"}`))
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rr = app.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var msg chat.MessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msg))
	assert.Equal(t, "canned reply", msg.Message)
	assert.Equal(t, []string{"hello bot"}, app.gen.Prompts)

	// History returns the stored turn.
	expectUserLookup(t, app.mock, "alice", "strongpassword123")
	app.mock.ExpectQuery(`SELECT id, user_id, user_message, bot_response, created_at`).
		WithArgs(1, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "user_message", "bot_response", "created_at"}).
			AddRow(7, 1, "hello bot", "canned reply", time.Now()))

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rr = app.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var turns []chat.Turn
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &turns))
	require.Len(t, turns, 1)
	assert.Equal(t, "hello bot", turns[0].UserMessage)
	assert.Equal(t, "canned reply", turns[0].BotResponse)

	require.NoError(t, app.mock.ExpectationsWereMet())
}

func TestChatExpiredTokenRejected(t *testing.T) {
	app := newTestApp(t, 60)

	// No DB expectations: an expired token must be rejected before any
	// lookup, and no turn may be appended.
	expired := signToken(t, "alice", time.Now().Add(-time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Authorization", "Bearer "+expired)
	rr := app.do(req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, app.gen.Prompts)
	require.NoError(t, app.mock.ExpectationsWereMet())
}

func TestChatMissingTokenRejected(t *testing.T) {
	app := newTestApp(t, 60)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	rr := app.do(req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.NoError(t, app.mock.ExpectationsWereMet())
}

func TestChatUnavailableWithoutBackend(t *testing.T) {
	app := newTestApp(t, 60)

	// Swap in a service with no generation capability, as main does when the
	// backend probe fails at startup.
	mock := app.mock
	authSvc := auth.NewService(mock, config.AuthConfig{JWTSecret: testSecret, AccessTokenDuration: 30 * time.Minute}, zerolog.Nop())
	chatSvc := chat.NewService(mock, nil, 5*time.Second, zerolog.Nop())
	chatHandlers := chat.NewHandlers(chatSvc)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(authSvc))
			r.Post("/chat", chatHandlers.HandleChat())
		})
	})

	expectUserLookup(t, mock, "alice", "pw")
	token := signToken(t, "alice", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"error":"model not loaded"}`, rr.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitDeniedBeforeAuth(t *testing.T) {
	app := newTestApp(t, 2)

	// Unauthenticated requests still count toward admission; the limiter
	// sits in front of the bearer middleware.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
		rr := app.do(req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "alice", time.Now().Add(time.Hour)))
	rr := app.do(req)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, rr.Body.String())
	// The denied request never reached the auth middleware.
	require.NoError(t, app.mock.ExpectationsWereMet())
}
