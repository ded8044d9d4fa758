package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedHandler(t *testing.T, called *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		user, ok := UserFromContext(r.Context())
		require.True(t, ok, "middleware must place the user in context")
		assert.Equal(t, "alice", user.Username)
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareValidToken(t *testing.T) {
	svc, mock := newTestService(t)

	token, err := svc.issueToken("alice")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, username, email, password, created_at FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(userRow(t, 1, "alice", "secret"))

	var called bool
	handler := Middleware(svc)(protectedHandler(t, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareRejections(t *testing.T) {
	svc, mock := newTestService(t)

	expiredSvc, _ := newTestService(t)
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expiredSvc.issueToken("alice")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic YWxpY2U6c2VjcmV0"},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + expiredToken},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var called bool
			handler := Middleware(svc)(protectedHandler(t, &called))

			req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
			if c.header != "" {
				req.Header.Set("Authorization", c.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, called, "handler must not run")
		})
	}

	// None of the rejected requests may have touched the user directory.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareUnknownSubject(t *testing.T) {
	svc, mock := newTestService(t)

	token, err := svc.issueToken("ghost")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, username, email, password, created_at FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	var called bool
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}
