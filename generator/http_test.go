package generator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/chatbot-go/config"
)

func testConfig(url string) *config.GeneratorConfig {
	return &config.GeneratorConfig{
		URL:          url,
		Timeout:      2 * time.Second,
		MaxNewTokens: 100,
		Temperature:  0.7,
	}
}

func TestNewHTTPClientHealthProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(testConfig(srv.URL))
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestNewHTTPClientUnhealthyBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(testConfig(srv.URL))
	require.Error(t, err)
}

func TestNewHTTPClientUnreachableBackend(t *testing.T) {
	// A closed server is as unreachable as a never-started one.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(testConfig(url))
	require.Error(t, err)
}

func TestGenerateSendsParamsAndTakesFirstCandidate(t *testing.T) {
	var seen generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/generate":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode([]generateCandidate{
				{GeneratedText: "hello there"},
				{GeneratedText: "ignored second candidate"},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c, err := NewHTTPClient(testConfig(srv.URL))
	require.NoError(t, err)

	reply, err := c.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)

	assert.Equal(t, "hello", seen.Inputs)
	assert.Equal(t, 100, seen.Parameters.MaxNewTokens)
	assert.True(t, seen.Parameters.DoSample)
	assert.InDelta(t, 0.7, seen.Parameters.Temperature, 1e-9)
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c, err := NewHTTPClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "hello")
	require.Error(t, err)
}

func TestGenerateHonorsContextCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		// Drain the body so the server's background read can observe the
		// client disconnect; otherwise r.Context() is never cancelled and
		// srv.Close() blocks on this handler.
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewHTTPClient(testConfig(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err = c.Generate(ctx, "hello")
	require.Error(t, err)
}
