package llm

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/logger"
)

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) LLMRequest(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, outcome)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *outcomes) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	o := &outcomes{}
	c := NewClient(Config{Origin: srv.URL + "/", APIKey: "upstream-key", RetryMax: 1}, logger.NewNoOpLogger(), o)
	c.client.RetryWaitMin = time.Millisecond
	c.client.RetryWaitMax = time.Millisecond
	return c, o
}

func TestClient_Generate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c, o := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/generate", r.URL.Path)
			assert.Equal(t, "hello world & more", r.URL.Query().Get("prompt"))
			assert.Equal(t, "42", r.URL.Query().Get("max_tokens"))
			assert.Equal(t, "Bearer upstream-key", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"response":"hi"}`))
		})

		got, err := c.Generate(t.Context(), "hello world & more", 42)

		require.NoError(t, err)
		assert.JSONEq(t, `{"response":"hi"}`, string(got))
		assert.Equal(t, []string{"ok"}, o.seen)
	})

	t.Run("server error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		c, o := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.Generate(t.Context(), "p", 1)

		require.ErrorIs(t, err, apperrors.ErrLLMUnavailable)
		assert.Equal(t, int32(1), calls.Load(), "upstream already did the work")
		assert.Equal(t, []string{"bad_status"}, o.seen)
	})

	t.Run("dropped connection is retried", func(t *testing.T) {
		var calls atomic.Int32
		c, o := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				conn, _, err := w.(http.Hijacker).Hijack()
				if assert.NoError(t, err) {
					_ = conn.Close()
				}
				return
			}
			_, _ = w.Write([]byte(`{"response":"second try"}`))
		})

		got, err := c.Generate(t.Context(), "p", 1)

		require.NoError(t, err)
		assert.JSONEq(t, `{"response":"second try"}`, string(got))
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, []string{"ok"}, o.seen)
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls atomic.Int32
		c, o := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := c.Generate(t.Context(), "p", 1)

		require.ErrorIs(t, err, apperrors.ErrLLMUnavailable)
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, []string{"bad_status"}, o.seen)
	})

	t.Run("server fails", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := c.Generate(t.Context(), "p", 1)

		require.ErrorIs(t, err, apperrors.ErrLLMUnavailable)
	})

	t.Run("invalid json", func(t *testing.T) {
		c, o := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})

		_, err := c.Generate(t.Context(), "p", 1)

		require.ErrorIs(t, err, apperrors.ErrLLMUnavailable)
		assert.Equal(t, []string{"bad_body"}, o.seen)
	})

	t.Run("service down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		o := &outcomes{}
		c := NewClient(Config{Origin: srv.URL, RetryMax: 1}, logger.NewNoOpLogger(), o)
		c.client.RetryWaitMin = time.Millisecond
		c.client.RetryWaitMax = time.Millisecond

		_, err := c.Generate(t.Context(), "p", 1)

		require.ErrorIs(t, err, apperrors.ErrLLMUnavailable)
		assert.Equal(t, []string{"error"}, o.seen)
	})
}
