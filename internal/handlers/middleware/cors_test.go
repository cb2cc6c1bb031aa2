package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	called := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	})
	h := CORSMiddleware([]string{"https://app.example.com", "http://localhost:8888"})(next)

	t.Run("allowed origin echoed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/prompts", nil)
		r.Header.Set("Origin", "http://localhost:8888")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:8888", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})

	t.Run("unknown origin gets default", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/prompts", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)

		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short circuits", func(t *testing.T) {
		before := called
		r := httptest.NewRequest(http.MethodOptions, "/prompts/1", nil)
		r.Header.Set("Origin", "https://app.example.com")
		r.Header.Set("Access-Control-Request-Method", "DELETE")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, before, called, "preflight must not reach next handler")
	})

	t.Run("disabled without origins", func(t *testing.T) {
		w := httptest.NewRecorder()

		CORSMiddleware(nil)(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
