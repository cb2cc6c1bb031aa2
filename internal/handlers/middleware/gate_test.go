package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/handlers/identity"
	"github.com/nkiryanov/llmgate/internal/models"
	"github.com/nkiryanov/llmgate/internal/service/auth"
)

// Allow to use a function as authenticator
type authFunc func(r *http.Request) (models.Identity, bool)

func (f authFunc) Authenticate(r *http.Request) (models.Identity, bool) {
	return f(r)
}

// Token "user-<id>" authenticates user with the id
var byHeader = authFunc(func(r *http.Request) (models.Identity, bool) {
	var id int64
	if _, err := fmt.Sscanf(r.Header.Get("X-Test-User"), "user-%d", &id); err != nil {
		return models.Identity{}, false
	}
	return models.Identity{UserID: id}, true
})

type fakeUsers struct {
	users map[int64]models.User
	err   error
}

func (f fakeUsers) GetUserByID(_ context.Context, id int64) (models.User, error) {
	if f.err != nil {
		return models.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return u, nil
}

func (f fakeUsers) GetUserByAPIKeyHash(_ context.Context, hash string) (models.User, error) {
	if f.err != nil {
		return models.User{}, f.err
	}
	for _, u := range f.users {
		if u.APIKeyHash == hash {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

type recordedHit struct {
	Method   string
	Endpoint string
	UserID   int64
}

type fakeMeter struct {
	mu   sync.Mutex
	hits []recordedHit
}

func (m *fakeMeter) RecordHit(method string, endpoint string, userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = append(m.hits, recordedHit{method, endpoint, userID})
}

type fakeRejects map[string]int

func (f fakeRejects) GateRejected(tier string, reason string) { f[tier+"/"+reason]++ }

// Handler that writes identity and api key it found in context
var echo = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "no identity", http.StatusTeapot)
		return
	}
	key, _ := identity.APIKeyFromContext(r.Context())
	_ = json.NewEncoder(w).Encode(map[string]any{"uid": id.UserID, "adm": id.IsAdministrator, "key": key})
})

func serve(t *testing.T, h http.Handler, pattern string, r *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	mux.Handle(pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGate_Session(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		meter := &fakeMeter{}
		g := NewGate(byHeader, fakeUsers{}, meter)
		r := httptest.NewRequest(http.MethodGet, "/prompts/7", nil)
		r.Header.Set("X-Test-User", "user-7")

		w := serve(t, g.Session(echo), "GET /prompts/{userid}", r)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 7.0, decode(t, w)["uid"])
		assert.Equal(t, []recordedHit{{"GET", "/prompts/{userid}", 7}}, meter.hits)
	})

	t.Run("missing token", func(t *testing.T) {
		meter := &fakeMeter{}
		rejects := fakeRejects{}
		g := NewGate(byHeader, fakeUsers{}, meter, WithRejectCounter(rejects))

		w := serve(t, g.Session(echo), "GET /prompts", httptest.NewRequest(http.MethodGet, "/prompts", nil))

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "service_error", decode(t, w)["error"])
		assert.Empty(t, meter.hits, "rejected requests are not metered")
		assert.Equal(t, 1, rejects["session/unauthenticated"])
	})
}

func TestGate_Admin(t *testing.T) {
	users := fakeUsers{users: map[int64]models.User{
		1: {ID: 1, IsAdministrator: true},
		2: {ID: 2},
	}}

	tests := []struct {
		name     string
		header   string
		users    fakeUsers
		wantCode int
		wantHits int
	}{
		{name: "admin passes", header: "user-1", users: users, wantCode: http.StatusOK, wantHits: 1},
		{name: "no token", header: "", users: users, wantCode: http.StatusUnauthorized},
		{name: "not admin", header: "user-2", users: users, wantCode: http.StatusForbidden},
		{name: "deleted user", header: "user-3", users: users, wantCode: http.StatusUnauthorized},
		{name: "storage failure", header: "user-1", users: fakeUsers{err: errors.New("db down")}, wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meter := &fakeMeter{}
			g := NewGate(byHeader, tt.users, meter)
			r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			r.Header.Set("X-Test-User", tt.header)

			w := serve(t, g.Admin(echo), "GET /admin/users", r)

			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Len(t, meter.hits, tt.wantHits)
		})
	}

	t.Run("admin flag comes from storage", func(t *testing.T) {
		// Token says admin, storage says not anymore
		stale := authFunc(func(*http.Request) (models.Identity, bool) {
			return models.Identity{UserID: 2, IsAdministrator: true}, true
		})
		g := NewGate(stale, users, &fakeMeter{})

		w := serve(t, g.Admin(echo), "GET /admin/users", httptest.NewRequest(http.MethodGet, "/admin/users", nil))

		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGate_APIKey(t *testing.T) {
	users := fakeUsers{users: map[int64]models.User{
		5: {ID: 5, APIKeyHash: auth.HashAPIKey("good-key")},
	}}

	t.Run("valid key", func(t *testing.T) {
		meter := &fakeMeter{}
		g := NewGate(byHeader, users, meter)
		r := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
		r.Header.Set("Authorization", "Bearer good-key")

		w := serve(t, g.APIKey(echo), "POST /api/ask", r)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, 5.0, body["uid"])
		assert.Equal(t, "good-key", body["key"], "raw key is passed to handler")
		assert.Equal(t, []recordedHit{{"POST", "/api/ask", 5}}, meter.hits)
	})

	tests := []struct {
		name   string
		header string
		reason string
	}{
		{name: "missing header", header: "", reason: "apikey/missing_key"},
		{name: "wrong scheme", header: "Basic good-key", reason: "apikey/missing_key"},
		{name: "unknown key", header: "Bearer bad-key", reason: "apikey/unknown_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meter := &fakeMeter{}
			rejects := fakeRejects{}
			g := NewGate(byHeader, users, meter, WithRejectCounter(rejects))
			r := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			w := serve(t, g.APIKey(echo), "POST /api/ask", r)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Empty(t, meter.hits)
			assert.Equal(t, 1, rejects[tt.reason])
		})
	}
}

func TestEndpoint(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	assert.Equal(t, "/raw/path", endpoint(r))

	r.Pattern = "GET /prompts/{userid}"
	assert.Equal(t, "/prompts/{userid}", endpoint(r))

	r.Pattern = "/healthz"
	assert.Equal(t, "/healthz", endpoint(r))
}
