package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/llmgate/internal/logger"
	"github.com/nkiryanov/llmgate/internal/models"
)

// Only registration is needed here
type registerAuth struct {
	authService
	emails []string
}

func (a *registerAuth) Register(_ context.Context, email string, _ string) (models.User, string, error) {
	a.emails = append(a.emails, email)
	return models.User{Email: email}, "api-key", nil
}

func TestHandleRegister(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{
			name:     "short password accepted",
			body:     `{"email": "a@b.com", "password": "pw"}`,
			wantCode: http.StatusOK,
			wantBody: `{"apiKey": "api-key"}`,
		},
		{
			name:     "empty password rejected",
			body:     `{"email": "a@b.com", "password": ""}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"error": "validation_failed", "message": "Request validation failed", "fields": {"password": "This field is required"}}`,
		},
		{
			name:     "too long password rejected",
			body:     `{"email": "a@b.com", "password": "` + strings.Repeat("p", 129) + `"}`,
			wantCode: http.StatusBadRequest,
			wantBody: `{"error": "validation_failed", "message": "Request validation failed", "fields": {"password": "Value is too long (maximum 128)"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &registerAuth{}
			h := handleRegister(a, logger.NewNoOpLogger())

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tt.body)))

			require.Equal(t, tt.wantCode, w.Code)
			require.JSONEq(t, tt.wantBody, w.Body.String())
			if tt.wantCode == http.StatusOK {
				require.Equal(t, []string{"a@b.com"}, a.emails)
			} else {
				require.Empty(t, a.emails, "invalid request must not reach service")
			}
		})
	}
}
