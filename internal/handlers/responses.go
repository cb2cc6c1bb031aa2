package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nkiryanov/llmgate/internal/handlers/render"
	"github.com/nkiryanov/llmgate/internal/models"
)

type messageResponse struct {
	Message string `json:"message"`
}

type apiKeyResponse struct {
	APIKey string `json:"apiKey"`
}

type userResponse struct {
	ID              int64     `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	Email           string    `json:"email"`
	Username        *string   `json:"username"`
	IsAdministrator bool      `json:"isAdministrator"`
	RequestCount    int64     `json:"requestCount"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:              u.ID,
		CreatedAt:       u.CreatedAt,
		Email:           u.Email,
		Username:        u.Username,
		IsAdministrator: u.IsAdministrator,
		RequestCount:    u.RequestCount,
	}
}

type promptResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPromptResponse(p models.Prompt) promptResponse {
	return promptResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		Prompt:    p.Prompt,
		CreatedAt: p.CreatedAt,
	}
}

type metricResponse struct {
	Method       string `json:"method"`
	Endpoint     string `json:"endpoint"`
	UserID       int64  `json:"userId"`
	RequestCount int64  `json:"requestCount"`
}

// Parse positive integer path value, render 400 if it is not
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		render.ServiceError(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
