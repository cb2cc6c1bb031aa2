package repository

import (
	"context"

	"github.com/nkiryanov/llmgate/internal/models"
)

type CreateUserParams struct {
	Email           string
	PasswordHash    string
	APIKeyHash      string
	IsAdministrator bool
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id, email or API key digest
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByAPIKeyHash(ctx context.Context, hash string) (models.User, error)

	ListUsers(ctx context.Context) ([]models.User, error)

	// Replace the stored API key digest, the previous key stops working
	SetAPIKeyHash(ctx context.Context, userID int64, hash string) error

	// Has to return apperrors.ErrUsernameTaken if another user owns the username
	SetUsername(ctx context.Context, userID int64, username string) error

	// Increment request counter of the API key owner and return new value
	IncrementRequestCount(ctx context.Context, apiKeyHash string) (int64, error)
}

type ListPromptsOpts struct {
	// List prompts of the user only; all prompts if nil
	UserID *int64
}

type PromptRepo interface {
	// Has to return apperrors.ErrPromptAlreadyExists if the user has a prompt with the title
	// and apperrors.ErrUserNotFound if the user not exists
	CreatePrompt(ctx context.Context, userID int64, title string, prompt string) (models.Prompt, error)

	// Prompt lookups are always scoped by owner
	// If prompt not found must return apperrors.ErrPromptNotFound
	GetPrompt(ctx context.Context, userID int64, promptID int64) (models.Prompt, error)
	UpdatePrompt(ctx context.Context, p models.Prompt) (models.Prompt, error)
	DeletePrompt(ctx context.Context, userID int64, promptID int64) error

	ListPrompts(ctx context.Context, opts ListPromptsOpts) ([]models.Prompt, error)
}

type MetricRepo interface {
	// Upsert request counter for (method, endpoint, user)
	RecordHit(ctx context.Context, method string, endpoint string, userID int64) error
	ListMetrics(ctx context.Context) ([]models.EndpointMetric, error)
}

type Storage interface {
	User() UserRepo
	Prompt() PromptRepo
	Metric() MetricRepo
}
