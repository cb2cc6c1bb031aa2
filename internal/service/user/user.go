package user

import (
	"context"
	"strings"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/models"
	"github.com/nkiryanov/llmgate/internal/repository"
	"github.com/nkiryanov/llmgate/internal/service/auth"
)

type UserService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *UserService {
	return &UserService{storage: storage}
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.storage.User().GetUserByEmail(ctx, email)
}

// Lookup user by raw API key
func (s *UserService) GetUserByAPIKey(ctx context.Context, key string) (models.User, error) {
	return s.storage.User().GetUserByAPIKeyHash(ctx, auth.HashAPIKey(key))
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.storage.User().ListUsers(ctx)
}

// Has to return apperrors.ErrUsernameTaken if username belongs to other user
func (s *UserService) SetUsername(ctx context.Context, userID int64, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperrors.ErrInvalidUsername
	}
	return s.storage.User().SetUsername(ctx, userID, username)
}

// Count one LLM request of the API key owner
func (s *UserService) IncrementUsage(ctx context.Context, key string) (int64, error) {
	return s.storage.User().IncrementRequestCount(ctx, auth.HashAPIKey(key))
}

func (s *UserService) ListMetrics(ctx context.Context) ([]models.EndpointMetric, error) {
	return s.storage.Metric().ListMetrics(ctx)
}
