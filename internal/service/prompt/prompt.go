package prompt

import (
	"context"
	"errors"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/models"
	"github.com/nkiryanov/llmgate/internal/repository"
)

type userLookup interface {
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
}

// Prompt service
// Users manage their own prompts, administrators manage everyone's
type PromptService struct {
	promptRepo repository.PromptRepo
	users      userLookup
}

func NewService(promptRepo repository.PromptRepo, users userLookup) *PromptService {
	return &PromptService{promptRepo: promptRepo, users: users}
}

// Administrator flag is read from storage, the adm claim of a still valid token may be stale
func (s *PromptService) isAdministrator(ctx context.Context, who models.Identity) (bool, error) {
	user, err := s.users.GetUserByID(ctx, who.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return user.IsAdministrator, nil
}

func (s *PromptService) authorize(ctx context.Context, who models.Identity, ownerID int64) error {
	if who.UserID == ownerID {
		return nil
	}
	admin, err := s.isAdministrator(ctx, who)
	if err != nil {
		return err
	}
	if !admin {
		return apperrors.ErrForbidden
	}
	return nil
}

// List prompts visible to the caller: all for administrators, own otherwise
func (s *PromptService) List(ctx context.Context, who models.Identity) ([]models.Prompt, error) {
	admin, err := s.isAdministrator(ctx, who)
	if err != nil {
		return nil, err
	}

	opts := repository.ListPromptsOpts{}
	if !admin {
		opts.UserID = &who.UserID
	}
	return s.promptRepo.ListPrompts(ctx, opts)
}

func (s *PromptService) ListOf(ctx context.Context, who models.Identity, ownerID int64) ([]models.Prompt, error) {
	if err := s.authorize(ctx, who, ownerID); err != nil {
		return nil, err
	}
	return s.promptRepo.ListPrompts(ctx, repository.ListPromptsOpts{UserID: &ownerID})
}

func (s *PromptService) Get(ctx context.Context, who models.Identity, ownerID int64, promptID int64) (models.Prompt, error) {
	if err := s.authorize(ctx, who, ownerID); err != nil {
		return models.Prompt{}, err
	}
	return s.promptRepo.GetPrompt(ctx, ownerID, promptID)
}

func (s *PromptService) Create(ctx context.Context, who models.Identity, ownerID int64, title string, prompt string) (models.Prompt, error) {
	if err := s.authorize(ctx, who, ownerID); err != nil {
		return models.Prompt{}, err
	}
	return s.promptRepo.CreatePrompt(ctx, ownerID, title, prompt)
}

func (s *PromptService) Update(ctx context.Context, who models.Identity, ownerID int64, promptID int64, title string, prompt string) (models.Prompt, error) {
	if err := s.authorize(ctx, who, ownerID); err != nil {
		return models.Prompt{}, err
	}
	return s.promptRepo.UpdatePrompt(ctx, models.Prompt{
		ID:     promptID,
		UserID: ownerID,
		Title:  title,
		Prompt: prompt,
	})
}

func (s *PromptService) Delete(ctx context.Context, who models.Identity, ownerID int64, promptID int64) error {
	if err := s.authorize(ctx, who, ownerID); err != nil {
		return err
	}
	return s.promptRepo.DeletePrompt(ctx, ownerID, promptID)
}
