package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/models"
	"github.com/nkiryanov/llmgate/internal/repository"
)

type PromptRepo struct {
	DB DBTX
}

const createPrompt = `-- name: CreatePrompt
INSERT INTO prompts (user_id, title, prompt)
VALUES ($1, $2, $3)
RETURNING id, user_id, title, prompt, created_at
`

func (r *PromptRepo) CreatePrompt(ctx context.Context, userID int64, title string, prompt string) (models.Prompt, error) {
	rows, _ := r.DB.Query(ctx, createPrompt, userID, title, prompt)
	p, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Prompt])

	if err != nil {
		switch {
		case isUniqueViolation(err, "prompts_user_title_key"):
			return p, apperrors.ErrPromptAlreadyExists
		case isForeignKeyViolation(err):
			return p, apperrors.ErrUserNotFound
		}
		return p, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

const getPrompt = `-- name: GetPrompt
SELECT id, user_id, title, prompt, created_at FROM prompts
WHERE user_id = $1 AND id = $2
`

func (r *PromptRepo) GetPrompt(ctx context.Context, userID int64, promptID int64) (models.Prompt, error) {
	rows, _ := r.DB.Query(ctx, getPrompt, userID, promptID)
	p, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Prompt])
	return p, promptErr(err)
}

const updatePrompt = `-- name: UpdatePrompt
UPDATE prompts SET title = $3, prompt = $4
WHERE user_id = $1 AND id = $2
RETURNING id, user_id, title, prompt, created_at
`

func (r *PromptRepo) UpdatePrompt(ctx context.Context, p models.Prompt) (models.Prompt, error) {
	rows, _ := r.DB.Query(ctx, updatePrompt, p.UserID, p.ID, p.Title, p.Prompt)
	updated, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.Prompt])
	return updated, promptErr(err)
}

const deletePrompt = `-- name: DeletePrompt
DELETE FROM prompts
WHERE user_id = $1 AND id = $2
`

func (r *PromptRepo) DeletePrompt(ctx context.Context, userID int64, promptID int64) error {
	tag, err := r.DB.Exec(ctx, deletePrompt, userID, promptID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrPromptNotFound
	}
	return nil
}

const listPrompts = `-- name: ListPrompts
SELECT id, user_id, title, prompt, created_at FROM prompts
WHERE ($1::bigint IS NULL OR user_id = $1)
ORDER BY id
`

func (r *PromptRepo) ListPrompts(ctx context.Context, opts repository.ListPromptsOpts) ([]models.Prompt, error) {
	rows, _ := r.DB.Query(ctx, listPrompts, opts.UserID)
	prompts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Prompt])
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return prompts, nil
}

func promptErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrPromptNotFound
	case isUniqueViolation(err, "prompts_user_title_key"):
		return apperrors.ErrPromptAlreadyExists
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
