package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/models"
	"github.com/nkiryanov/llmgate/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, email, username, password_hash, api_key_hash, is_administrator, request_count`

const createUser = `-- name: CreateUser
INSERT INTO users (email, password_hash, api_key_hash, is_administrator)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, params.Email, params.PasswordHash, params.APIKeyHash, params.IsAdministrator)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return user, apperrors.ErrUserAlreadyExists
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return r.getOne(ctx, getUserByID, id)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, getUserByEmail, email)
}

const getUserByAPIKeyHash = `-- name: GetUserByAPIKeyHash
SELECT ` + userColumns + ` FROM users
WHERE api_key_hash = $1
`

func (r *UserRepo) GetUserByAPIKeyHash(ctx context.Context, hash string) (models.User, error) {
	return r.getOne(ctx, getUserByAPIKeyHash, hash)
}

const listUsers = `-- name: ListUsers
SELECT ` + userColumns + ` FROM users
ORDER BY id
`

func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, _ := r.DB.Query(ctx, listUsers)
	users, err := pgx.CollectRows(rows, rowToUser)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

const setAPIKeyHash = `-- name: SetAPIKeyHash
UPDATE users SET api_key_hash = $2
WHERE id = $1
`

func (r *UserRepo) SetAPIKeyHash(ctx context.Context, userID int64, hash string) error {
	tag, err := r.DB.Exec(ctx, setAPIKeyHash, userID, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

const setUsername = `-- name: SetUsername
UPDATE users SET username = $2
WHERE id = $1
`

func (r *UserRepo) SetUsername(ctx context.Context, userID int64, username string) error {
	tag, err := r.DB.Exec(ctx, setUsername, userID, username)
	switch {
	case isUniqueViolation(err, "users_username_key"):
		return apperrors.ErrUsernameTaken
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	}
	return nil
}

const incrementRequestCount = `-- name: IncrementRequestCount
UPDATE users SET request_count = request_count + 1
WHERE api_key_hash = $1
RETURNING request_count
`

func (r *UserRepo) IncrementRequestCount(ctx context.Context, apiKeyHash string) (int64, error) {
	var count int64
	err := r.DB.QueryRow(ctx, incrementRequestCount, apiKeyHash).Scan(&count)

	switch {
	case err == nil:
		return count, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, apperrors.ErrUserNotFound
	default:
		return 0, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (models.User, error) {
	rows, _ := r.DB.Query(ctx, query, arg)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.Username, &u.PasswordHash, &u.APIKeyHash, &u.IsAdministrator, &u.RequestCount)
	return u, err
}

// Report whether err is a unique violation of the named constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
