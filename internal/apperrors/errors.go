package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidUsername    = errors.New("username must not be blank")
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("not allowed")

	ErrPromptNotFound      = errors.New("prompt not found")
	ErrPromptAlreadyExists = errors.New("prompt with this title already exists")

	ErrLLMUnavailable = errors.New("llm service unavailable")
)
