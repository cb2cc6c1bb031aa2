package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/handlers/identity"
	"github.com/nkiryanov/llmgate/internal/handlers/render"
	"github.com/nkiryanov/llmgate/internal/logger"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// @Summary Register a new user
// @Description Creates account and returns API key. The key is shown only once.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body credentialsRequest true "Email and password"
// @Success 200 {object} apiKeyResponse
// @Failure 400 {object} render.ErrorResponse
// @Failure 409 {object} render.ErrorResponse
// @Router /auth/register [post]
func handleRegister(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[credentialsRequest](w, r)
		if err != nil {
			return
		}

		_, key, err := authService.Register(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
			render.JSON(w, apiKeyResponse{APIKey: key})
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			l.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// @Summary Login
// @Description Sets accesstoken and refreshtoken cookies and Authorization header.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body credentialsRequest true "Email and password"
// @Success 200 {object} messageResponse
// @Failure 400 {object} render.ErrorResponse
// @Failure 401 {object} render.ErrorResponse
// @Router /auth/login [post]
func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
			authService.SetTokens(w, pair)
			render.JSON(w, messageResponse{Message: "Logged in successfully"})
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
		default:
			l.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// @Summary Refresh access token
// @Description Uses refreshtoken cookie; sets new accesstoken cookie.
// @Tags auth
// @Produce json
// @Success 200 {object} messageResponse
// @Failure 401 {object} render.ErrorResponse
// @Router /auth/refresh [post]
func handleTokenRefresh(authService authService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefresh(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not provided", http.StatusUnauthorized)
			return
		}

		access, err := authService.Refresh(refresh)
		if err != nil {
			render.ServiceError(w, "Refresh token is not valid", http.StatusUnauthorized)
			return
		}

		authService.SetAccess(w, access)
		render.JSON(w, messageResponse{Message: "Token refreshed successfully"})
	})
}

// @Summary Logout
// @Description Revokes refresh token and clears token cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} messageResponse
// @Failure 401 {object} render.ErrorResponse
// @Router /auth/logout [post]
func handleLogout(authService authService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refresh, err := authService.GetRefresh(r); err == nil {
			authService.Logout(refresh)
		}

		authService.ClearTokens(w)
		render.JSON(w, messageResponse{Message: "Logged out successfully"})
	})
}

// @Summary Issue new API key
// @Description Previous key stops working immediately.
// @Tags auth
// @Produce json
// @Success 200 {object} apiKeyResponse
// @Failure 401 {object} render.ErrorResponse
// @Router /auth/new-key [post]
func handleNewKey(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())

		key, err := authService.RotateAPIKey(r.Context(), id.UserID)
		switch {
		case err == nil:
			render.JSON(w, apiKeyResponse{APIKey: key})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to rotate API key", "error", err, "user_id", id.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} userResponse
// @Failure 401 {object} render.ErrorResponse
// @Failure 404 {object} render.ErrorResponse
// @Router /auth/me [get]
func handleMe(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())

		user, err := userService.GetUser(r.Context(), id.UserID)
		switch {
		case err == nil:
			render.JSON(w, toUserResponse(user))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get user", "error", err, "user_id", id.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// @Summary Change username
// @Tags auth
// @Accept json
// @Param request body object{username=string} true "New username"
// @Success 204
// @Failure 400 {object} render.ErrorResponse
// @Failure 409 {object} render.ErrorResponse
// @Router /auth/username [patch]
func handleChangeUsername(userService userService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = userService.SetUsername(r.Context(), id.UserID, data.Username)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, apperrors.ErrUsernameTaken):
			render.ServiceError(w, "Username already taken", http.StatusConflict)
		case errors.Is(err, apperrors.ErrInvalidUsername):
			render.ServiceError(w, "Username must not be blank", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to change username", "error", err, "user_id", id.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
