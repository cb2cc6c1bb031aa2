package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/handlers/render"
	"github.com/nkiryanov/llmgate/internal/logger"
)

// @Summary List users
// @Tags admin
// @Produce json
// @Success 200 {array} userResponse
// @Failure 401 {object} render.ErrorResponse
// @Failure 403 {object} render.ErrorResponse
// @Router /admin/users [get]
func handleListUsers(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		users, err := userService.ListUsers(r.Context())
		if err != nil {
			l.Error("Failed to list users", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]userResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, toUserResponse(u))
		}
		render.JSON(w, resp)
	})
}

// @Summary Get user by email
// @Tags admin
// @Produce json
// @Param email path string true "User email"
// @Success 200 {object} userResponse
// @Failure 403 {object} render.ErrorResponse
// @Failure 404 {object} render.ErrorResponse
// @Router /admin/users/{email} [get]
func handleGetUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userService.GetUserByEmail(r.Context(), r.PathValue("email"))
		switch {
		case err == nil:
			render.JSON(w, toUserResponse(user))
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("Failed to get user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// @Summary Endpoint usage
// @Description Request counters per method, endpoint and user.
// @Tags admin
// @Produce json
// @Success 200 {array} metricResponse
// @Failure 403 {object} render.ErrorResponse
// @Router /admin/metrics [get]
func handleListMetrics(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics, err := userService.ListMetrics(r.Context())
		if err != nil {
			l.Error("Failed to list metrics", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]metricResponse, 0, len(metrics))
		for _, m := range metrics {
			resp = append(resp, metricResponse(m))
		}
		render.JSON(w, resp)
	})
}
