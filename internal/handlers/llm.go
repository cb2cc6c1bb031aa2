package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/handlers/identity"
	"github.com/nkiryanov/llmgate/internal/handlers/render"
	"github.com/nkiryanov/llmgate/internal/logger"
)

type askRequest struct {
	Prompt    string `json:"prompt" validate:"required"`
	MaxTokens int    `json:"max_tokens" validate:"required,gt=0,max=8192"`
}

// @Summary Ask LLM
// @Description Proxies prompt to LLM service and counts request for the API key owner.
// @Tags llm
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body askRequest true "Prompt and token limit"
// @Success 200 {object} object
// @Failure 400 {object} render.ErrorResponse
// @Failure 401 {object} render.ErrorResponse
// @Failure 502 {object} render.ErrorResponse
// @Router /api/ask [post]
func handleAsk(llm llmClient, userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, _ := identity.APIKeyFromContext(r.Context())

		data, err := render.BindAndValidate[askRequest](w, r)
		if err != nil {
			return
		}

		answer, err := llm.Generate(r.Context(), data.Prompt, data.MaxTokens)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrLLMUnavailable):
			render.ServiceError(w, "Error encountered with LLM service", http.StatusBadGateway)
			return
		default:
			l.Error("LLM request failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		// Answer is already paid for upstream, so counting failure must not hide it
		if _, err := userService.IncrementUsage(r.Context(), key); err != nil {
			l.Error("Failed to increment request count", "error", err)
		}

		render.JSON(w, answer)
	})
}
