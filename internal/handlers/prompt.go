package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/llmgate/internal/apperrors"
	"github.com/nkiryanov/llmgate/internal/handlers/identity"
	"github.com/nkiryanov/llmgate/internal/handlers/render"
	"github.com/nkiryanov/llmgate/internal/logger"
	"github.com/nkiryanov/llmgate/internal/models"
)

type promptRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	Prompt string `json:"prompt" validate:"required,max=10000"`
}

// Map prompt service error to response
func renderPromptError(w http.ResponseWriter, l logger.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrForbidden):
		render.ServiceError(w, "Not allowed to access prompts of other users", http.StatusForbidden)
	case errors.Is(err, apperrors.ErrPromptNotFound):
		render.ServiceError(w, "Prompt not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.ServiceError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrPromptAlreadyExists):
		render.ServiceError(w, "Prompt with this title already exists", http.StatusConflict)
	default:
		l.Error("Prompt operation failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func renderPrompts(w http.ResponseWriter, prompts []models.Prompt) {
	resp := make([]promptResponse, 0, len(prompts))
	for _, p := range prompts {
		resp = append(resp, toPromptResponse(p))
	}
	render.JSON(w, resp)
}

// @Summary List prompts
// @Description Own prompts; administrators get prompts of all users.
// @Tags prompts
// @Produce json
// @Success 200 {array} promptResponse
// @Failure 401 {object} render.ErrorResponse
// @Router /prompts [get]
func handleListPrompts(promptService promptService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())

		prompts, err := promptService.List(r.Context(), id)
		if err != nil {
			renderPromptError(w, l, err)
			return
		}
		renderPrompts(w, prompts)
	})
}

// @Summary List prompts of user
// @Tags prompts
// @Produce json
// @Param userid path int true "Owner id"
// @Success 200 {array} promptResponse
// @Failure 401 {object} render.ErrorResponse
// @Failure 403 {object} render.ErrorResponse
// @Router /prompts/{userid} [get]
func handleListUserPrompts(promptService promptService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		ownerID, ok := pathID(w, r, "userid")
		if !ok {
			return
		}

		prompts, err := promptService.ListOf(r.Context(), id, ownerID)
		if err != nil {
			renderPromptError(w, l, err)
			return
		}
		renderPrompts(w, prompts)
	})
}

// @Summary Get prompt
// @Tags prompts
// @Produce json
// @Param userid path int true "Owner id"
// @Param promptid path int true "Prompt id"
// @Success 200 {object} promptResponse
// @Failure 403 {object} render.ErrorResponse
// @Failure 404 {object} render.ErrorResponse
// @Router /prompts/{userid}/{promptid} [get]
func handleGetPrompt(promptService promptService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		ownerID, ok := pathID(w, r, "userid")
		if !ok {
			return
		}
		promptID, ok := pathID(w, r, "promptid")
		if !ok {
			return
		}

		p, err := promptService.Get(r.Context(), id, ownerID, promptID)
		if err != nil {
			renderPromptError(w, l, err)
			return
		}
		render.JSON(w, toPromptResponse(p))
	})
}

// @Summary Create prompt
// @Tags prompts
// @Accept json
// @Produce json
// @Param userid path int true "Owner id"
// @Param request body promptRequest true "Prompt"
// @Success 201 {object} promptResponse
// @Failure 400 {object} render.ErrorResponse
// @Failure 403 {object} render.ErrorResponse
// @Failure 409 {object} render.ErrorResponse
// @Router /prompts/{userid} [post]
func handleCreatePrompt(promptService promptService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		ownerID, ok := pathID(w, r, "userid")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[promptRequest](w, r)
		if err != nil {
			return
		}

		p, err := promptService.Create(r.Context(), id, ownerID, data.Title, data.Prompt)
		if err != nil {
			renderPromptError(w, l, err)
			return
		}
		render.JSONWithStatus(w, toPromptResponse(p), http.StatusCreated)
	})
}

// @Summary Update prompt
// @Tags prompts
// @Accept json
// @Produce json
// @Param userid path int true "Owner id"
// @Param promptid path int true "Prompt id"
// @Param request body promptRequest true "Prompt"
// @Success 200 {object} promptResponse
// @Failure 400 {object} render.ErrorResponse
// @Failure 403 {object} render.ErrorResponse
// @Failure 404 {object} render.ErrorResponse
// @Router /prompts/{userid}/{promptid} [put]
func handleUpdatePrompt(promptService promptService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		ownerID, ok := pathID(w, r, "userid")
		if !ok {
			return
		}
		promptID, ok := pathID(w, r, "promptid")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[promptRequest](w, r)
		if err != nil {
			return
		}

		p, err := promptService.Update(r.Context(), id, ownerID, promptID, data.Title, data.Prompt)
		if err != nil {
			renderPromptError(w, l, err)
			return
		}
		render.JSON(w, toPromptResponse(p))
	})
}

// @Summary Delete prompt
// @Tags prompts
// @Param userid path int true "Owner id"
// @Param promptid path int true "Prompt id"
// @Success 204
// @Failure 403 {object} render.ErrorResponse
// @Failure 404 {object} render.ErrorResponse
// @Router /prompts/{userid}/{promptid} [delete]
func handleDeletePrompt(promptService promptService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := identity.FromContext(r.Context())
		ownerID, ok := pathID(w, r, "userid")
		if !ok {
			return
		}
		promptID, ok := pathID(w, r, "promptid")
		if !ok {
			return
		}

		if err := promptService.Delete(r.Context(), id, ownerID, promptID); err != nil {
			renderPromptError(w, l, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
