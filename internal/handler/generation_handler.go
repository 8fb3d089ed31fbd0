package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

type timetableGenerator interface {
	Run(ctx context.Context, req dto.GenerateTimetableRequest, progress service.ProgressFunc) (*dto.GenerateTimetableResponse, error)
}

type generationTasks interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest, requestedBy string) (*dto.TaskSubmission, error)
	Status(ctx context.Context, taskID string) (*dto.TaskStatusResponse, error)
}

// GenerationHandler exposes synchronous and queued timetable generation.
type GenerationHandler struct {
	generator timetableGenerator
	tasks     generationTasks
}

// NewGenerationHandler constructs the handler. tasks may be nil when the
// scheduler queue is disabled.
func NewGenerationHandler(generator *service.TimetableGenerationService, tasks *service.GenerationTaskService) *GenerationHandler {
	h := &GenerationHandler{generator: generator}
	if tasks != nil {
		h.tasks = tasks
	}
	return h
}

// Generate godoc
// @Summary Generate a draft timetable
// @Description With async=true the run is queued and a task id is returned for polling.
// @Tags Timetable Generation
// @Accept json
// @Produce json
// @Param async query bool false "Queue the run"
// @Param payload body dto.GenerateTimetableRequest true "Generation scope"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}

	if queryBool(c, "async") {
		if h.tasks == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "background generation is disabled"))
			return
		}
		requestedBy := ""
		if claims := claimsFromContext(c); claims != nil {
			requestedBy = claims.UserID
		}
		submission, err := h.tasks.Submit(c.Request.Context(), req, requestedBy)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, submission)
		return
	}

	result, err := h.generator.Run(c.Request.Context(), req, nil)
	if err != nil {
		var creationErr *service.EntryCreationError
		if errors.As(err, &creationErr) {
			c.Header("Cache-Control", "no-store")
			c.JSON(http.StatusInternalServerError, response.Envelope{
				Error: appErrors.Clone(appErrors.ErrInternal, "failed to create timetable entries"),
				Meta: map[string]interface{}{
					"draft_version":  creationErr.DraftVersion,
					"created_count":  creationErr.Created,
					"failed_entries": creationErr.Failures,
				},
			})
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// TaskStatus godoc
// @Summary Poll a queued generation task
// @Tags Timetable Generation
// @Produce json
// @Param task_id query string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/generate/task-status [get]
func (h *GenerationHandler) TaskStatus(c *gin.Context) {
	if h.tasks == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "background generation is disabled"))
		return
	}
	status, err := h.tasks.Status(c.Request.Context(), queryValue(c, "task_id", "taskId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}
