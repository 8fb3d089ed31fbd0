package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

type schedulingInputs interface {
	MyAvailability(ctx context.Context, claims *models.JWTClaims) ([]models.TrainerAvailability, error)
	BulkCreateAvailability(ctx context.Context, claims *models.JWTClaims, items []dto.AvailabilityWindowRequest) (*dto.BulkAvailabilityResult, error)
	Settings(ctx context.Context, termID string, schoolID *string) (*models.TimetableSettings, error)
	SaveSettings(ctx context.Context, claims *models.JWTClaims, req dto.TimetableSettingsRequest) (*models.TimetableSettings, error)
}

// SchedulingInputHandler manages trainer availability and timetable settings.
type SchedulingInputHandler struct {
	service schedulingInputs
}

// NewSchedulingInputHandler constructs the handler.
func NewSchedulingInputHandler(svc *service.SchedulingInputService) *SchedulingInputHandler {
	return &SchedulingInputHandler{service: svc}
}

// MyAvailability godoc
// @Summary Availability windows of the calling trainer
// @Tags Scheduling Inputs
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /trainer-availability/mine [get]
func (h *SchedulingInputHandler) MyAvailability(c *gin.Context) {
	windows, err := h.service.MyAvailability(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, windows)
}

// BulkCreateAvailability godoc
// @Summary Declare availability windows; each item is stored independently
// @Tags Scheduling Inputs
// @Accept json
// @Produce json
// @Param payload body []dto.AvailabilityWindowRequest true "Availability windows"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /trainer-availability/bulk [post]
func (h *SchedulingInputHandler) BulkCreateAvailability(c *gin.Context) {
	var items []dto.AvailabilityWindowRequest
	if err := c.ShouldBindJSON(&items); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "expected a list of availability windows"))
		return
	}
	result, err := h.service.BulkCreateAvailability(c.Request.Context(), claimsFromContext(c), items)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(result.Errors) > 0 {
		response.JSON(c, http.StatusBadRequest, result, nil)
		return
	}
	response.Created(c, result)
}

// Settings godoc
// @Summary Timetable settings of a term, or the defaults when none are stored
// @Tags Scheduling Inputs
// @Produce json
// @Param termId query string true "Term ID"
// @Param schoolId query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /timetable-settings [get]
func (h *SchedulingInputHandler) Settings(c *gin.Context) {
	var schoolID *string
	if raw := queryValue(c, "schoolId", "school_id"); raw != "" {
		schoolID = &raw
	}
	settings, err := h.service.Settings(c.Request.Context(), queryValue(c, "termId", "term_id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}

// SaveSettings godoc
// @Summary Create or replace the timetable settings of a term
// @Tags Scheduling Inputs
// @Accept json
// @Produce json
// @Param payload body dto.TimetableSettingsRequest true "Settings"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /timetable-settings [put]
func (h *SchedulingInputHandler) SaveSettings(c *gin.Context) {
	var req dto.TimetableSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable settings payload"))
		return
	}
	settings, err := h.service.SaveSettings(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}
