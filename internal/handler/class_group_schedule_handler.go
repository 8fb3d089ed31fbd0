package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/response"
)

type classGroupSchedules interface {
	Authorize(ctx context.Context, claims *models.JWTClaims, classGroupID, termID string) error
	Get(ctx context.Context, claims *models.JWTClaims, classGroupID, termID string) (*models.ClassGroupSchedule, error)
	Rebuild(ctx context.Context, exec sqlx.ExtContext, targets []models.ClassGroupTerm) (int, error)
	Invalidate(ctx context.Context, targets []models.ClassGroupTerm)
	Export(ctx context.Context, claims *models.JWTClaims, classGroupID, termID string, format service.ScheduleFormat) (*service.ScheduleExport, error)
}

// ClassGroupScheduleHandler serves materialised class group schedules.
type ClassGroupScheduleHandler struct {
	service classGroupSchedules
	exports bool
}

// NewClassGroupScheduleHandler constructs the handler. exportsEnabled gates
// the CSV/PDF download endpoint.
func NewClassGroupScheduleHandler(svc *service.ClassGroupScheduleService, exportsEnabled bool) *ClassGroupScheduleHandler {
	return &ClassGroupScheduleHandler{service: svc, exports: exportsEnabled}
}

// Get godoc
// @Summary Materialised weekly schedule of a class group
// @Tags Class Group Schedules
// @Produce json
// @Param classGroupId path string true "Class group ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /class-group-schedules/{classGroupId} [get]
func (h *ClassGroupScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("classGroupId"), queryValue(c, "termId", "term_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, schedule)
}

// Regenerate godoc
// @Summary Rebuild a class group schedule from published entries
// @Tags Class Group Schedules
// @Produce json
// @Param classGroupId path string true "Class group ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /class-group-schedules/{classGroupId}/regenerate [post]
func (h *ClassGroupScheduleHandler) Regenerate(c *gin.Context) {
	target := models.ClassGroupTerm{ClassGroupID: c.Param("classGroupId"), TermID: queryValue(c, "termId", "term_id")}
	if target.ClassGroupID == "" || target.TermID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class group id and termId are required"))
		return
	}
	if err := h.service.Authorize(c.Request.Context(), claimsFromContext(c), target.ClassGroupID, target.TermID); err != nil {
		response.Error(c, err)
		return
	}
	targets := []models.ClassGroupTerm{target}
	if _, err := h.service.Rebuild(c.Request.Context(), nil, targets); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rebuild class group schedule"))
		return
	}
	h.service.Invalidate(c.Request.Context(), targets)

	schedule, err := h.service.Get(c.Request.Context(), claimsFromContext(c), target.ClassGroupID, target.TermID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, schedule)
}

// Export godoc
// @Summary Download a class group schedule
// @Tags Class Group Schedules
// @Produce octet-stream
// @Param classGroupId path string true "Class group ID"
// @Param termId query string true "Term ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /class-group-schedules/{classGroupId}/export [get]
func (h *ClassGroupScheduleHandler) Export(c *gin.Context) {
	if !h.exports {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "exports are disabled"))
		return
	}
	format := service.ScheduleFormat(c.DefaultQuery("format", string(service.ScheduleFormatCSV)))
	file, err := h.service.Export(c.Request.Context(), claimsFromContext(c), c.Param("classGroupId"), queryValue(c, "termId", "term_id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}
