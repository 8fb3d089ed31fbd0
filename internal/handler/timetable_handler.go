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

type conflictChecker interface {
	Check(ctx context.Context, req dto.ConflictCheckRequest) (*dto.ConflictReport, error)
	ValidateEntry(ctx context.Context, req dto.ConflictCheckRequest) (*dto.ValidateEntryResponse, error)
}

type timetableViewer interface {
	ListEntries(ctx context.Context, claims *models.JWTClaims, q service.EntryListQuery) ([]models.TimetableEntryDetail, error)
	MySchedule(ctx context.Context, claims *models.JWTClaims, termID, from, to string) ([]dto.MyScheduleDay, error)
	RoomAvailability(ctx context.Context, roomID, date string) (*dto.RoomAvailability, error)
}

// TimetableHandler exposes conflict checks and read-only timetable views.
type TimetableHandler struct {
	conflicts conflictChecker
	views     timetableViewer
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(conflicts *service.ConflictService, views *service.TimetableViewService) *TimetableHandler {
	return &TimetableHandler{conflicts: conflicts, views: views}
}

// CheckConflicts godoc
// @Summary Check a candidate placement against the published timetable
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ConflictCheckRequest true "Candidate placement"
// @Success 200 {object} response.Envelope
// @Router /timetable/conflicts [post]
func (h *TimetableHandler) CheckConflicts(c *gin.Context) {
	var req dto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict check payload"))
		return
	}
	report, err := h.conflicts.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// ValidateEntry godoc
// @Summary Validate whether an entry may be saved without conflicts
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ConflictCheckRequest true "Candidate placement"
// @Success 200 {object} response.Envelope
// @Router /timetable/validate-entry [post]
func (h *TimetableHandler) ValidateEntry(c *gin.Context) {
	var req dto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	result, err := h.conflicts.ValidateEntry(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListEntries godoc
// @Summary List timetable entries visible to the caller
// @Tags Timetable
// @Produce json
// @Param termId query string false "Term ID"
// @Param draftVersion query string false "Draft version"
// @Param publishedOnly query bool false "Only published entries"
// @Param day query string false "Day of week"
// @Param classGroupId query []string false "Class group IDs"
// @Param trainerId query []string false "Trainer IDs"
// @Param departmentId query []string false "Department IDs"
// @Param roomId query string false "Room ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/entries [get]
func (h *TimetableHandler) ListEntries(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := service.EntryListQuery{
		TermID:        queryValue(c, "termId", "term_id"),
		DraftVersion:  queryValue(c, "draftVersion", "draft_version"),
		PublishedOnly: queryBool(c, "publishedOnly"),
		DayOfWeek:     queryValue(c, "day"),
		ClassGroupIDs: queryList(c, "classGroupId"),
		TrainerIDs:    queryList(c, "trainerId"),
		DepartmentIDs: queryList(c, "departmentId"),
		RoomID:        queryValue(c, "roomId", "room_id"),
	}
	entries, err := h.views.ListEntries(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"count": len(entries)})
}

// MySchedule godoc
// @Summary Caller's published schedule laid out per date
// @Tags Timetable
// @Produce json
// @Param termId query string false "Term ID"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /timetable/my-schedule [get]
func (h *TimetableHandler) MySchedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	days, err := h.views.MySchedule(c.Request.Context(), claims, queryValue(c, "termId", "term_id"), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, days)
}

// RoomAvailability godoc
// @Summary Published bookings of a room on a date
// @Tags Timetable
// @Produce json
// @Param id path string true "Room ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/availability [get]
func (h *TimetableHandler) RoomAvailability(c *gin.Context) {
	result, err := h.views.RoomAvailability(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
