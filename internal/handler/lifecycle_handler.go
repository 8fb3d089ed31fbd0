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

type lifecycleManager interface {
	Publish(ctx context.Context, version string) (*dto.PublishResult, error)
	Discard(ctx context.Context, version string) (*dto.DiscardResult, error)
	Revert(ctx context.Context, version string) (*dto.RevertResult, error)
	Status(ctx context.Context, version, termID string) (*dto.VersionStatus, error)
	ListDraftVersions(ctx context.Context, termID string, includePublished bool) ([]models.DraftVersionInfo, error)
	DraftSummary(ctx context.Context, version, termID string) (*dto.DraftSummary, error)
}

// LifecycleHandler exposes draft version review and publication.
type LifecycleHandler struct {
	service lifecycleManager
}

// NewLifecycleHandler constructs the handler.
func NewLifecycleHandler(svc *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{service: svc}
}

// DraftVersions godoc
// @Summary List draft versions newest first
// @Tags Timetable Lifecycle
// @Produce json
// @Param termId query string false "Term ID"
// @Param includePublished query bool false "Include published versions"
// @Success 200 {object} response.Envelope
// @Router /timetable/draft-versions [get]
func (h *LifecycleHandler) DraftVersions(c *gin.Context) {
	versions, err := h.service.ListDraftVersions(c.Request.Context(), queryValue(c, "termId", "term_id"), queryBool(c, "includePublished"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, versions)
}

// DraftSummary godoc
// @Summary Summarise a draft version by department, class group, day, trainer and room
// @Tags Timetable Lifecycle
// @Produce json
// @Param draftVersion query string true "Draft version"
// @Param termId query string false "Term ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/draft-summary [get]
func (h *LifecycleHandler) DraftSummary(c *gin.Context) {
	summary, err := h.service.DraftSummary(c.Request.Context(), queryValue(c, "draftVersion", "draft_version"), queryValue(c, "termId", "term_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// VersionStatus godoc
// @Summary Entry counts and active flag of a version; unknown versions report zeros
// @Tags Timetable Lifecycle
// @Produce json
// @Param version path string true "Draft version"
// @Param termId query string false "Term ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/versions/{version}/status [get]
func (h *LifecycleHandler) VersionStatus(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), c.Param("version"), queryValue(c, "termId", "term_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// Publish godoc
// @Summary Publish a draft version as the single active timetable
// @Tags Timetable Lifecycle
// @Accept json
// @Produce json
// @Param payload body dto.DraftVersionRequest true "Draft version"
// @Success 200 {object} response.Envelope
// @Router /timetable/publish-draft [post]
func (h *LifecycleHandler) Publish(c *gin.Context) {
	version, ok := bindDraftVersion(c)
	if !ok {
		return
	}
	result, err := h.service.Publish(c.Request.Context(), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Message == service.MessageNoEntries {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, result.Message))
		return
	}
	response.OK(c, result)
}

// Discard godoc
// @Summary Delete the draft rows of a version
// @Tags Timetable Lifecycle
// @Accept json
// @Produce json
// @Param payload body dto.DraftVersionRequest true "Draft version"
// @Success 200 {object} response.Envelope
// @Router /timetable/discard-draft [post]
func (h *LifecycleHandler) Discard(c *gin.Context) {
	version, ok := bindDraftVersion(c)
	if !ok {
		return
	}
	result, err := h.service.Discard(c.Request.Context(), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.DiscardedCount == 0 {
		message := result.Message
		if message == "" {
			message = service.MessageNoDraftEntries
		}
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, message))
		return
	}
	response.OK(c, result)
}

// Revert godoc
// @Summary Flip a published version back to draft
// @Tags Timetable Lifecycle
// @Accept json
// @Produce json
// @Param payload body dto.DraftVersionRequest true "Draft version"
// @Success 200 {object} response.Envelope
// @Router /timetable/revert-to-draft [post]
func (h *LifecycleHandler) Revert(c *gin.Context) {
	version, ok := bindDraftVersion(c)
	if !ok {
		return
	}
	result, err := h.service.Revert(c.Request.Context(), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Message == service.MessageNoEntries {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, result.Message))
		return
	}
	response.OK(c, result)
}

func bindDraftVersion(c *gin.Context) (string, bool) {
	var req dto.DraftVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "draft_version is required"))
		return "", false
	}
	return req.DraftVersion, true
}
