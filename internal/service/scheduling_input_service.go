package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type availabilityStore interface {
	ListByTrainer(ctx context.Context, trainerID string) ([]models.TrainerAvailability, error)
	BulkCreate(ctx context.Context, windows []*models.TrainerAvailability) []error
}

type settingsStore interface {
	Get(ctx context.Context, termID string, schoolID *string) (*models.TimetableSettings, error)
	Upsert(ctx context.Context, settings *models.TimetableSettings) error
}

// SchedulingInputService maintains the inputs generation reads: trainer
// availability windows and per-term timetable settings.
type SchedulingInputService struct {
	availability availabilityStore
	settings     settingsStore
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewSchedulingInputService constructs the service.
func NewSchedulingInputService(availability availabilityStore, settings settingsStore, validate *validator.Validate, logger *zap.Logger) *SchedulingInputService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulingInputService{availability: availability, settings: settings, validator: validate, logger: logger}
}

// MyAvailability lists the calling trainer's windows.
func (s *SchedulingInputService) MyAvailability(ctx context.Context, claims *models.JWTClaims) ([]models.TrainerAvailability, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleTrainer {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only trainers have availability")
	}
	windows, err := s.availability.ListByTrainer(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if windows == nil {
		windows = []models.TrainerAvailability{}
	}
	return windows, nil
}

// BulkCreateAvailability stores each item on its own. Invalid or rejected
// items are reported by index and never block the rest. Trainers can only
// declare their own windows; administrators must name the trainer.
func (s *SchedulingInputService) BulkCreateAvailability(ctx context.Context, claims *models.JWTClaims, items []dto.AvailabilityWindowRequest) (*dto.BulkAvailabilityResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	trainerOnly := false
	switch claims.Role {
	case models.RoleAdmin, models.RoleSuperAdmin:
	case models.RoleTrainer:
		trainerOnly = true
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to declare availability")
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one availability item is required")
	}

	result := &dto.BulkAvailabilityResult{Created: []models.TrainerAvailability{}, Errors: []dto.AvailabilityFailure{}}
	var (
		pending []*models.TrainerAvailability
		indexes []int
	)
	items = append([]dto.AvailabilityWindowRequest(nil), items...)
	for i := range items {
		if trainerOnly {
			items[i].TrainerID = claims.UserID
		}
		item := items[i]
		window, err := s.availabilityFromRequest(item)
		if err != nil {
			result.Errors = append(result.Errors, dto.AvailabilityFailure{Index: i, Item: item, Error: err.Error()})
			continue
		}
		pending = append(pending, window)
		indexes = append(indexes, i)
	}

	if len(pending) > 0 {
		for j, err := range s.availability.BulkCreate(ctx, pending) {
			if err == nil {
				result.Created = append(result.Created, *pending[j])
				continue
			}
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				err = errors.New(pqErr.Message)
			}
			result.Errors = append(result.Errors, dto.AvailabilityFailure{Index: indexes[j], Item: items[indexes[j]], Error: err.Error()})
		}
	}
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Index < result.Errors[j].Index })

	s.logger.Sugar().Infow("trainer availability stored",
		"user_id", claims.UserID, "created", len(result.Created), "rejected", len(result.Errors))
	return result, nil
}

func (s *SchedulingInputService) availabilityFromRequest(item dto.AvailabilityWindowRequest) (*models.TrainerAvailability, error) {
	if err := s.validator.Struct(item); err != nil {
		return nil, fmt.Errorf("day_of_week, start_time and end_time are required")
	}
	if item.TrainerID == "" {
		return nil, fmt.Errorf("trainer_id is required")
	}
	day, err := models.ParseDayOfWeek(item.DayOfWeek)
	if err != nil {
		return nil, err
	}
	start, err := models.ParseClockTime(item.StartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start_time")
	}
	end, err := models.ParseClockTime(item.EndTime)
	if err != nil {
		return nil, fmt.Errorf("invalid end_time")
	}
	if start >= end {
		return nil, fmt.Errorf("start_time must be before end_time")
	}
	return &models.TrainerAvailability{TrainerID: item.TrainerID, DayOfWeek: day, StartTime: start, EndTime: end}, nil
}

// Settings returns the stored settings of a term, or the defaults when none
// were saved. The defaults carry an empty ID.
func (s *SchedulingInputService) Settings(ctx context.Context, termID string, schoolID *string) (*models.TimetableSettings, error) {
	if termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term_id is required")
	}
	settings, err := s.settings.Get(ctx, termID, schoolID)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := models.DefaultTimetableSettings(termID)
		defaults.SchoolID = schoolID
		return &defaults, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable settings")
	}
	return settings, nil
}

// SaveSettings validates and stores the settings of one term and school.
func (s *SchedulingInputService) SaveSettings(ctx context.Context, claims *models.JWTClaims, req dto.TimetableSettingsRequest) (*models.TimetableSettings, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can change timetable settings")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable settings payload")
	}

	settings := &models.TimetableSettings{
		TermID:            req.TermID,
		SchoolID:          req.SchoolID,
		SlotMinutes:       req.SlotMinutes,
		MaxSessionsPerDay: req.MaxSessionsPerDay,
	}
	for _, raw := range req.WorkingDays {
		day, err := models.ParseDayOfWeek(raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		settings.WorkingDays = append(settings.WorkingDays, string(day))
	}
	var err error
	if settings.DayStart, err = models.ParseClockTime(req.DayStart); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_start")
	}
	if settings.DayEnd, err = models.ParseClockTime(req.DayEnd); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid day_end")
	}
	breaks := req.Breaks
	if breaks == nil {
		breaks = []models.TimeWindow{}
	}
	for _, window := range breaks {
		if window.Start >= window.End {
			return nil, appErrors.Clone(appErrors.ErrValidation, "break start must be before end")
		}
	}
	raw, err := json.Marshal(breaks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode breaks")
	}
	settings.Breaks = types.JSONText(raw)
	if err := settings.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if err := s.settings.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save timetable settings")
	}
	s.logger.Sugar().Infow("timetable settings saved",
		"term_id", settings.TermID, "settings_id", settings.ID, "user_id", claims.UserID)
	return settings, nil
}
