package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type conflictEntryReader interface {
	FindConflicting(ctx context.Context, q models.ConflictQuery) ([]models.TimetableEntryDetail, error)
}

type enrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.CourseEnrollment, error)
}

// ConflictService detects overlaps between a candidate placement and the
// published timetable along the room, trainer and class group axes.
type ConflictService struct {
	entries     conflictEntryReader
	enrollments enrollmentFinder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewConflictService constructs the conflict checker.
func NewConflictService(entries conflictEntryReader, enrollments enrollmentFinder, validate *validator.Validate, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{entries: entries, enrollments: enrollments, validator: validate, logger: logger}
}

// FindConflicts returns per-axis buckets of published entries overlapping q.
// It never writes.
func (s *ConflictService) FindConflicts(ctx context.Context, q models.ConflictQuery) (*dto.ConflictReport, error) {
	if err := validateConflictQuery(q); err != nil {
		return nil, err
	}

	candidates, err := s.entries.FindConflicting(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}

	report := &dto.ConflictReport{
		RoomConflicts:       []dto.ConflictDetail{},
		TrainerConflicts:    []dto.ConflictDetail{},
		ClassGroupConflicts: []dto.ConflictDetail{},
	}
	for _, entry := range candidates {
		if entry.IsDraft || entry.DayOfWeek != q.DayOfWeek {
			continue
		}
		if q.ExcludeEntryID != "" && entry.ID == q.ExcludeEntryID {
			continue
		}
		if !models.Overlaps(entry.StartTime, entry.EndTime, q.StartTime, q.EndTime) {
			continue
		}
		detail := conflictDetail(entry)
		if q.RoomID != "" && entry.RoomID == q.RoomID {
			report.RoomConflicts = append(report.RoomConflicts, detail)
		}
		if q.TrainerID != "" && entry.TrainerID == q.TrainerID {
			report.TrainerConflicts = append(report.TrainerConflicts, detail)
		}
		if q.ClassGroupID != "" && entry.ClassGroupID == q.ClassGroupID {
			report.ClassGroupConflicts = append(report.ClassGroupConflicts, detail)
		}
	}
	report.HasConflicts = len(report.RoomConflicts)+len(report.TrainerConflicts)+len(report.ClassGroupConflicts) > 0
	return report, nil
}

// Check parses an API request, resolving trainer and class group from the
// enrollment when they are not given, and runs FindConflicts.
func (s *ConflictService) Check(ctx context.Context, req dto.ConflictCheckRequest) (*dto.ConflictReport, error) {
	q, err := s.queryFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.FindConflicts(ctx, q)
}

// ValidateEntry reports whether the candidate can be saved without conflicts.
func (s *ConflictService) ValidateEntry(ctx context.Context, req dto.ConflictCheckRequest) (*dto.ValidateEntryResponse, error) {
	report, err := s.Check(ctx, req)
	if err != nil {
		return nil, err
	}
	if report.HasConflicts {
		return &dto.ValidateEntryResponse{Valid: false, Message: "entry conflicts with the published timetable", Conflicts: report}, nil
	}
	return &dto.ValidateEntryResponse{Valid: true, Message: "no conflicts found"}, nil
}

func (s *ConflictService) queryFromRequest(ctx context.Context, req dto.ConflictCheckRequest) (models.ConflictQuery, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ConflictQuery{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}
	day, err := models.ParseDayOfWeek(req.DayOfWeek)
	if err != nil {
		return models.ConflictQuery{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	start, err := models.ParseClockTime(req.StartTime)
	if err != nil {
		return models.ConflictQuery{}, appErrors.Clone(appErrors.ErrValidation, "invalid start_time")
	}
	end, err := models.ParseClockTime(req.EndTime)
	if err != nil {
		return models.ConflictQuery{}, appErrors.Clone(appErrors.ErrValidation, "invalid end_time")
	}

	q := models.ConflictQuery{
		DayOfWeek:      day,
		StartTime:      start,
		EndTime:        end,
		RoomID:         req.RoomID,
		TrainerID:      req.TrainerID,
		ClassGroupID:   req.ClassGroupID,
		ExcludeEntryID: req.ExcludeEntryID,
	}

	if req.CourseEnrollmentID != "" && (q.TrainerID == "" || q.ClassGroupID == "") {
		enrollment, err := s.enrollments.FindByID(ctx, req.CourseEnrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ConflictQuery{}, appErrors.Clone(appErrors.ErrValidation, "course enrollment not found")
			}
			return models.ConflictQuery{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course enrollment")
		}
		if q.TrainerID == "" {
			q.TrainerID = enrollment.TrainerID
		}
		if q.ClassGroupID == "" {
			q.ClassGroupID = enrollment.ClassGroupID
		}
	}
	return q, nil
}

func validateConflictQuery(q models.ConflictQuery) error {
	if !q.DayOfWeek.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid day_of_week %q", q.DayOfWeek))
	}
	if q.StartTime >= q.EndTime {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}

func conflictDetail(entry models.TimetableEntryDetail) dto.ConflictDetail {
	return dto.ConflictDetail{
		EntryID:        entry.ID,
		CourseCode:     entry.CourseCode,
		CourseName:     entry.CourseName,
		RoomID:         entry.RoomID,
		RoomName:       entry.RoomName,
		TrainerID:      entry.TrainerID,
		TrainerName:    entry.TrainerName,
		ClassGroupID:   entry.ClassGroupID,
		ClassGroupName: entry.ClassGroupName,
		DayOfWeek:      entry.DayOfWeek,
		StartTime:      entry.StartTime,
		EndTime:        entry.EndTime,
		DraftVersion:   entry.DraftVersion,
	}
}
