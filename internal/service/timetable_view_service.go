package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

const (
	dateLayout          = "2006-01-02"
	maxScheduleRangeDay = 31
)

type viewEntryReader interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.EntryFilter) ([]models.TimetableEntryDetail, error)
}

type roomFinder interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// EntryListQuery carries the optional filters of the entries listing.
type EntryListQuery struct {
	TermID        string
	DraftVersion  string
	PublishedOnly bool
	DayOfWeek     string
	ClassGroupIDs []string
	TrainerIDs    []string
	DepartmentIDs []string
	RoomID        string
}

// TimetableViewService serves read-only timetable views narrowed to what the
// caller's role may see.
type TimetableViewService struct {
	entries viewEntryReader
	rooms   roomFinder
	logger  *zap.Logger
	now     func() time.Time
}

// NewTimetableViewService constructs the view service.
func NewTimetableViewService(entries viewEntryReader, rooms roomFinder, logger *zap.Logger) *TimetableViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableViewService{entries: entries, rooms: rooms, logger: logger, now: time.Now}
}

// ListEntries returns entries matching q intersected with the caller's scope.
func (s *TimetableViewService) ListEntries(ctx context.Context, claims *models.JWTClaims, q EntryListQuery) ([]models.TimetableEntryDetail, error) {
	requested := models.EntryFilter{
		TermID:        strings.TrimSpace(q.TermID),
		DraftVersion:  strings.TrimSpace(q.DraftVersion),
		PublishedOnly: q.PublishedOnly,
		ClassGroupIDs: q.ClassGroupIDs,
		TrainerIDs:    q.TrainerIDs,
		DepartmentIDs: q.DepartmentIDs,
		RoomID:        strings.TrimSpace(q.RoomID),
	}
	if q.DayOfWeek != "" {
		day, err := models.ParseDayOfWeek(q.DayOfWeek)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		requested.DayOfWeek = day
	}

	entries, err := s.entries.List(ctx, nil, NarrowEntryFilter(requested, EntryScopeFor(claims)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable entries")
	}
	return entries, nil
}

// MySchedule lays out the caller's published entries for every date in
// [from, to]. Empty bounds default to the current Monday-to-Sunday week.
func (s *TimetableViewService) MySchedule(ctx context.Context, claims *models.JWTClaims, termID, from, to string) ([]dto.MyScheduleDay, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var filter models.EntryFilter
	switch claims.Role {
	case models.RoleTrainer:
		filter = models.EntryFilter{PublishedOnly: true, TrainerIDs: []string{claims.UserID}}
	case models.RoleTrainee:
		if len(claims.ClassGroupIDs) == 0 {
			filter = models.DenyAll()
		} else {
			filter = models.EntryFilter{PublishedOnly: true, ClassGroupIDs: claims.ClassGroupIDs}
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "personal schedules are available to trainers and trainees")
	}
	filter.TermID = strings.TrimSpace(termID)

	start, end, err := s.dateRange(from, to)
	if err != nil {
		return nil, err
	}

	entries, err := s.entries.List(ctx, nil, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	byDay := make(map[models.DayOfWeek][]models.TimetableEntryDetail)
	for _, entry := range entries {
		byDay[entry.DayOfWeek] = append(byDay[entry.DayOfWeek], entry)
	}

	var days []dto.MyScheduleDay
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		day := weekdayOf(date)
		dayEntries := byDay[day]
		if dayEntries == nil {
			dayEntries = []models.TimetableEntryDetail{}
		}
		days = append(days, dto.MyScheduleDay{Date: date.Format(dateLayout), DayOfWeek: day, Entries: dayEntries})
	}
	return days, nil
}

// RoomAvailability lists the published bookings of a room on date.
func (s *TimetableViewService) RoomAvailability(ctx context.Context, roomID, date string) (*dto.RoomAvailability, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room id is required")
	}
	day := s.today()
	if date != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
		}
		day = parsed
	}

	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	weekday := weekdayOf(day)
	entries, err := s.entries.List(ctx, nil, models.EntryFilter{PublishedOnly: true, RoomID: roomID, DayOfWeek: weekday})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room bookings")
	}
	bookings := make([]models.RoomBooking, 0, len(entries))
	for _, entry := range entries {
		bookings = append(bookings, models.RoomBooking{
			EntryID:     entry.ID,
			CourseName:  entry.CourseName,
			TrainerName: entry.TrainerName,
			ClassGroup:  entry.ClassGroupName,
			DayOfWeek:   entry.DayOfWeek,
			StartTime:   entry.StartTime,
			EndTime:     entry.EndTime,
		})
	}
	return &dto.RoomAvailability{RoomID: roomID, Date: day.Format(dateLayout), DayOfWeek: weekday, Bookings: bookings}, nil
}

func (s *TimetableViewService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *TimetableViewService) dateRange(from, to string) (time.Time, time.Time, error) {
	today := s.today()
	start := today.AddDate(0, 0, -weekdayOf(today).Index())
	end := start.AddDate(0, 0, 6)

	if from != "" {
		parsed, err := time.Parse(dateLayout, from)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "from must be formatted as YYYY-MM-DD")
		}
		start = parsed
		if to == "" {
			end = start.AddDate(0, 0, 6)
		}
	}
	if to != "" {
		parsed, err := time.Parse(dateLayout, to)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must be formatted as YYYY-MM-DD")
		}
		end = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if end.Sub(start) >= maxScheduleRangeDay*24*time.Hour {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date range must not exceed 31 days")
	}
	return start, end, nil
}

// weekdayOf maps a calendar date onto the Monday-first day enum.
func weekdayOf(t time.Time) models.DayOfWeek {
	return models.Weekdays[(int(t.Weekday())+6)%7]
}
