package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
	"github.com/noah-isme/timetable-engine/pkg/export"
)

// ScheduleFormat selects an export renderer.
type ScheduleFormat string

const (
	ScheduleFormatCSV ScheduleFormat = "csv"
	ScheduleFormatPDF ScheduleFormat = "pdf"
)

type scheduleEntryReader interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.EntryFilter) ([]models.TimetableEntryDetail, error)
}

type scheduleEnrollmentReader interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.CourseEnrollment, error)
}

type scheduleStore interface {
	Replace(ctx context.Context, exec sqlx.ExtContext, schedule *models.ClassGroupSchedule) error
	Get(ctx context.Context, classGroupID, termID string) (*models.ClassGroupSchedule, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(grid export.Grid) ([]byte, error)
}

// ScheduleExport is a rendered schedule ready to stream.
type ScheduleExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ClassGroupScheduleService maintains the materialised per class group view
// of published entries.
type ClassGroupScheduleService struct {
	entries     scheduleEntryReader
	enrollments scheduleEnrollmentReader
	schedules   scheduleStore
	cache       *CacheService
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewClassGroupScheduleService constructs the service. enrollments resolves
// which class groups trainers and HODs may read.
func NewClassGroupScheduleService(entries scheduleEntryReader, enrollments scheduleEnrollmentReader, schedules scheduleStore, cache *CacheService, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ClassGroupScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ClassGroupScheduleService{
		entries:     entries,
		enrollments: enrollments,
		schedules:   schedules,
		cache:       cache,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
	}
}

// Rebuild recomputes each schedule from published entries using exec, so
// callers can run it inside the transaction that changed publication state.
func (s *ClassGroupScheduleService) Rebuild(ctx context.Context, exec sqlx.ExtContext, targets []models.ClassGroupTerm) (int, error) {
	rebuilt := 0
	for _, target := range dedupeTargets(targets) {
		entries, err := s.entries.List(ctx, exec, models.EntryFilter{
			TermID:        target.TermID,
			ClassGroupIDs: []string{target.ClassGroupID},
			PublishedOnly: true,
		})
		if err != nil {
			return rebuilt, fmt.Errorf("load published entries for %s: %w", target.ClassGroupID, err)
		}
		payload, err := json.Marshal(scheduleSlots(entries))
		if err != nil {
			return rebuilt, fmt.Errorf("encode schedule for %s: %w", target.ClassGroupID, err)
		}
		schedule := &models.ClassGroupSchedule{
			ClassGroupID: target.ClassGroupID,
			TermID:       target.TermID,
			Schedule:     types.JSONText(payload),
			EntryCount:   len(entries),
		}
		if err := s.schedules.Replace(ctx, exec, schedule); err != nil {
			return rebuilt, err
		}
		rebuilt++
	}
	return rebuilt, nil
}

// Invalidate drops cached copies of rebuilt schedules. It runs after commit.
func (s *ClassGroupScheduleService) Invalidate(ctx context.Context, targets []models.ClassGroupTerm) {
	for _, target := range dedupeTargets(targets) {
		_ = s.cache.Invalidate(ctx, scheduleCacheKey(target.ClassGroupID, target.TermID))
	}
}

// Authorize checks that claims may read the class group's schedule.
// Trainees read their own groups, trainers the groups they teach in the
// term and HODs the groups of their departments.
func (s *ClassGroupScheduleService) Authorize(ctx context.Context, claims *models.JWTClaims, classGroupID, termID string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	forbidden := appErrors.Clone(appErrors.ErrForbidden, "class group schedule is outside your scope")

	scope := EntryScopeFor(claims)
	if scope.MatchesNothing() {
		return forbidden
	}
	if len(scope.ClassGroupIDs) > 0 && !slices.Contains(scope.ClassGroupIDs, classGroupID) {
		return forbidden
	}
	if len(scope.TrainerIDs) == 0 && len(scope.DepartmentIDs) == 0 {
		return nil
	}
	if s.enrollments == nil {
		return forbidden
	}

	filter := models.EnrollmentFilter{
		TermID:        termID,
		ClassGroupIDs: []string{classGroupID},
		DepartmentIDs: scope.DepartmentIDs,
	}
	if len(scope.TrainerIDs) > 0 {
		filter.TrainerID = scope.TrainerIDs[0]
	}
	enrollments, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve class group access")
	}
	if len(enrollments) == 0 {
		return forbidden
	}
	return nil
}

// Get returns the materialised schedule if claims may read it.
func (s *ClassGroupScheduleService) Get(ctx context.Context, claims *models.JWTClaims, classGroupID, termID string) (*models.ClassGroupSchedule, error) {
	if strings.TrimSpace(classGroupID) == "" || strings.TrimSpace(termID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_group_id and term_id are required")
	}
	if err := s.Authorize(ctx, claims, classGroupID, termID); err != nil {
		return nil, err
	}

	key := scheduleCacheKey(classGroupID, termID)
	var cached models.ClassGroupSchedule
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	schedule, err := s.schedules.Get(ctx, classGroupID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class group schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class group schedule")
	}
	_ = s.cache.Set(ctx, key, schedule, 0)
	return schedule, nil
}

// Export renders the schedule as CSV rows or a PDF weekly grid.
func (s *ClassGroupScheduleService) Export(ctx context.Context, claims *models.JWTClaims, classGroupID, termID string, format ScheduleFormat) (*ScheduleExport, error) {
	schedule, err := s.Get(ctx, claims, classGroupID, termID)
	if err != nil {
		return nil, err
	}
	var slots []models.ScheduleSlot
	if len(schedule.Schedule) > 0 {
		if err := json.Unmarshal(schedule.Schedule, &slots); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule is unreadable")
		}
	}
	base := fmt.Sprintf("schedule-%s-%s", classGroupID, termID)

	switch format {
	case ScheduleFormatCSV, "":
		body, err := s.csv.Render(scheduleDataset(slots))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ScheduleExport{Filename: base + ".csv", ContentType: "text/csv", Body: body}, nil
	case ScheduleFormatPDF:
		grid := scheduleGrid(slots)
		grid.Title = "Class group timetable"
		grid.Subtitle = fmt.Sprintf("Class group %s, term %s", classGroupID, termID)
		body, err := s.pdf.Render(grid)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ScheduleExport{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func dedupeTargets(targets []models.ClassGroupTerm) []models.ClassGroupTerm {
	seen := make(map[models.ClassGroupTerm]struct{}, len(targets))
	out := make([]models.ClassGroupTerm, 0, len(targets))
	for _, t := range targets {
		if t.ClassGroupID == "" || t.TermID == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TermID != out[j].TermID {
			return out[i].TermID < out[j].TermID
		}
		return out[i].ClassGroupID < out[j].ClassGroupID
	})
	return out
}

func scheduleSlots(entries []models.TimetableEntryDetail) []models.ScheduleSlot {
	slots := make([]models.ScheduleSlot, 0, len(entries))
	for _, e := range entries {
		slots = append(slots, models.ScheduleSlot{
			EntryID:      e.ID,
			DayOfWeek:    e.DayOfWeek,
			StartTime:    e.StartTime,
			EndTime:      e.EndTime,
			CourseCode:   e.CourseCode,
			CourseName:   e.CourseName,
			TrainerName:  e.TrainerName,
			RoomName:     e.RoomName,
			DraftVersion: e.DraftVersion,
		})
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].DayOfWeek.Index() != slots[j].DayOfWeek.Index() {
			return slots[i].DayOfWeek.Index() < slots[j].DayOfWeek.Index()
		}
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots
}

func scheduleDataset(slots []models.ScheduleSlot) export.Dataset {
	rows := make([][]string, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, []string{
			slot.DayOfWeek.Title(),
			slot.StartTime.String(),
			slot.EndTime.String(),
			slot.CourseCode,
			slot.CourseName,
			slot.TrainerName,
			slot.RoomName,
		})
	}
	return export.Dataset{
		Headers: []string{"day", "start", "end", "course_code", "course_name", "trainer", "room"},
		Rows:    rows,
	}
}

func scheduleGrid(slots []models.ScheduleSlot) export.Grid {
	grid := export.Grid{Cells: map[string]map[string]string{}}
	days := map[models.DayOfWeek]struct{}{}
	rows := map[string]models.ClockTime{}
	for _, slot := range slots {
		days[slot.DayOfWeek] = struct{}{}
		row := slot.StartTime.String() + "-" + slot.EndTime.String()
		rows[row] = slot.StartTime
		col := slot.DayOfWeek.Title()
		if grid.Cells[row] == nil {
			grid.Cells[row] = map[string]string{}
		}
		text := fmt.Sprintf("%s\n%s\n%s", slot.CourseCode, slot.TrainerName, slot.RoomName)
		if existing := grid.Cells[row][col]; existing != "" {
			text = existing + "\n" + text
		}
		grid.Cells[row][col] = text
	}
	for _, day := range models.Weekdays {
		if _, ok := days[day]; ok {
			grid.Columns = append(grid.Columns, day.Title())
		}
	}
	if len(grid.Columns) == 0 {
		for _, day := range models.Weekdays[:5] {
			grid.Columns = append(grid.Columns, day.Title())
		}
	}
	for row := range rows {
		grid.Rows = append(grid.Rows, row)
	}
	sort.Slice(grid.Rows, func(i, j int) bool {
		if rows[grid.Rows[i]] != rows[grid.Rows[j]] {
			return rows[grid.Rows[i]] < rows[grid.Rows[j]]
		}
		return grid.Rows[i] < grid.Rows[j]
	})
	return grid
}
