package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/dto"
	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type availabilityStoreStub struct {
	windows []models.TrainerAvailability
	listed  string
	stored  []*models.TrainerAvailability
	failFor map[string]error
	listErr error
}

func (s *availabilityStoreStub) ListByTrainer(_ context.Context, trainerID string) ([]models.TrainerAvailability, error) {
	s.listed = trainerID
	return s.windows, s.listErr
}

func (s *availabilityStoreStub) BulkCreate(_ context.Context, windows []*models.TrainerAvailability) []error {
	errs := make([]error, len(windows))
	for i, window := range windows {
		if err, ok := s.failFor[window.TrainerID]; ok {
			errs[i] = err
			continue
		}
		window.ID = "av-" + window.TrainerID
		s.stored = append(s.stored, window)
	}
	return errs
}

type settingsStoreStub struct {
	stored *models.TimetableSettings
	getErr error
	saved  *models.TimetableSettings
}

func (s *settingsStoreStub) Get(context.Context, string, *string) (*models.TimetableSettings, error) {
	return s.stored, s.getErr
}

func (s *settingsStoreStub) Upsert(_ context.Context, settings *models.TimetableSettings) error {
	settings.ID = "settings-1"
	s.saved = settings
	return nil
}

func TestMyAvailabilityIsTrainerOnly(t *testing.T) {
	store := &availabilityStoreStub{windows: []models.TrainerAvailability{{ID: "av-1", TrainerID: "tr-1", DayOfWeek: models.Monday}}}
	svc := NewSchedulingInputService(store, &settingsStoreStub{}, nil, zap.NewNop())

	windows, err := svc.MyAvailability(context.Background(), &models.JWTClaims{UserID: "tr-1", Role: models.RoleTrainer})
	require.NoError(t, err)
	assert.Len(t, windows, 1)
	assert.Equal(t, "tr-1", store.listed)

	_, err = svc.MyAvailability(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)

	_, err = svc.MyAvailability(context.Background(), nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestBulkCreateAvailabilityCollectsPerItemFailures(t *testing.T) {
	store := &availabilityStoreStub{failFor: map[string]error{
		"tr-gone": fmt.Errorf("insert trainer availability: %w", &pq.Error{Code: "23503", Message: "trainer does not exist"}),
	}}
	svc := NewSchedulingInputService(store, &settingsStoreStub{}, nil, zap.NewNop())
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	result, err := svc.BulkCreateAvailability(context.Background(), admin, []dto.AvailabilityWindowRequest{
		{TrainerID: "tr-1", DayOfWeek: "Monday", StartTime: "09:00", EndTime: "12:00"},
		{TrainerID: "tr-1", DayOfWeek: "monday", StartTime: "12:00", EndTime: "09:00"},
		{TrainerID: "tr-gone", DayOfWeek: "tuesday", StartTime: "09:00", EndTime: "10:00"},
		{DayOfWeek: "wednesday", StartTime: "09:00", EndTime: "10:00"},
		{TrainerID: "tr-2", DayOfWeek: "funday", StartTime: "09:00", EndTime: "10:00"},
		{TrainerID: "tr-2", DayOfWeek: "friday", StartTime: "13:00"},
	})
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	assert.Equal(t, "av-tr-1", result.Created[0].ID)
	assert.Equal(t, models.NewClockTime(12, 0), result.Created[0].EndTime)

	require.Len(t, result.Errors, 5)
	indexes := make([]int, 0, len(result.Errors))
	for _, failure := range result.Errors {
		indexes = append(indexes, failure.Index)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, indexes)
	assert.Equal(t, "start_time must be before end_time", result.Errors[0].Error)
	assert.Equal(t, "trainer does not exist", result.Errors[1].Error)
	assert.Equal(t, "tr-gone", result.Errors[1].Item.TrainerID)
	assert.Equal(t, "trainer_id is required", result.Errors[2].Error)
}

func TestBulkCreateAvailabilityForcesTrainerToCaller(t *testing.T) {
	store := &availabilityStoreStub{}
	svc := NewSchedulingInputService(store, &settingsStoreStub{}, nil, zap.NewNop())
	trainer := &models.JWTClaims{UserID: "tr-self", Role: models.RoleTrainer}

	result, err := svc.BulkCreateAvailability(context.Background(), trainer, []dto.AvailabilityWindowRequest{
		{TrainerID: "tr-other", DayOfWeek: "thursday", StartTime: "08:00", EndTime: "10:00"},
	})
	require.NoError(t, err)
	require.Len(t, store.stored, 1)
	assert.Equal(t, "tr-self", store.stored[0].TrainerID)
	assert.Empty(t, result.Errors)
}

func TestBulkCreateAvailabilityRejectsRolesAndEmptyPayload(t *testing.T) {
	svc := NewSchedulingInputService(&availabilityStoreStub{}, &settingsStoreStub{}, nil, zap.NewNop())
	item := []dto.AvailabilityWindowRequest{{TrainerID: "tr-1", DayOfWeek: "monday", StartTime: "09:00", EndTime: "10:00"}}

	var appErr *appErrors.Error
	_, err := svc.BulkCreateAvailability(context.Background(), &models.JWTClaims{UserID: "s-1", Role: models.RoleTrainee}, item)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)

	_, err = svc.BulkCreateAvailability(context.Background(), &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}, nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)
}

func TestSettingsFallsBackToDefaults(t *testing.T) {
	school := "school-1"
	svc := NewSchedulingInputService(&availabilityStoreStub{}, &settingsStoreStub{getErr: sql.ErrNoRows}, nil, zap.NewNop())

	settings, err := svc.Settings(context.Background(), "term-1", &school)
	require.NoError(t, err)
	assert.Empty(t, settings.ID)
	assert.Equal(t, 60, settings.SlotMinutes)
	assert.Equal(t, &school, settings.SchoolID)

	failing := NewSchedulingInputService(&availabilityStoreStub{}, &settingsStoreStub{getErr: errors.New("db down")}, nil, zap.NewNop())
	_, err = failing.Settings(context.Background(), "term-1", nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInternal.Status, appErr.Status)
}

func TestSaveSettingsValidatesAndStores(t *testing.T) {
	store := &settingsStoreStub{}
	svc := NewSchedulingInputService(&availabilityStoreStub{}, store, nil, zap.NewNop())
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	req := dto.TimetableSettingsRequest{
		TermID:      "term-1",
		WorkingDays: []string{"Monday", "wednesday"},
		DayStart:    "07:30",
		DayEnd:      "16:00",
		SlotMinutes: 30,
		Breaks:      []models.TimeWindow{{Start: models.NewClockTime(12, 0), End: models.NewClockTime(12, 30)}},
	}
	settings, err := svc.SaveSettings(context.Background(), admin, req)
	require.NoError(t, err)
	assert.Equal(t, "settings-1", settings.ID)
	assert.Equal(t, []models.DayOfWeek{models.Monday, models.Wednesday}, store.saved.Days())
	assert.JSONEq(t, `[{"start":"12:00","end":"12:30"}]`, string(store.saved.Breaks))

	var appErr *appErrors.Error
	_, err = svc.SaveSettings(context.Background(), &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD}, req)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Status, appErr.Status)

	inverted := req
	inverted.DayStart, inverted.DayEnd = "16:00", "07:30"
	_, err = svc.SaveSettings(context.Background(), admin, inverted)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)

	noSlots := req
	noSlots.SlotMinutes = 0
	_, err = svc.SaveSettings(context.Background(), admin, noSlots)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status)
}
