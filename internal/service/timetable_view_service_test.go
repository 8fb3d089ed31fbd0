package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type viewEntriesStub struct {
	entries []models.TimetableEntryDetail
	filters []models.EntryFilter
}

func (s *viewEntriesStub) List(_ context.Context, _ sqlx.ExtContext, filter models.EntryFilter) ([]models.TimetableEntryDetail, error) {
	s.filters = append(s.filters, filter)
	if filter.MatchesNothing() {
		return []models.TimetableEntryDetail{}, nil
	}
	return s.entries, nil
}

type roomFinderStub struct {
	rooms map[string]*models.Room
}

func (s *roomFinderStub) FindByID(_ context.Context, id string) (*models.Room, error) {
	if room, ok := s.rooms[id]; ok {
		return room, nil
	}
	return nil, sql.ErrNoRows
}

func viewEntry(id string, day models.DayOfWeek, start, end string) models.TimetableEntryDetail {
	entry := models.TimetableEntryDetail{CourseName: "Welding", TrainerName: "Ana", ClassGroupName: "G1"}
	entry.ID = id
	entry.DayOfWeek = day
	entry.StartTime = models.MustParseClockTime(start)
	entry.EndTime = models.MustParseClockTime(end)
	return entry
}

func newViewFixture(entries ...models.TimetableEntryDetail) (*TimetableViewService, *viewEntriesStub) {
	stub := &viewEntriesStub{entries: entries}
	svc := NewTimetableViewService(stub, &roomFinderStub{rooms: map[string]*models.Room{"room-1": {ID: "room-1"}}}, zap.NewNop())
	// Wednesday
	svc.now = func() time.Time { return time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC) }
	return svc, stub
}

func TestListEntriesNarrowsToScope(t *testing.T) {
	svc, stub := newViewFixture()
	claims := &models.JWTClaims{UserID: "t-1", Role: models.RoleTrainer}

	_, err := svc.ListEntries(context.Background(), claims, EntryListQuery{TermID: "term-1", DayOfWeek: "Monday"})
	require.NoError(t, err)
	require.Len(t, stub.filters, 1)
	assert.Equal(t, []string{"t-1"}, stub.filters[0].TrainerIDs)
	assert.True(t, stub.filters[0].PublishedOnly)
	assert.Equal(t, models.Monday, stub.filters[0].DayOfWeek)

	_, err = svc.ListEntries(context.Background(), claims, EntryListQuery{TrainerIDs: []string{"t-2"}})
	require.NoError(t, err)
	assert.True(t, stub.filters[1].MatchesNothing())

	_, err = svc.ListEntries(context.Background(), claims, EntryListQuery{DayOfWeek: "someday"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestMyScheduleDefaultsToCurrentWeek(t *testing.T) {
	svc, _ := newViewFixture(viewEntry("e-1", models.Monday, "09:00", "10:00"), viewEntry("e-2", models.Wednesday, "11:00", "12:00"))
	days, err := svc.MySchedule(context.Background(), &models.JWTClaims{UserID: "t-1", Role: models.RoleTrainer}, "", "", "")
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, "2026-03-09", days[0].Date)
	assert.Equal(t, models.Monday, days[0].DayOfWeek)
	require.Len(t, days[0].Entries, 1)
	assert.Equal(t, "e-1", days[0].Entries[0].ID)
	assert.Empty(t, days[1].Entries)
	require.Len(t, days[2].Entries, 1)
	assert.Equal(t, "2026-03-15", days[6].Date)
}

func TestMyScheduleValidation(t *testing.T) {
	svc, _ := newViewFixture()
	trainee := &models.JWTClaims{UserID: "s-1", Role: models.RoleTrainee, ClassGroupIDs: []string{"g-1"}}

	_, err := svc.MySchedule(context.Background(), trainee, "", "2026-03-10", "2026-03-01")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.MySchedule(context.Background(), trainee, "", "2026-01-01", "2026-03-01")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.MySchedule(context.Background(), trainee, "", "03/10/2026", "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.MySchedule(context.Background(), &models.JWTClaims{UserID: "a-1", Role: models.RoleAdmin}, "", "", "")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	days, err := svc.MySchedule(context.Background(), trainee, "", "2026-03-02", "2026-03-03")
	require.NoError(t, err)
	assert.Len(t, days, 2)
}

func TestRoomAvailability(t *testing.T) {
	svc, stub := newViewFixture(viewEntry("e-1", models.Tuesday, "09:00", "10:00"))

	result, err := svc.RoomAvailability(context.Background(), "room-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, models.Tuesday, result.DayOfWeek)
	require.Len(t, result.Bookings, 1)
	assert.Equal(t, "e-1", result.Bookings[0].EntryID)
	assert.Equal(t, "room-1", stub.filters[0].RoomID)
	assert.True(t, stub.filters[0].PublishedOnly)

	_, err = svc.RoomAvailability(context.Background(), "room-9", "")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.RoomAvailability(context.Background(), "room-1", "tomorrow")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
