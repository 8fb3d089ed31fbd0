package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalmiddleware "github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

type schedulesMock struct {
	rebuilt     []models.ClassGroupTerm
	invalidated []models.ClassGroupTerm
	format      service.ScheduleFormat
}

func (m *schedulesMock) Authorize(_ context.Context, _ *models.JWTClaims, _, _ string) error {
	return nil
}

func (m *schedulesMock) Get(_ context.Context, _ *models.JWTClaims, classGroupID, termID string) (*models.ClassGroupSchedule, error) {
	if classGroupID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class group schedule not found")
	}
	return &models.ClassGroupSchedule{ClassGroupID: classGroupID, TermID: termID, EntryCount: 2}, nil
}

func (m *schedulesMock) Rebuild(_ context.Context, _ sqlx.ExtContext, targets []models.ClassGroupTerm) (int, error) {
	m.rebuilt = append(m.rebuilt, targets...)
	return len(targets), nil
}

func (m *schedulesMock) Invalidate(_ context.Context, targets []models.ClassGroupTerm) {
	m.invalidated = append(m.invalidated, targets...)
}

func (m *schedulesMock) Export(_ context.Context, _ *models.JWTClaims, classGroupID, termID string, format service.ScheduleFormat) (*service.ScheduleExport, error) {
	m.format = format
	return &service.ScheduleExport{Filename: "schedule-" + classGroupID + "-" + termID + ".csv", ContentType: "text/csv", Body: []byte("day,start\n")}, nil
}

func newScheduleRouter(h *ClassGroupScheduleHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/class-group-schedules/:classGroupId", h.Get)
	router.POST("/class-group-schedules/:classGroupId/regenerate", h.Regenerate)
	router.GET("/class-group-schedules/:classGroupId/export", h.Export)
	return router
}

func TestClassGroupScheduleGet(t *testing.T) {
	router := newScheduleRouter(&ClassGroupScheduleHandler{service: &schedulesMock{}})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/class-group-schedules/g-1?termId=term-1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"entry_count":2`)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/class-group-schedules/missing?termId=term-1", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClassGroupScheduleRegenerate(t *testing.T) {
	mock := &schedulesMock{}
	router := newScheduleRouter(&ClassGroupScheduleHandler{service: mock})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/class-group-schedules/g-1/regenerate?termId=term-1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	want := []models.ClassGroupTerm{{ClassGroupID: "g-1", TermID: "term-1"}}
	assert.Equal(t, want, mock.rebuilt)
	assert.Equal(t, want, mock.invalidated)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/class-group-schedules/g-1/regenerate", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassGroupScheduleExport(t *testing.T) {
	mock := &schedulesMock{}
	router := newScheduleRouter(&ClassGroupScheduleHandler{service: mock, exports: true})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/class-group-schedules/g-1/export?termId=term-1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ScheduleFormatCSV, mock.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "schedule-g-1-term-1.csv")

	disabled := newScheduleRouter(&ClassGroupScheduleHandler{service: mock})
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/class-group-schedules/g-1/export?termId=term-1&format=pdf", nil)
	disabled.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type scheduleRowsStub struct{}

func (scheduleRowsStub) List(_ context.Context, _ sqlx.ExtContext, _ models.EntryFilter) ([]models.TimetableEntryDetail, error) {
	return nil, nil
}

type scheduleStoreStub struct{}

func (scheduleStoreStub) Replace(_ context.Context, _ sqlx.ExtContext, _ *models.ClassGroupSchedule) error {
	return nil
}

func (scheduleStoreStub) Get(_ context.Context, classGroupID, termID string) (*models.ClassGroupSchedule, error) {
	if classGroupID == "" {
		return nil, sql.ErrNoRows
	}
	return &models.ClassGroupSchedule{ClassGroupID: classGroupID, TermID: termID, Schedule: []byte(`[]`)}, nil
}

type groupEnrollmentsStub struct {
	trainerGroups map[string][]string
}

func (s groupEnrollmentsStub) List(_ context.Context, filter models.EnrollmentFilter) ([]models.CourseEnrollment, error) {
	var out []models.CourseEnrollment
	for _, group := range s.trainerGroups[filter.TrainerID] {
		for _, wanted := range filter.ClassGroupIDs {
			if group == wanted {
				out = append(out, models.CourseEnrollment{ClassGroupID: group, TrainerID: filter.TrainerID})
			}
		}
	}
	return out, nil
}

func TestClassGroupScheduleReadsAreRoleScoped(t *testing.T) {
	svc := service.NewClassGroupScheduleService(scheduleRowsStub{}, groupEnrollmentsStub{
		trainerGroups: map[string][]string{"trainer-1": {"group-b"}},
	}, scheduleStoreStub{}, nil, nil, nil, nil)
	h := NewClassGroupScheduleHandler(svc, true)

	cases := []struct {
		name   string
		claims *models.JWTClaims
		path   string
		want   int
	}{
		{"trainee own group", &models.JWTClaims{UserID: "s-1", Role: models.RoleTrainee, ClassGroupIDs: []string{"group-a"}}, "/class-group-schedules/group-a?termId=t1", http.StatusOK},
		{"trainee other group", &models.JWTClaims{UserID: "s-1", Role: models.RoleTrainee, ClassGroupIDs: []string{"group-a"}}, "/class-group-schedules/group-z?termId=t1", http.StatusForbidden},
		{"trainee other group export", &models.JWTClaims{UserID: "s-1", Role: models.RoleTrainee, ClassGroupIDs: []string{"group-a"}}, "/class-group-schedules/group-z/export?termId=t1", http.StatusForbidden},
		{"trainer taught group", &models.JWTClaims{UserID: "trainer-1", Role: models.RoleTrainer}, "/class-group-schedules/group-b?termId=t1", http.StatusOK},
		{"trainer untaught group", &models.JWTClaims{UserID: "trainer-1", Role: models.RoleTrainer}, "/class-group-schedules/group-z/export?termId=t1", http.StatusForbidden},
		{"admin any group", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}, "/class-group-schedules/group-z/export?termId=t1", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.Use(func(c *gin.Context) {
				c.Set(internalmiddleware.ContextUserKey, tc.claims)
				c.Next()
			})
			router.GET("/class-group-schedules/:classGroupId", h.Get)
			router.GET("/class-group-schedules/:classGroupId/export", h.Export)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, tc.path, nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
