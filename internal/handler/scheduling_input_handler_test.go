package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/dto"
	internalmiddleware "github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/service"
)

type availabilityRowsStub struct {
	rejected map[string]string
}

func (availabilityRowsStub) ListByTrainer(_ context.Context, trainerID string) ([]models.TrainerAvailability, error) {
	return []models.TrainerAvailability{{ID: "av-1", TrainerID: trainerID, DayOfWeek: models.Monday,
		StartTime: models.NewClockTime(9, 0), EndTime: models.NewClockTime(11, 0)}}, nil
}

func (s availabilityRowsStub) BulkCreate(_ context.Context, windows []*models.TrainerAvailability) []error {
	errs := make([]error, len(windows))
	for i, window := range windows {
		if msg, ok := s.rejected[window.TrainerID]; ok {
			errs[i] = &pq.Error{Code: "23503", Message: msg}
			continue
		}
		window.ID = "av-" + window.TrainerID
	}
	return errs
}

type settingsRowsStub struct{}

func (settingsRowsStub) Get(context.Context, string, *string) (*models.TimetableSettings, error) {
	return nil, sql.ErrNoRows
}

func (settingsRowsStub) Upsert(_ context.Context, settings *models.TimetableSettings) error {
	settings.ID = "settings-1"
	return nil
}

func newInputRouter(claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewSchedulingInputService(availabilityRowsStub{rejected: map[string]string{"tr-gone": "trainer does not exist"}}, settingsRowsStub{}, nil, nil)
	h := NewSchedulingInputHandler(svc)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(internalmiddleware.ContextUserKey, claims)
		}
		c.Next()
	})
	router.GET("/trainer-availability/mine", h.MyAvailability)
	router.POST("/trainer-availability/bulk", h.BulkCreateAvailability)
	router.GET("/timetable-settings", h.Settings)
	router.PUT("/timetable-settings", h.SaveSettings)
	return router
}

func serveInput(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMyAvailabilityRoutes(t *testing.T) {
	w := serveInput(newInputRouter(&models.JWTClaims{UserID: "tr-1", Role: models.RoleTrainer}), http.MethodGet, "/trainer-availability/mine", "")
	require.Equal(t, http.StatusOK, w.Code)
	var windows []models.TrainerAvailability
	assert.Nil(t, decodeEnvelope(t, w, &windows))
	require.Len(t, windows, 1)
	assert.Equal(t, "tr-1", windows[0].TrainerID)

	w = serveInput(newInputRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}), http.MethodGet, "/trainer-availability/mine", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBulkAvailabilityStatusReflectsFailures(t *testing.T) {
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	w := serveInput(newInputRouter(admin), http.MethodPost, "/trainer-availability/bulk",
		`[{"trainer_id":"tr-1","day_of_week":"monday","start_time":"09:00","end_time":"12:00"}]`)
	require.Equal(t, http.StatusCreated, w.Code)
	var clean dto.BulkAvailabilityResult
	assert.Nil(t, decodeEnvelope(t, w, &clean))
	assert.Len(t, clean.Created, 1)
	assert.Empty(t, clean.Errors)

	w = serveInput(newInputRouter(admin), http.MethodPost, "/trainer-availability/bulk",
		`[{"trainer_id":"tr-1","day_of_week":"monday","start_time":"09:00","end_time":"12:00"},
		  {"trainer_id":"tr-gone","day_of_week":"tuesday","start_time":"09:00","end_time":"10:00"},
		  {"trainer_id":"tr-2","day_of_week":"friday","start_time":"15:00","end_time":"14:00"}]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var partial dto.BulkAvailabilityResult
	assert.Nil(t, decodeEnvelope(t, w, &partial))
	require.Len(t, partial.Created, 1)
	require.Len(t, partial.Errors, 2)
	assert.Equal(t, 1, partial.Errors[0].Index)
	assert.Equal(t, "trainer does not exist", partial.Errors[0].Error)
	assert.Equal(t, 2, partial.Errors[1].Index)
	assert.Equal(t, "friday", partial.Errors[1].Item.DayOfWeek)
}

func TestBulkAvailabilityRejectsBadPayloadAndRole(t *testing.T) {
	w := serveInput(newInputRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}), http.MethodPost, "/trainer-availability/bulk", `{"trainer_id":"tr-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serveInput(newInputRouter(&models.JWTClaims{UserID: "s-1", Role: models.RoleTrainee}), http.MethodPost, "/trainer-availability/bulk",
		`[{"trainer_id":"tr-1","day_of_week":"monday","start_time":"09:00","end_time":"12:00"}]`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTimetableSettingsReadAndAdminWrite(t *testing.T) {
	w := serveInput(newInputRouter(&models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD}), http.MethodGet, "/timetable-settings?termId=term-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var defaults models.TimetableSettings
	assert.Nil(t, decodeEnvelope(t, w, &defaults))
	assert.Equal(t, "term-1", defaults.TermID)
	assert.Equal(t, 60, defaults.SlotMinutes)

	body := `{"term_id":"term-1","working_days":["monday","tuesday"],"day_start":"08:00","day_end":"15:00","slot_minutes":45,"breaks":[{"start":"12:00","end":"12:45"}]}`
	w = serveInput(newInputRouter(&models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD}), http.MethodPut, "/timetable-settings", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serveInput(newInputRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}), http.MethodPut, "/timetable-settings", body)
	require.Equal(t, http.StatusOK, w.Code)
	var saved models.TimetableSettings
	assert.Nil(t, decodeEnvelope(t, w, &saved))
	assert.Equal(t, "settings-1", saved.ID)
	assert.Equal(t, 45, saved.SlotMinutes)

	w = serveInput(newInputRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}), http.MethodPut, "/timetable-settings",
		`{"term_id":"term-1","working_days":["monday"],"day_start":"08:00","day_end":"15:00","slot_minutes":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
