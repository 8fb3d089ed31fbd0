package dto

import "github.com/noah-isme/timetable-engine/internal/models"

// AvailabilityWindowRequest declares one weekly window. Trainers may omit
// TrainerID; it is forced to the caller.
type AvailabilityWindowRequest struct {
	TrainerID string `json:"trainer_id"`
	DayOfWeek string `json:"day_of_week" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// AvailabilityFailure is one rejected item with its position in the request.
type AvailabilityFailure struct {
	Index int                       `json:"index"`
	Item  AvailabilityWindowRequest `json:"data"`
	Error string                    `json:"error"`
}

// BulkAvailabilityResult lists stored windows and rejected items.
type BulkAvailabilityResult struct {
	Created []models.TrainerAvailability `json:"created"`
	Errors  []AvailabilityFailure        `json:"errors"`
}

// TimetableSettingsRequest replaces the settings of one term and school.
type TimetableSettingsRequest struct {
	TermID            string              `json:"term_id" validate:"required"`
	SchoolID          *string             `json:"school_id"`
	WorkingDays       []string            `json:"working_days" validate:"required,min=1"`
	DayStart          string              `json:"day_start" validate:"required"`
	DayEnd            string              `json:"day_end" validate:"required"`
	SlotMinutes       int                 `json:"slot_minutes" validate:"gt=0,lte=240"`
	Breaks            []models.TimeWindow `json:"breaks"`
	MaxSessionsPerDay int                 `json:"max_sessions_per_day" validate:"gte=0"`
}
