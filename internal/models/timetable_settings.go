package models

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

const (
	defaultSlotMinutes = 60
)

// TimetableSettings controls generation for one term and school.
type TimetableSettings struct {
	ID                string         `db:"id" json:"id"`
	TermID            string         `db:"term_id" json:"term_id"`
	SchoolID          *string        `db:"school_id" json:"school_id,omitempty"`
	WorkingDays       pq.StringArray `db:"working_days" json:"working_days"`
	DayStart          ClockTime      `db:"day_start" json:"day_start"`
	DayEnd            ClockTime      `db:"day_end" json:"day_end"`
	SlotMinutes       int            `db:"slot_minutes" json:"slot_minutes"`
	Breaks            types.JSONText `db:"breaks" json:"breaks"`
	MaxSessionsPerDay int            `db:"max_sessions_per_day" json:"max_sessions_per_day"`
}

// DefaultTimetableSettings is used when a term has no stored settings:
// Monday to Friday, 08:00 to 17:00, hourly slots.
func DefaultTimetableSettings(termID string) TimetableSettings {
	return TimetableSettings{
		TermID:      termID,
		WorkingDays: pq.StringArray{string(Monday), string(Tuesday), string(Wednesday), string(Thursday), string(Friday)},
		DayStart:    NewClockTime(8, 0),
		DayEnd:      NewClockTime(17, 0),
		SlotMinutes: defaultSlotMinutes,
		Breaks:      types.JSONText(`[]`),
	}
}

// Days returns the configured working days in calendar order, ignoring
// unknown values and duplicates.
func (s TimetableSettings) Days() []DayOfWeek {
	seen := make(map[DayOfWeek]struct{}, len(s.WorkingDays))
	for _, raw := range s.WorkingDays {
		day, err := ParseDayOfWeek(raw)
		if err != nil {
			continue
		}
		seen[day] = struct{}{}
	}
	days := make([]DayOfWeek, 0, len(seen))
	for _, day := range Weekdays {
		if _, ok := seen[day]; ok {
			days = append(days, day)
		}
	}
	return days
}

// BreakWindows decodes the breaks payload, e.g. [{"start":"12:00","end":"13:00"}].
func (s TimetableSettings) BreakWindows() ([]TimeWindow, error) {
	if len(s.Breaks) == 0 {
		return nil, nil
	}
	var windows []TimeWindow
	if err := json.Unmarshal(s.Breaks, &windows); err != nil {
		return nil, fmt.Errorf("decode timetable breaks: %w", err)
	}
	return MergeWindows(windows), nil
}

// Validate checks the settings can drive slot enumeration.
func (s TimetableSettings) Validate() error {
	if s.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive")
	}
	if s.DayStart >= s.DayEnd {
		return fmt.Errorf("day_start must be before day_end")
	}
	if len(s.Days()) == 0 {
		return fmt.Errorf("at least one working day is required")
	}
	if _, err := s.BreakWindows(); err != nil {
		return err
	}
	return nil
}
