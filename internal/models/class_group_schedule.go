package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ClassGroupSchedule is the materialised weekly view of a class group's
// published entries for a term. It is rebuilt wholesale, never patched.
type ClassGroupSchedule struct {
	ID           string         `db:"id" json:"id"`
	ClassGroupID string         `db:"class_group_id" json:"class_group_id"`
	TermID       string         `db:"term_id" json:"term_id"`
	Schedule     types.JSONText `db:"schedule" json:"schedule"`
	EntryCount   int            `db:"entry_count" json:"entry_count"`
	LastUpdated  time.Time      `db:"last_updated" json:"last_updated"`
}

// ScheduleSlot is one row of the materialised schedule payload.
type ScheduleSlot struct {
	EntryID      string    `json:"entry_id"`
	DayOfWeek    DayOfWeek `json:"day_of_week"`
	StartTime    ClockTime `json:"start_time"`
	EndTime      ClockTime `json:"end_time"`
	CourseCode   string    `json:"course_code"`
	CourseName   string    `json:"course_name"`
	TrainerName  string    `json:"trainer_name"`
	RoomName     string    `json:"room_name"`
	DraftVersion string    `json:"draft_version"`
}

// ClassGroupTerm identifies one materialised schedule.
type ClassGroupTerm struct {
	ClassGroupID string `db:"class_group_id"`
	TermID       string `db:"term_id"`
}
