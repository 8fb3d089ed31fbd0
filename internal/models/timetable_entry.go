package models

import (
	"time"

	"github.com/lib/pq"
)

// TimetableEntry is the placement of one course enrollment session.
type TimetableEntry struct {
	ID                 string    `db:"id" json:"id"`
	CourseEnrollmentID string    `db:"course_enrollment_id" json:"course_enrollment_id"`
	DayOfWeek          DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime          ClockTime `db:"start_time" json:"start_time"`
	EndTime            ClockTime `db:"end_time" json:"end_time"`
	RoomID             string    `db:"room_id" json:"room_id"`
	IsDraft            bool      `db:"is_draft" json:"is_draft"`
	DraftVersion       string    `db:"draft_version" json:"draft_version"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableEntryDetail is an entry joined with the names needed for display.
type TimetableEntryDetail struct {
	TimetableEntry
	TermID         string  `db:"term_id" json:"term_id"`
	CourseID       string  `db:"course_id" json:"course_id"`
	CourseCode     string  `db:"course_code" json:"course_code"`
	CourseName     string  `db:"course_name" json:"course_name"`
	TrainerID      string  `db:"trainer_id" json:"trainer_id"`
	TrainerName    string  `db:"trainer_name" json:"trainer_name"`
	ClassGroupID   string  `db:"class_group_id" json:"class_group_id"`
	ClassGroupName string  `db:"class_group_name" json:"class_group_name"`
	RoomName       string  `db:"room_name" json:"room_name"`
	DepartmentID   *string `db:"department_id" json:"department_id,omitempty"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
}

// EntryFilter narrows entry listings. Empty fields are ignored.
type EntryFilter struct {
	TermID         string
	DraftVersion   string
	PublishedOnly  bool
	DayOfWeek      DayOfWeek
	ClassGroupIDs  []string
	TrainerIDs     []string
	DepartmentIDs  []string
	RoomID         string
	restrictToNone bool
}

// DenyAll returns a filter that matches nothing.
func DenyAll() EntryFilter {
	return EntryFilter{restrictToNone: true}
}

// MatchesNothing reports whether the filter was built with DenyAll.
func (f EntryFilter) MatchesNothing() bool {
	return f.restrictToNone
}

// ConflictQuery identifies the axes a candidate placement occupies.
// Empty axis ids are skipped.
type ConflictQuery struct {
	DayOfWeek      DayOfWeek
	StartTime      ClockTime
	EndTime        ClockTime
	RoomID         string
	TrainerID      string
	ClassGroupID   string
	ExcludeEntryID string
}

// VersionStatusCounts aggregates entry counts for a draft version.
type VersionStatusCounts struct {
	Total     int `db:"total"`
	Draft     int `db:"draft"`
	Published int `db:"published"`
}

// DraftVersionInfo summarises one draft version.
type DraftVersionInfo struct {
	DraftVersion     string         `db:"draft_version" json:"draft_version"`
	TotalEntries     int            `db:"total_entries" json:"total_entries"`
	DraftEntries     int            `db:"draft_entries" json:"draft_entries"`
	PublishedEntries int            `db:"published_entries" json:"published_entries"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	Departments      pq.StringArray `db:"departments" json:"departments"`
}

// GroupCount is a labelled count used by draft summaries.
type GroupCount struct {
	Key   string `db:"key" json:"key"`
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}
