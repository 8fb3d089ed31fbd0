package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// ConflictCheckRequest describes a candidate placement to test. Trainer and
// class group may be derived from CourseEnrollmentID when omitted.
type ConflictCheckRequest struct {
	DayOfWeek          string `json:"day_of_week" validate:"required"`
	StartTime          string `json:"start_time" validate:"required"`
	EndTime            string `json:"end_time" validate:"required"`
	RoomID             string `json:"room_id"`
	TrainerID          string `json:"trainer_id"`
	ClassGroupID       string `json:"class_group_id"`
	CourseEnrollmentID string `json:"course_enrollment_id"`
	ExcludeEntryID     string `json:"exclude_entry_id"`
}

// ConflictDetail is a conflicting published entry with display names.
type ConflictDetail struct {
	EntryID        string           `json:"entry_id"`
	CourseCode     string           `json:"course_code"`
	CourseName     string           `json:"course_name"`
	RoomID         string           `json:"room_id"`
	RoomName       string           `json:"room_name"`
	TrainerID      string           `json:"trainer_id"`
	TrainerName    string           `json:"trainer_name"`
	ClassGroupID   string           `json:"class_group_id"`
	ClassGroupName string           `json:"class_group_name"`
	DayOfWeek      models.DayOfWeek `json:"day_of_week"`
	StartTime      models.ClockTime `json:"start_time"`
	EndTime        models.ClockTime `json:"end_time"`
	DraftVersion   string           `json:"draft_version"`
}

// ConflictReport partitions conflicts per axis. An entry may appear in more
// than one bucket.
type ConflictReport struct {
	HasConflicts        bool             `json:"has_conflicts"`
	RoomConflicts       []ConflictDetail `json:"room_conflicts"`
	TrainerConflicts    []ConflictDetail `json:"trainer_conflicts"`
	ClassGroupConflicts []ConflictDetail `json:"class_group_conflicts"`
}

// ValidateEntryResponse answers whether a candidate entry may be saved.
type ValidateEntryResponse struct {
	Valid     bool            `json:"valid"`
	Message   string          `json:"message"`
	Conflicts *ConflictReport `json:"conflicts,omitempty"`
}

// GenerateTimetableRequest scopes a generation run.
type GenerateTimetableRequest struct {
	TermID        string   `json:"term_id"`
	ClassGroupIDs []string `json:"class_group_ids" validate:"omitempty,dive,required"`
	DepartmentIDs []string `json:"department_ids" validate:"omitempty,dive,required"`
	SchoolID      *string  `json:"school_id" validate:"omitempty,min=1"`
	DryRun        bool     `json:"dry_run"`
}

// UnplacedSession reports a session the generator could not place.
type UnplacedSession struct {
	CourseEnrollmentID string `json:"course_enrollment_id"`
	SessionIndex       int    `json:"session_index"`
	CourseName         string `json:"course_name"`
	ClassGroupName     string `json:"class_group_name"`
	TrainerName        string `json:"trainer_name"`
	Reason             string `json:"reason"`
	// BlockedBy lists published entries occupying the session's candidate slots.
	BlockedBy []string `json:"blocked_by,omitempty"`
}

// PlannedSession is one in-memory placement before persistence.
type PlannedSession struct {
	CourseEnrollmentID string           `json:"course_enrollment_id"`
	SessionIndex       int              `json:"session_index"`
	DayOfWeek          models.DayOfWeek `json:"day_of_week"`
	StartTime          models.ClockTime `json:"start_time"`
	EndTime            models.ClockTime `json:"end_time"`
	RoomID             string           `json:"room_id"`
}

// GenerationReport summarises a generation run. It is valid at any state.
type GenerationReport struct {
	State               string            `json:"state"`
	Success             bool              `json:"success"`
	TermID              string            `json:"term_id"`
	TotalEntries        int               `json:"total_entries"`
	PlacedEntries       int               `json:"placed_entries"`
	UnplacedEntries     int               `json:"unplaced_entries"`
	Unplaced            []UnplacedSession `json:"unplaced"`
	Placements          []PlannedSession  `json:"placements,omitempty"`
	Backtracks          int               `json:"backtracks"`
	CandidatesEvaluated int               `json:"candidates_evaluated"`
	StartedAt           *time.Time        `json:"started_at,omitempty"`
	FinishedAt          *time.Time        `json:"finished_at,omitempty"`
	DurationMs          int64             `json:"duration_ms"`
}

// EntryFailure records one placement that could not be persisted.
type EntryFailure struct {
	CourseEnrollmentID string `json:"course_enrollment_id"`
	SessionIndex       int    `json:"session_index"`
	Error              string `json:"error"`
}

// GenerateTimetableResponse combines the report with persistence results.
type GenerateTimetableResponse struct {
	Report        GenerationReport `json:"report"`
	DraftVersion  string           `json:"draft_version,omitempty"`
	CreatedCount  int              `json:"created_count"`
	FailedEntries []EntryFailure   `json:"failed_entries"`
}

// DraftVersionRequest targets one draft version.
type DraftVersionRequest struct {
	DraftVersion string `json:"draft_version" validate:"required"`
}

// VersionStatus aggregates the entry counts of a draft version.
type VersionStatus struct {
	DraftVersion     string  `json:"draft_version"`
	TotalEntries     int     `json:"total_entries"`
	DraftEntries     int     `json:"draft_entries"`
	PublishedEntries int     `json:"published_entries"`
	IsActive         bool    `json:"is_active"`
	ActiveVersion    *string `json:"active_version"`
}

// PublishResult reports a publish transition.
type PublishResult struct {
	DraftVersion             string   `json:"draft_version"`
	PublishedCount           int      `json:"published_count"`
	PreviouslyActiveCount    int      `json:"previously_active_count"`
	PreviouslyActiveVersions []string `json:"previously_active_versions"`
	IsActive                 bool     `json:"is_active"`
	RebuiltSchedules         int      `json:"rebuilt_schedules"`
	Message                  string   `json:"message,omitempty"`
}

// DiscardResult reports a discard of draft rows.
type DiscardResult struct {
	DraftVersion              string        `json:"draft_version"`
	DiscardedCount            int           `json:"discarded_count"`
	PublishedEntriesRemaining int           `json:"published_entries_remaining"`
	IsActive                  bool          `json:"is_active"`
	PostStatus                VersionStatus `json:"post_status"`
	Message                   string        `json:"message,omitempty"`
}

// RevertResult reports published rows flipped back to draft.
type RevertResult struct {
	DraftVersion     string `json:"draft_version"`
	UpdatedCount     int    `json:"updated_count"`
	RebuiltSchedules int    `json:"rebuilt_schedules"`
	Message          string `json:"message,omitempty"`
}

// DraftSummary breaks a version down for review before publishing.
type DraftSummary struct {
	DraftVersion string              `json:"draft_version"`
	TotalEntries int                 `json:"total_entries"`
	ByDepartment []models.GroupCount `json:"by_department"`
	ByClassGroup []models.GroupCount `json:"by_class_group"`
	ByDay        []models.GroupCount `json:"by_day"`
	ByTrainer    []models.GroupCount `json:"by_trainer"`
	ByRoom       []models.GroupCount `json:"by_room"`
}

// TaskSubmission is returned when generation is queued.
type TaskSubmission struct {
	TaskID string           `json:"task_id"`
	State  models.TaskState `json:"state"`
}

// TaskProgress is a current/total pair.
type TaskProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// TaskStatusResponse exposes async generation state to pollers.
type TaskStatusResponse struct {
	TaskID             string           `json:"task_id"`
	State              models.TaskState `json:"state"`
	Message            string           `json:"message,omitempty"`
	Progress           *TaskProgress    `json:"progress,omitempty"`
	ProgressPercentage *float64         `json:"progress_percentage,omitempty"`
	Result             json.RawMessage  `json:"result,omitempty"`
	Error              string           `json:"error,omitempty"`
}

// MyScheduleDay groups a user's entries for one calendar date.
type MyScheduleDay struct {
	Date      string                        `json:"date"`
	DayOfWeek models.DayOfWeek              `json:"day_of_week"`
	Entries   []models.TimetableEntryDetail `json:"entries"`
}

// RoomAvailability lists a room's published bookings on a date.
type RoomAvailability struct {
	RoomID    string               `json:"room_id"`
	Date      string               `json:"date"`
	DayOfWeek models.DayOfWeek     `json:"day_of_week"`
	Bookings  []models.RoomBooking `json:"bookings"`
}
