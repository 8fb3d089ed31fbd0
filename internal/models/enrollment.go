package models

// CourseEnrollment links a course, trainer and class group for one term.
// It is the unit of work the generator places.
type CourseEnrollment struct {
	ID               string  `db:"id" json:"id"`
	TermID           string  `db:"term_id" json:"term_id"`
	CourseID         string  `db:"course_id" json:"course_id"`
	CourseCode       string  `db:"course_code" json:"course_code"`
	CourseName       string  `db:"course_name" json:"course_name"`
	TrainerID        string  `db:"trainer_id" json:"trainer_id"`
	TrainerName      string  `db:"trainer_name" json:"trainer_name"`
	ClassGroupID     string  `db:"class_group_id" json:"class_group_id"`
	ClassGroupName   string  `db:"class_group_name" json:"class_group_name"`
	ClassGroupSize   int     `db:"class_group_size" json:"class_group_size"`
	DepartmentID     *string `db:"department_id" json:"department_id,omitempty"`
	SchoolID         *string `db:"school_id" json:"school_id,omitempty"`
	SessionsPerWeek  int     `db:"sessions_per_week" json:"sessions_per_week"`
	SessionMinutes   int     `db:"session_minutes" json:"session_minutes"`
	RequiredRoomType *string `db:"required_room_type" json:"required_room_type,omitempty"`
}

// EnrollmentFilter narrows which enrollments are in a generation scope.
type EnrollmentFilter struct {
	TermID        string
	ClassGroupIDs []string
	DepartmentIDs []string
	SchoolID      *string
	TrainerID     string
}
