package models

// Room is a bookable teaching space.
type Room struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	Capacity     int     `db:"capacity" json:"capacity"`
	RoomType     string  `db:"room_type" json:"room_type"`
	Building     string  `db:"building" json:"building"`
	Floor        int     `db:"floor" json:"floor"`
	DepartmentID *string `db:"department_id" json:"department_id,omitempty"`
	SchoolID     *string `db:"school_id" json:"school_id,omitempty"`
	IsActive     bool    `db:"is_active" json:"is_active"`
}

// RoomFilter narrows room lookups.
type RoomFilter struct {
	SchoolID   *string
	ActiveOnly bool
}

// RoomBooking is one published occupation of a room on a given date.
type RoomBooking struct {
	EntryID     string    `json:"entry_id"`
	CourseName  string    `json:"course_name"`
	TrainerName string    `json:"trainer_name"`
	ClassGroup  string    `json:"class_group"`
	DayOfWeek   DayOfWeek `json:"day_of_week"`
	StartTime   ClockTime `json:"start_time"`
	EndTime     ClockTime `json:"end_time"`
}
