package models

import (
	"fmt"
	"strings"
)

// DayOfWeek enumerates the weekdays an entry can be scheduled on.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// Weekdays lists all days in calendar order starting on Monday.
var Weekdays = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Valid reports whether the day is one of the seven enumerated values.
func (d DayOfWeek) Valid() bool {
	return d.Index() >= 0
}

// Index returns the zero-based position with Monday as 0, or -1 when invalid.
func (d DayOfWeek) Index() int {
	for i, day := range Weekdays {
		if day == d {
			return i
		}
	}
	return -1
}

// Title renders the day for display, e.g. "Monday".
func (d DayOfWeek) Title() string {
	if d == "" {
		return ""
	}
	s := string(d)
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseDayOfWeek normalises a day name case-insensitively.
func ParseDayOfWeek(raw string) (DayOfWeek, error) {
	day := DayOfWeek(strings.ToLower(strings.TrimSpace(raw)))
	if !day.Valid() {
		return "", fmt.Errorf("invalid day of week %q", raw)
	}
	return day, nil
}
