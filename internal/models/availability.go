package models

import "sort"

// TrainerAvailability declares a window when a trainer may be scheduled.
type TrainerAvailability struct {
	ID        string    `db:"id" json:"id"`
	TrainerID string    `db:"trainer_id" json:"trainer_id"`
	DayOfWeek DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime ClockTime `db:"start_time" json:"start_time"`
	EndTime   ClockTime `db:"end_time" json:"end_time"`
}

// TimeWindow is a half-open [Start, End) range within a day.
type TimeWindow struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// Contains reports whether [start,end) lies entirely within the window.
func (w TimeWindow) Contains(start, end ClockTime) bool {
	return start >= w.Start && end <= w.End
}

// MergeWindows unions overlapping or touching windows and returns them sorted.
// Empty or inverted windows are dropped.
func MergeWindows(windows []TimeWindow) []TimeWindow {
	valid := make([]TimeWindow, 0, len(windows))
	for _, w := range windows {
		if w.Start < w.End {
			valid = append(valid, w)
		}
	}
	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start == valid[j].Start {
			return valid[i].End < valid[j].End
		}
		return valid[i].Start < valid[j].Start
	})

	merged := make([]TimeWindow, 0, len(valid))
	for _, w := range valid {
		last := len(merged) - 1
		if last >= 0 && w.Start <= merged[last].End {
			if w.End > merged[last].End {
				merged[last].End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}
