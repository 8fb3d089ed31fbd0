package service

import (
	"sort"

	"github.com/noah-isme/timetable-engine/internal/models"
)

// Axis is a dimension along which two entries may not overlap in time.
type Axis string

const (
	AxisRoom       Axis = "room"
	AxisTrainer    Axis = "trainer"
	AxisClassGroup Axis = "class_group"
)

type intervalKey struct {
	axis Axis
	id   string
	day  models.DayOfWeek
}

type interval struct {
	start models.ClockTime
	end   models.ClockTime
	ref   string
}

// intervalIndex holds occupied half-open ranges per (axis, id, day), sorted
// by start. It is built once per generation run and mutated as the search
// places and undoes sessions.
type intervalIndex struct {
	slots map[intervalKey][]interval
}

func newIntervalIndex() *intervalIndex {
	return &intervalIndex{slots: make(map[intervalKey][]interval)}
}

// Add records [start,end) for the axis id on day. Empty ids are ignored.
func (x *intervalIndex) Add(axis Axis, id string, day models.DayOfWeek, start, end models.ClockTime, ref string) {
	if id == "" {
		return
	}
	key := intervalKey{axis: axis, id: id, day: day}
	list := x.slots[key]
	pos := sort.Search(len(list), func(i int) bool { return list[i].start > start })
	list = append(list, interval{})
	copy(list[pos+1:], list[pos:])
	list[pos] = interval{start: start, end: end, ref: ref}
	x.slots[key] = list
}

// Remove deletes the interval previously added with ref.
func (x *intervalIndex) Remove(axis Axis, id string, day models.DayOfWeek, ref string) {
	key := intervalKey{axis: axis, id: id, day: day}
	list := x.slots[key]
	for i := range list {
		if list[i].ref == ref {
			x.slots[key] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Overlapping returns the refs of intervals intersecting [start,end).
func (x *intervalIndex) Overlapping(axis Axis, id string, day models.DayOfWeek, start, end models.ClockTime) []string {
	if id == "" {
		return nil
	}
	list := x.slots[intervalKey{axis: axis, id: id, day: day}]
	// Only intervals starting before end can overlap.
	limit := sort.Search(len(list), func(i int) bool { return list[i].start >= end })
	var refs []string
	for _, iv := range list[:limit] {
		if models.Overlaps(iv.start, iv.end, start, end) {
			refs = append(refs, iv.ref)
		}
	}
	return refs
}

// Busy reports whether any interval intersects [start,end).
func (x *intervalIndex) Busy(axis Axis, id string, day models.DayOfWeek, start, end models.ClockTime) bool {
	if id == "" {
		return false
	}
	list := x.slots[intervalKey{axis: axis, id: id, day: day}]
	limit := sort.Search(len(list), func(i int) bool { return list[i].start >= end })
	for _, iv := range list[:limit] {
		if iv.end > start {
			return true
		}
	}
	return false
}

// Count returns how many intervals are held for the axis id on day.
func (x *intervalIndex) Count(axis Axis, id string, day models.DayOfWeek) int {
	return len(x.slots[intervalKey{axis: axis, id: id, day: day}])
}
