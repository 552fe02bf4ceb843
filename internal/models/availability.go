package models

import "time"

// TeachingMode describes how a teacher delivers lessons within a block.
type TeachingMode string

const (
	ModeOnline   TeachingMode = "online"
	ModeInPerson TeachingMode = "in_person"
	ModeBoth     TeachingMode = "both"
)

// Valid reports whether the mode is one of the known values.
func (m TeachingMode) Valid() bool {
	switch m {
	case ModeOnline, ModeInPerson, ModeBoth:
		return true
	}
	return false
}

// Accepts reports whether a lesson in the requested mode may be booked
// against a block taught in mode m. "both" accepts either side.
func (m TeachingMode) Accepts(requested LessonMode) bool {
	switch m {
	case ModeBoth:
		return requested == LessonOnline || requested == LessonInPerson
	case ModeOnline:
		return requested == LessonOnline
	case ModeInPerson:
		return requested == LessonInPerson
	}
	return false
}

// AvailabilityBlock is one recurring weekly interval a teacher is willing to
// teach. The teacher's full week is replaced wholesale on every save.
type AvailabilityBlock struct {
	ID        string       `db:"id" json:"id"`
	TeacherID string       `db:"teacher_id" json:"teacher_id"`
	DayOfWeek int          `db:"day_of_week" json:"day_of_week"`
	StartTime string       `db:"start_time" json:"start_time"`
	EndTime   string       `db:"end_time" json:"end_time"`
	Mode      TeachingMode `db:"teaching_mode" json:"teaching_mode"`
	Available bool         `db:"available" json:"available"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// Slot returns the canonical slot label covered by the block.
func (b AvailabilityBlock) Slot() string {
	return b.StartTime + " - " + b.EndTime
}

// AvailabilityOverride is a date-specific exception. IsFree=true blocks the
// whole date regardless of recurring blocks; overrides never widen
// availability beyond recurring hours.
type AvailabilityOverride struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Date      string    `db:"date" json:"date"`
	IsFree    bool      `db:"is_free" json:"is_free"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SlotInfo is one cell of the public availability view.
type SlotInfo struct {
	Available bool         `json:"available"`
	Mode      TeachingMode `json:"mode"`
}

// WeeklyAvailability maps day-of-week to slot label to slot info.
type WeeklyAvailability map[int]map[string]SlotInfo

// TeacherAvailabilityView is the public payload for a teacher's schedule.
// The weekly grid is the cacheable part; BookedSlots and BlockedDates are
// per-date layers resolved fresh on every read.
type TeacherAvailabilityView struct {
	TeacherID    string              `json:"teacher_id"`
	TeacherName  string              `json:"teacher_name"`
	Availability WeeklyAvailability  `json:"availability"`
	TimeSlots    []string            `json:"time_slots"`
	BookedSlots  map[string][]string `json:"booked_slots"`
	BlockedDates []string            `json:"blocked_dates"`
}
