package models

import "time"

// Default prices applied when a teacher has not configured a price table.
const (
	DefaultPriceOnline   = 80.0
	DefaultPriceInPerson = 100.0
)

// PricingPolicy is a teacher's per-mode lesson price table.
type PricingPolicy struct {
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	PriceOnline   float64   `db:"price_online" json:"price_online"`
	PriceInPerson float64   `db:"price_in_person" json:"price_in_person"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPricing returns the fallback policy for a teacher without a table.
// Non-positive prices fall back to the platform constants, so callers may
// pass configured values straight through.
func DefaultPricing(teacherID string, online, inPerson float64) PricingPolicy {
	if online <= 0 {
		online = DefaultPriceOnline
	}
	if inPerson <= 0 {
		inPerson = DefaultPriceInPerson
	}
	return PricingPolicy{
		TeacherID:     teacherID,
		PriceOnline:   online,
		PriceInPerson: inPerson,
	}
}

// PriceFor returns the price applicable to the given lesson mode.
func (p PricingPolicy) PriceFor(mode LessonMode) float64 {
	if mode == LessonInPerson {
		return p.PriceInPerson
	}
	return p.PriceOnline
}
