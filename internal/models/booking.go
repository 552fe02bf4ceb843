package models

import "time"

// LessonMode is the concrete delivery mode chosen for a single booking.
type LessonMode string

const (
	LessonOnline   LessonMode = "online"
	LessonInPerson LessonMode = "in_person"
)

// Valid reports whether the lesson mode is a known value.
func (m LessonMode) Valid() bool {
	return m == LessonOnline || m == LessonInPerson
}

// BookingStatus is the canonical booking lifecycle vocabulary. Legacy
// synonyms from the previous platform are accepted at the boundary only.
type BookingStatus string

const (
	StatusActive    BookingStatus = "active"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// legacy status vocabulary mapped at the boundary; the store only ever sees
// the canonical values.
var statusSynonyms = map[string]BookingStatus{
	"active":        StatusActive,
	"confirmed":     StatusActive,
	"zaplanowana":   StatusActive,
	"completed":     StatusCompleted,
	"przeprowadzona": StatusCompleted,
	"cancelled":     StatusCancelled,
	"odwolana":      StatusCancelled,
}

// ParseBookingStatus maps a raw status string, including legacy synonyms,
// to the canonical vocabulary.
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	s, ok := statusSynonyms[raw]
	return s, ok
}

// CanTransition reports whether a booking may move from its current status
// to the target. Completed and cancelled are terminal.
func (s BookingStatus) CanTransition(target BookingStatus) bool {
	if s != StatusActive {
		return false
	}
	return target == StatusCompleted || target == StatusCancelled
}

// Booking is a reservation of one teacher slot on one date. Price columns
// snapshot the teacher's table at creation; Amount is the price actually
// charged and is the only figure settlement may use.
type Booking struct {
	ID                 string        `db:"id" json:"id"`
	TeacherID          string        `db:"teacher_id" json:"teacher_id"`
	StudentID          string        `db:"student_id" json:"student_id"`
	DayOfWeek          int           `db:"day_of_week" json:"day_of_week"`
	TimeSlot           string        `db:"time_slot" json:"time_slot"`
	BookingDate        string        `db:"booking_date" json:"booking_date"`
	LessonMode         LessonMode    `db:"lesson_mode" json:"lesson_mode"`
	Status             BookingStatus `db:"status" json:"status"`
	Notes              string        `db:"notes" json:"notes"`
	PriceOnline        float64       `db:"price_online" json:"price_online"`
	PriceInPerson      float64       `db:"price_in_person" json:"price_in_person"`
	Amount             float64       `db:"amount" json:"amount"`
	CancellationReason string        `db:"cancellation_reason" json:"cancellation_reason"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingWithStudent joins the student's identity for CRM views.
type BookingWithStudent struct {
	Booking
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// BookingFilter captures the listing criteria for booking queries.
type BookingFilter struct {
	TeacherID string
	StudentID string
	DateFrom  string
	DateTo    string
	Status    *BookingStatus
}

// BookingStats summarises a teacher's bookings by status.
type BookingStats struct {
	Total     int `db:"total" json:"total"`
	Active    int `db:"active" json:"active"`
	Completed int `db:"completed" json:"completed"`
	Cancelled int `db:"cancelled" json:"cancelled"`
}
