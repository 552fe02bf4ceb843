package models

import "time"

// Notification is an in-app message persisted for a user.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	SenderID  *string   `db:"sender_id" json:"sender_id,omitempty"`
	Message   string    `db:"message" json:"message"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BookingEventKind identifies the lifecycle event behind a notification.
type BookingEventKind string

const (
	EventBookingCreated   BookingEventKind = "booking_created"
	EventBookingCancelled BookingEventKind = "booking_cancelled"
	EventStatusChanged    BookingEventKind = "status_changed"
)

// BookingEvent is the payload dispatched to the notification queue after a
// booking mutation commits. Dispatch is best-effort and at-least-once; a
// delivery failure never rolls back the committed booking.
type BookingEvent struct {
	Kind        BookingEventKind `json:"kind"`
	BookingID   string           `json:"booking_id"`
	RecipientID string           `json:"recipient_id"`
	SenderID    string           `json:"sender_id"`
	SenderName  string           `json:"sender_name"`
	BookingDate string           `json:"booking_date"`
	TimeSlot    string           `json:"time_slot"`
	LessonMode  LessonMode       `json:"lesson_mode"`
	NewStatus   BookingStatus    `json:"new_status,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}
