package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/timeslot"
)

type bookingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	IsSlotTaken(ctx context.Context, teacherID string, dayOfWeek int, timeSlot, bookingDate string) (bool, error)
	HasStudentConflict(ctx context.Context, studentID string, dayOfWeek int, timeSlot, bookingDate string) (bool, error)
	Create(ctx context.Context, booking *models.Booking, debit float64) error
	SettleStatus(ctx context.Context, bookingID string, target models.BookingStatus, reason string, creditUserID string, creditAmount float64) error
	UpdateNotes(ctx context.Context, bookingID, notes string) error
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	ListWithStudent(ctx context.Context, teacherID, from, to string) ([]models.BookingWithStudent, error)
	Stats(ctx context.Context, teacherID string) (*models.BookingStats, error)
}

type blockFinder interface {
	FindBlock(ctx context.Context, teacherID string, dayOfWeek int, startTime, endTime string) (*models.AvailabilityBlock, error)
}

type overrideFinder interface {
	Find(ctx context.Context, teacherID, date string) (*models.AvailabilityOverride, error)
}

type pricingFinder interface {
	Find(ctx context.Context, teacherID string) (*models.PricingPolicy, error)
}

type bookingNotifier interface {
	Dispatch(event models.BookingEvent)
}

// BookingConfig carries booking policy knobs.
type BookingConfig struct {
	CommissionRate       float64
	RequirePrepay        bool
	DefaultPriceOnline   float64
	DefaultPriceInPerson float64
}

// CreateBookingRequest is the payload for reserving a slot.
type CreateBookingRequest struct {
	TeacherID   string            `json:"teacher_id" validate:"required"`
	BookingDate string            `json:"booking_date" validate:"required"`
	TimeSlot    string            `json:"time_slot" validate:"required"`
	LessonMode  models.LessonMode `json:"lesson_mode" validate:"required"`
	Notes       string            `json:"notes"`
}

// UpdateStatusRequest moves a booking to a terminal status. Legacy status
// names are accepted and mapped to the canonical vocabulary.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason"`
}

// UpdateNotesRequest replaces the free-text notes on a booking.
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// BookingService implements the booking lifecycle: conflict-checked
// creation with an optional prepay debit, terminal transitions with ledger
// settlement, and listings for both sides of a booking.
type BookingService struct {
	repo      bookingRepository
	blocks    blockFinder
	overrides overrideFinder
	pricing   pricingFinder
	notifier  bookingNotifier
	config    BookingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(repo bookingRepository, blocks blockFinder, overrides overrideFinder, pricing pricingFinder, notifier bookingNotifier, config BookingConfig, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		repo:      repo,
		blocks:    blocks,
		overrides: overrides,
		pricing:   pricing,
		notifier:  notifier,
		config:    config,
		validator: validate,
		logger:    logger,
	}
}

// dayOfWeek maps an ISO date to the 0=Monday .. 6=Sunday convention the
// availability grid uses.
func dayOfWeek(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// Create reserves a slot for the acting student. The pre-checks fail fast
// with precise errors; the storage uniqueness guard remains authoritative
// for concurrent attempts, so a lost race still comes back as
// ErrSlotAlreadyBooked.
func (s *BookingService) Create(ctx context.Context, actor models.ActorContext, req CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	if !req.LessonMode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson mode must be online or in_person")
	}
	if actor.UserID == req.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot book a lesson with yourself")
	}

	date, err := time.Parse("2006-01-02", req.BookingDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking_date must be YYYY-MM-DD")
	}
	if date.Before(time.Now().UTC().Truncate(24 * time.Hour)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking_date is in the past")
	}
	day := dayOfWeek(date)

	slot := timeslot.NormalizeSlot(req.TimeSlot)
	start, end, ok := timeslot.Split(slot)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time_slot must look like HH:MM - HH:MM")
	}

	override, err := s.overrides.Find(ctx, req.TeacherID, req.BookingDate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check day override")
	}
	if override != nil && override.IsFree {
		return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "teacher is not available on this date")
	}

	block, err := s.blocks.FindBlock(ctx, req.TeacherID, day, start, end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrSlotUnavailable
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
	}
	if !block.Available {
		return nil, appErrors.ErrSlotUnavailable
	}
	if !block.Mode.Accepts(req.LessonMode) {
		return nil, appErrors.ErrModeNotAllowed
	}

	taken, err := s.repo.IsSlotTaken(ctx, req.TeacherID, day, slot, req.BookingDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot")
	}
	if taken {
		return nil, appErrors.ErrSlotAlreadyBooked
	}

	conflict, err := s.repo.HasStudentConflict(ctx, actor.UserID, day, slot, req.BookingDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student schedule")
	}
	if conflict {
		return nil, appErrors.ErrStudentDoubleBooking
	}

	policy, err := s.pricing.Find(ctx, req.TeacherID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pricing")
		}
		fallback := models.DefaultPricing(req.TeacherID, s.config.DefaultPriceOnline, s.config.DefaultPriceInPerson)
		policy = &fallback
	}
	amount := policy.PriceFor(req.LessonMode)

	booking := &models.Booking{
		TeacherID:     req.TeacherID,
		StudentID:     actor.UserID,
		DayOfWeek:     day,
		TimeSlot:      slot,
		BookingDate:   req.BookingDate,
		LessonMode:    req.LessonMode,
		Notes:         req.Notes,
		PriceOnline:   policy.PriceOnline,
		PriceInPerson: policy.PriceInPerson,
		Amount:        amount,
	}

	debit := 0.0
	if s.config.RequirePrepay {
		debit = amount
	}
	if err := s.repo.Create(ctx, booking, debit); err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	s.dispatch(models.BookingEvent{
		Kind:        models.EventBookingCreated,
		BookingID:   booking.ID,
		RecipientID: booking.TeacherID,
		SenderID:    actor.UserID,
		SenderName:  actor.FullName,
		BookingDate: booking.BookingDate,
		TimeSlot:    booking.TimeSlot,
		LessonMode:  booking.LessonMode,
	})
	return booking, nil
}

// Cancel moves an active booking to cancelled and refunds the prepaid
// amount to the student in full. Either side of the booking or an admin may
// cancel.
func (s *BookingService) Cancel(ctx context.Context, actor models.ActorContext, bookingID, reason string) (*models.Booking, error) {
	booking, err := s.findAuthorized(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}

	refund := 0.0
	if s.config.RequirePrepay {
		refund = booking.Amount
	}
	if err := s.repo.SettleStatus(ctx, bookingID, models.StatusCancelled, reason, booking.StudentID, refund); err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}

	booking.Status = models.StatusCancelled
	booking.CancellationReason = reason

	recipient := booking.TeacherID
	if actor.UserID == booking.TeacherID {
		recipient = booking.StudentID
	}
	s.dispatch(models.BookingEvent{
		Kind:        models.EventBookingCancelled,
		BookingID:   booking.ID,
		RecipientID: recipient,
		SenderID:    actor.UserID,
		SenderName:  actor.FullName,
		BookingDate: booking.BookingDate,
		TimeSlot:    booking.TimeSlot,
		LessonMode:  booking.LessonMode,
		Reason:      reason,
	})
	return booking, nil
}

// UpdateStatus applies a terminal transition. Completing a lesson credits
// the teacher with the booked amount minus commission; cancelling refunds
// the student. Only active bookings transition, and only once.
func (s *BookingService) UpdateStatus(ctx context.Context, actor models.ActorContext, bookingID string, req UpdateStatusRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target, ok := models.ParseBookingStatus(req.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown booking status")
	}
	if target == models.StatusCancelled {
		return s.Cancel(ctx, actor, bookingID, req.Reason)
	}
	if target != models.StatusCompleted {
		return nil, appErrors.ErrInvalidTransition
	}

	booking, err := s.findAuthorized(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	// Students cannot mark their own lessons completed.
	if actor.UserID == booking.StudentID && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the teacher can complete a lesson")
	}

	payout := booking.Amount * (1 - s.config.CommissionRate)
	if err := s.repo.SettleStatus(ctx, bookingID, models.StatusCompleted, "", booking.TeacherID, payout); err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking status")
	}

	booking.Status = models.StatusCompleted
	s.dispatch(models.BookingEvent{
		Kind:        models.EventStatusChanged,
		BookingID:   booking.ID,
		RecipientID: booking.StudentID,
		SenderID:    actor.UserID,
		SenderName:  actor.FullName,
		BookingDate: booking.BookingDate,
		TimeSlot:    booking.TimeSlot,
		LessonMode:  booking.LessonMode,
		NewStatus:   models.StatusCompleted,
	})
	return booking, nil
}

// UpdateNotes replaces the notes on a booking the actor participates in.
func (s *BookingService) UpdateNotes(ctx context.Context, actor models.ActorContext, bookingID string, req UpdateNotesRequest) error {
	if _, err := s.findAuthorized(ctx, actor, bookingID); err != nil {
		return err
	}
	if err := s.repo.UpdateNotes(ctx, bookingID, req.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notes")
	}
	return nil
}

// List returns bookings visible to the actor. Non-admins are pinned to
// their own side of the filter regardless of what the request asked for.
func (s *BookingService) List(ctx context.Context, actor models.ActorContext, filter models.BookingFilter) ([]models.Booking, error) {
	if !actor.IsAdmin() {
		if actor.Role.IsTeacher() {
			filter.TeacherID = actor.UserID
		} else {
			filter.StudentID = actor.UserID
		}
	}
	bookings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, nil
}

// WeekView returns a teacher's active bookings with student identity for a
// date range.
func (s *BookingService) WeekView(ctx context.Context, actor models.ActorContext, from, to string) ([]models.BookingWithStudent, error) {
	if !actor.Role.IsTeacher() && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher access required")
	}
	if from == "" || to == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from and to dates are required")
	}
	bookings, err := s.repo.ListWithStudent(ctx, actor.UserID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build week view")
	}
	return bookings, nil
}

// Stats summarises the actor's bookings by status.
func (s *BookingService) Stats(ctx context.Context, actor models.ActorContext) (*models.BookingStats, error) {
	if !actor.Role.IsTeacher() && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teacher access required")
	}
	stats, err := s.repo.Stats(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute stats")
	}
	return stats, nil
}

// findAuthorized loads a booking and verifies the actor participates in it
// or is an admin.
func (s *BookingService) findAuthorized(ctx context.Context, actor models.ActorContext, bookingID string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch booking")
	}
	if !actor.IsAdmin() && actor.UserID != booking.TeacherID && actor.UserID != booking.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your booking")
	}
	return booking, nil
}

// dispatch is fire-and-forget: the booking has already committed and a full
// queue or stopped dispatcher must not fail the request.
func (s *BookingService) dispatch(event models.BookingEvent) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(event)
}
