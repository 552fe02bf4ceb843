package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

type mockBookingRepo struct {
	bookings       map[string]*models.Booking
	takenSlots     map[string]bool
	studentBusy    map[string]bool
	balances       map[string]float64
	settleErr      error
	lastCreditUser string
	lastCredit     float64
	lastDebit      float64
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{
		bookings:    map[string]*models.Booking{},
		takenSlots:  map[string]bool{},
		studentBusy: map[string]bool{},
		balances:    map[string]float64{},
	}
}

func slotKey(userID string, day int, slot, date string) string {
	return userID + "|" + slot + "|" + date
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) IsSlotTaken(ctx context.Context, teacherID string, day int, slot, date string) (bool, error) {
	return m.takenSlots[slotKey(teacherID, day, slot, date)], nil
}

func (m *mockBookingRepo) HasStudentConflict(ctx context.Context, studentID string, day int, slot, date string) (bool, error) {
	return m.studentBusy[slotKey(studentID, day, slot, date)], nil
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *models.Booking, debit float64) error {
	if debit > 0 && m.balances[booking.StudentID] < debit {
		return appErrors.ErrInsufficientFunds
	}
	if m.takenSlots[slotKey(booking.TeacherID, booking.DayOfWeek, booking.TimeSlot, booking.BookingDate)] {
		return appErrors.ErrSlotAlreadyBooked
	}
	m.balances[booking.StudentID] -= debit
	m.lastDebit = debit
	booking.ID = "b-" + booking.BookingDate
	booking.Status = models.StatusActive
	m.bookings[booking.ID] = booking
	m.takenSlots[slotKey(booking.TeacherID, booking.DayOfWeek, booking.TimeSlot, booking.BookingDate)] = true
	return nil
}

func (m *mockBookingRepo) SettleStatus(ctx context.Context, bookingID string, target models.BookingStatus, reason string, creditUserID string, creditAmount float64) error {
	if m.settleErr != nil {
		return m.settleErr
	}
	b, ok := m.bookings[bookingID]
	if !ok || b.Status != models.StatusActive {
		return appErrors.ErrInvalidTransition
	}
	b.Status = target
	b.CancellationReason = reason
	if creditAmount > 0 {
		m.balances[creditUserID] += creditAmount
	}
	m.lastCreditUser = creditUserID
	m.lastCredit = creditAmount
	return nil
}

func (m *mockBookingRepo) UpdateNotes(ctx context.Context, bookingID, notes string) error {
	b, ok := m.bookings[bookingID]
	if !ok {
		return sql.ErrNoRows
	}
	b.Notes = notes
	return nil
}

func (m *mockBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range m.bookings {
		if filter.TeacherID != "" && b.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && b.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (m *mockBookingRepo) ListWithStudent(ctx context.Context, teacherID, from, to string) ([]models.BookingWithStudent, error) {
	return nil, nil
}

func (m *mockBookingRepo) Stats(ctx context.Context, teacherID string) (*models.BookingStats, error) {
	stats := &models.BookingStats{}
	for _, b := range m.bookings {
		if b.TeacherID != teacherID {
			continue
		}
		stats.Total++
		switch b.Status {
		case models.StatusActive:
			stats.Active++
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

type mockBlockFinder struct {
	blocks []*models.AvailabilityBlock
}

func (m *mockBlockFinder) add(b *models.AvailabilityBlock) {
	m.blocks = append(m.blocks, b)
}

// FindBlock mirrors the repository's containment match: any block spanning
// the requested half-hour answers.
func (m *mockBlockFinder) FindBlock(ctx context.Context, teacherID string, day int, start, end string) (*models.AvailabilityBlock, error) {
	for _, b := range m.blocks {
		if b.TeacherID == teacherID && b.DayOfWeek == day && b.StartTime <= start && b.EndTime >= end {
			return b, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockOverrideFinder struct {
	overrides map[string]*models.AvailabilityOverride
}

func (m *mockOverrideFinder) Find(ctx context.Context, teacherID, date string) (*models.AvailabilityOverride, error) {
	if o, ok := m.overrides[teacherID+"|"+date]; ok {
		return o, nil
	}
	return nil, sql.ErrNoRows
}

type mockPricingFinder struct {
	policies map[string]*models.PricingPolicy
}

func (m *mockPricingFinder) Find(ctx context.Context, teacherID string) (*models.PricingPolicy, error) {
	if p, ok := m.policies[teacherID]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

type mockNotifier struct {
	events []models.BookingEvent
}

func (m *mockNotifier) Dispatch(event models.BookingEvent) {
	m.events = append(m.events, event)
}

type bookingFixture struct {
	svc      *BookingService
	repo     *mockBookingRepo
	blocks   *mockBlockFinder
	override *mockOverrideFinder
	pricing  *mockPricingFinder
	notifier *mockNotifier
}

func newBookingFixture(cfg BookingConfig) *bookingFixture {
	f := &bookingFixture{
		repo:     newMockBookingRepo(),
		blocks:   &mockBlockFinder{},
		override: &mockOverrideFinder{overrides: map[string]*models.AvailabilityOverride{}},
		pricing:  &mockPricingFinder{policies: map[string]*models.PricingPolicy{}},
		notifier: &mockNotifier{},
	}
	f.svc = NewBookingService(f.repo, f.blocks, f.override, f.pricing, f.notifier, cfg, nil, nil)
	return f
}

// futureDate returns the next occurrence of the given weekday (0=Monday) as
// an ISO date at least a week out, so tests never trip the past-date check.
func futureDate(day int) string {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for dayOfWeek(d) != day {
		d = d.AddDate(0, 0, 1)
	}
	return d.Format("2006-01-02")
}

func defaultConfig() BookingConfig {
	return BookingConfig{CommissionRate: 0.15, RequirePrepay: true}
}

var student = models.ActorContext{UserID: "student-1", Role: models.RoleUser, FullName: "Student One"}
var teacher = models.ActorContext{UserID: "teacher-1", Role: models.RoleTeacher, FullName: "Teacher One"}

func (f *bookingFixture) openMondaySlot(mode models.TeachingMode) CreateBookingRequest {
	f.blocks.add(&models.AvailabilityBlock{
		TeacherID: "teacher-1", DayOfWeek: 0, StartTime: "10:00", EndTime: "10:30", Mode: mode, Available: true,
	})
	return CreateBookingRequest{
		TeacherID:   "teacher-1",
		BookingDate: futureDate(0),
		TimeSlot:    "10:00 - 10:30",
		LessonMode:  models.LessonOnline,
	}
}

func TestBookingServiceCreateHappyPath(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 200
	f.pricing.policies["teacher-1"] = &models.PricingPolicy{TeacherID: "teacher-1", PriceOnline: 90, PriceInPerson: 120}

	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, booking.Status)
	assert.Equal(t, 90.0, booking.Amount)
	assert.Equal(t, 90.0, f.repo.lastDebit)
	assert.InDelta(t, 110.0, f.repo.balances["student-1"], 0.001)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, models.EventBookingCreated, f.notifier.events[0].Kind)
	assert.Equal(t, "teacher-1", f.notifier.events[0].RecipientID)
}

func TestBookingServiceCreateDefaultPricing(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeOnline)
	f.repo.balances["student-1"] = 100

	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPriceOnline, booking.Amount)
	assert.Equal(t, models.DefaultPriceInPerson, booking.PriceInPerson)
}

func TestBookingServiceCreateConfiguredDefaultPricing(t *testing.T) {
	f := newBookingFixture(BookingConfig{
		CommissionRate:       0.15,
		RequirePrepay:        true,
		DefaultPriceOnline:   55,
		DefaultPriceInPerson: 70,
	})
	req := f.openMondaySlot(models.ModeOnline)
	f.repo.balances["student-1"] = 100

	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)
	assert.Equal(t, 55.0, booking.Amount)
	assert.Equal(t, 70.0, booking.PriceInPerson)
}

func TestBookingServiceCreateModeGate(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeInPerson)
	req.LessonMode = models.LessonOnline
	f.repo.balances["student-1"] = 100

	_, err := f.svc.Create(context.Background(), student, req)
	assert.ErrorIs(t, err, appErrors.ErrModeNotAllowed)
}

func TestBookingServiceCreateNoAvailability(t *testing.T) {
	f := newBookingFixture(defaultConfig())

	_, err := f.svc.Create(context.Background(), student, CreateBookingRequest{
		TeacherID:   "teacher-1",
		BookingDate: futureDate(2),
		TimeSlot:    "10:00 - 10:30",
		LessonMode:  models.LessonOnline,
	})
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
}

func TestBookingServiceCreateBlockedDate(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.override.overrides["teacher-1|"+req.BookingDate] = &models.AvailabilityOverride{
		TeacherID: "teacher-1", Date: req.BookingDate, IsFree: true,
	}

	_, err := f.svc.Create(context.Background(), student, req)
	assert.ErrorIs(t, err, appErrors.ErrSlotUnavailable)
}

func TestBookingServiceCreateSlotTaken(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.takenSlots[slotKey("teacher-1", 0, "10:00 - 10:30", req.BookingDate)] = true
	f.repo.balances["student-1"] = 100

	_, err := f.svc.Create(context.Background(), student, req)
	assert.ErrorIs(t, err, appErrors.ErrSlotAlreadyBooked)
}

func TestBookingServiceCreateStudentConflict(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.studentBusy[slotKey("student-1", 0, "10:00 - 10:30", req.BookingDate)] = true
	f.repo.balances["student-1"] = 100

	_, err := f.svc.Create(context.Background(), student, req)
	assert.ErrorIs(t, err, appErrors.ErrStudentDoubleBooking)
}

func TestBookingServiceCreateInsufficientFunds(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 10

	_, err := f.svc.Create(context.Background(), student, req)
	assert.ErrorIs(t, err, appErrors.ErrInsufficientFunds)
	assert.Empty(t, f.notifier.events)
}

func TestBookingServiceCreateWithoutPrepay(t *testing.T) {
	f := newBookingFixture(BookingConfig{CommissionRate: 0.15, RequirePrepay: false})
	req := f.openMondaySlot(models.ModeBoth)

	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)
	assert.Zero(t, f.repo.lastDebit)
	assert.Equal(t, models.DefaultPriceOnline, booking.Amount)
}

func TestBookingServiceCreateNormalizesSlot(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	f.blocks.add(&models.AvailabilityBlock{
		TeacherID: "teacher-1", DayOfWeek: 0, StartTime: "09:00", EndTime: "09:30", Mode: models.ModeBoth, Available: true,
	})
	f.repo.balances["student-1"] = 100

	booking, err := f.svc.Create(context.Background(), student, CreateBookingRequest{
		TeacherID:   "teacher-1",
		BookingDate: futureDate(0),
		TimeSlot:    "9:00 - 9:30",
		LessonMode:  models.LessonOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, "09:00 - 09:30", booking.TimeSlot)
}

func TestBookingServiceCreateInsideWiderBlock(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	f.blocks.add(&models.AvailabilityBlock{
		TeacherID: "teacher-1", DayOfWeek: 0, StartTime: "09:00", EndTime: "12:00", Mode: models.ModeBoth, Available: true,
	})
	f.repo.balances["student-1"] = 500

	// Every half-hour slot the public grid derives from a 09:00-12:00
	// block must be bookable, first and last included.
	for _, slot := range []string{"09:00 - 09:30", "10:30 - 11:00", "11:30 - 12:00"} {
		booking, err := f.svc.Create(context.Background(), student, CreateBookingRequest{
			TeacherID:   "teacher-1",
			BookingDate: futureDate(0),
			TimeSlot:    slot,
			LessonMode:  models.LessonOnline,
		})
		require.NoError(t, err, slot)
		assert.Equal(t, slot, booking.TimeSlot)
	}
}

func TestBookingServiceCreateRejectsSelfBooking(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)

	_, err := f.svc.Create(context.Background(), teacher, req)
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
}

func TestBookingServiceCancelRefundsStudent(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 100
	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, f.repo.balances["student-1"], 0.001)

	cancelled, err := f.svc.Cancel(context.Background(), teacher, booking.ID, "sick")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, "sick", cancelled.CancellationReason)
	assert.InDelta(t, 100.0, f.repo.balances["student-1"], 0.001)

	// Teacher cancelled, so the student is notified.
	last := f.notifier.events[len(f.notifier.events)-1]
	assert.Equal(t, models.EventBookingCancelled, last.Kind)
	assert.Equal(t, "student-1", last.RecipientID)
}

func TestBookingServiceCompletePaysCommissionedAmount(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 100
	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(context.Background(), teacher, booking.ID, UpdateStatusRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
	assert.InDelta(t, 68.0, f.repo.balances["teacher-1"], 0.001)
	assert.Equal(t, "teacher-1", f.repo.lastCreditUser)
}

func TestBookingServiceLegacyStatusNames(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 100
	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(context.Background(), teacher, booking.ID, UpdateStatusRequest{Status: "przeprowadzona"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)
}

func TestBookingServiceDoubleSettlementRejected(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 100
	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), teacher, booking.ID, UpdateStatusRequest{Status: "completed"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), teacher, booking.ID, "")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	// The refund must not have been applied on the failed transition.
	assert.InDelta(t, 20.0, f.repo.balances["student-1"], 0.001)
}

func TestBookingServiceStudentCannotComplete(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 100
	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), student, booking.ID, UpdateStatusRequest{Status: "completed"})
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrForbidden.Code, typed.Code)
}

func TestBookingServiceOutsiderCannotCancel(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 100
	booking, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)

	outsider := models.ActorContext{UserID: "student-2", Role: models.RoleUser}
	_, err = f.svc.Cancel(context.Background(), outsider, booking.ID, "")
	var typed *appErrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, appErrors.ErrForbidden.Code, typed.Code)
}

func TestBookingServiceListPinsNonAdminsToOwnSide(t *testing.T) {
	f := newBookingFixture(defaultConfig())
	req := f.openMondaySlot(models.ModeBoth)
	f.repo.balances["student-1"] = 100
	_, err := f.svc.Create(context.Background(), student, req)
	require.NoError(t, err)

	list, err := f.svc.List(context.Background(), student, models.BookingFilter{StudentID: "someone-else"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "student-1", list[0].StudentID)
}
