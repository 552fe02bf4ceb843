package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/timeslot"
)

type availabilityRepository interface {
	ReplaceWeek(ctx context.Context, teacherID string, blocks []models.AvailabilityBlock) ([]string, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.AvailabilityBlock, error)
	DeleteBlock(ctx context.Context, teacherID, blockID string) error
}

type overrideRepository interface {
	Upsert(ctx context.Context, teacherID, date string, isFree bool) (bool, error)
	ListRange(ctx context.Context, teacherID, from, to string) ([]models.AvailabilityOverride, error)
}

type availabilityUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type bookedSlotFinder interface {
	BookedSlots(ctx context.Context, teacherID, from, to string) (map[string][]string, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheMetrics interface {
	RecordCacheLookup(hit bool)
}

// How far ahead the public view resolves booked slots and blocked dates.
const availabilityWindowDays = 30

// BlockRequest is one recurring interval in a weekly availability payload.
type BlockRequest struct {
	DayOfWeek int                 `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string              `json:"start_time" validate:"required"`
	EndTime   string              `json:"end_time" validate:"required"`
	Mode      models.TeachingMode `json:"teaching_mode" validate:"required"`
}

// SetAvailabilityRequest replaces the teacher's entire recurring week.
type SetAvailabilityRequest struct {
	Blocks []BlockRequest `json:"blocks" validate:"dive"`
}

// DayOverrideRequest marks a single date as blocked or restored.
type DayOverrideRequest struct {
	Date   string `json:"date" validate:"required"`
	IsFree bool   `json:"is_free"`
}

// DayOverrideResult reports whether the override changed stored state.
type DayOverrideResult struct {
	Date    string `json:"date"`
	IsFree  bool   `json:"is_free"`
	Changed bool   `json:"changed"`
}

// AvailabilityService manages recurring weekly schedules, per-date overrides
// and the cached public availability view.
type AvailabilityService struct {
	repo      availabilityRepository
	overrides overrideRepository
	users     availabilityUserRepository
	bookings  bookedSlotFinder
	cache     cacheStore
	cacheTTL  time.Duration
	metrics   cacheMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService. metrics may be
// nil when cache instrumentation is not wanted.
func NewAvailabilityService(repo availabilityRepository, overrides overrideRepository, users availabilityUserRepository, bookings bookedSlotFinder, cache cacheStore, cacheTTL time.Duration, metrics cacheMetrics, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		repo:      repo,
		overrides: overrides,
		users:     users,
		bookings:  bookings,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

func availabilityCacheKey(teacherID string) string {
	return "availability:teacher:" + teacherID
}

// SetWeeklyAvailability replaces the actor's recurring schedule wholesale.
// An empty block list clears the week entirely.
func (s *AvailabilityService) SetWeeklyAvailability(ctx context.Context, actor models.ActorContext, req SetAvailabilityRequest) ([]string, error) {
	if !actor.Role.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers manage availability")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}

	blocks := make([]models.AvailabilityBlock, 0, len(req.Blocks))
	seen := make(map[string]struct{}, len(req.Blocks))
	for _, raw := range req.Blocks {
		if !raw.Mode.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown teaching mode %q", raw.Mode))
		}
		start := timeslot.NormalizeTime(raw.StartTime)
		end := timeslot.NormalizeTime(raw.EndTime)
		if start >= end {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("block %s - %s has no duration", start, end))
		}
		key := fmt.Sprintf("%d|%s|%s", raw.DayOfWeek, start, end)
		if _, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate availability block in payload")
		}
		seen[key] = struct{}{}
		blocks = append(blocks, models.AvailabilityBlock{
			DayOfWeek: raw.DayOfWeek,
			StartTime: start,
			EndTime:   end,
			Mode:      raw.Mode,
		})
	}

	ids, err := s.repo.ReplaceWeek(ctx, actor.UserID, blocks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	s.invalidate(ctx, actor.UserID)
	return ids, nil
}

// ListWeek returns the actor's recurring blocks for the CRM editor.
func (s *AvailabilityService) ListWeek(ctx context.Context, teacherID string) ([]models.AvailabilityBlock, error) {
	blocks, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return blocks, nil
}

// DeleteBlock removes one recurring block owned by the actor.
func (s *AvailabilityService) DeleteBlock(ctx context.Context, actor models.ActorContext, blockID string) error {
	if !actor.Role.IsTeacher() {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers manage availability")
	}
	if err := s.repo.DeleteBlock(ctx, actor.UserID, blockID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "availability block not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete availability block")
	}
	s.invalidate(ctx, actor.UserID)
	return nil
}

// SetDayOverride blocks or restores a single date. Saving the same value
// twice is a no-op and Changed is false. Overrides only narrow the week;
// restoring a date never opens hours outside the recurring blocks.
func (s *AvailabilityService) SetDayOverride(ctx context.Context, actor models.ActorContext, req DayOverrideRequest) (*DayOverrideResult, error) {
	if !actor.Role.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers manage availability")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	changed, err := s.overrides.Upsert(ctx, actor.UserID, req.Date, req.IsFree)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save day override")
	}
	if changed {
		s.invalidate(ctx, actor.UserID)
	}
	return &DayOverrideResult{Date: req.Date, IsFree: req.IsFree, Changed: changed}, nil
}

// ListOverrides returns the teacher's overrides in an inclusive date range.
func (s *AvailabilityService) ListOverrides(ctx context.Context, teacherID, from, to string) ([]models.AvailabilityOverride, error) {
	if from == "" || to == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from and to dates are required")
	}
	overrides, err := s.overrides.ListRange(ctx, teacherID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list day overrides")
	}
	return overrides, nil
}

// GetTeacherAvailability builds the public half-hour calendar for a teacher.
// The weekly grid is cached and invalidated on availability mutations; the
// booked-slot and blocked-date layers are read fresh so the view never
// advertises a slot another student just took.
func (s *AvailabilityService) GetTeacherAvailability(ctx context.Context, teacherID string) (*models.TeacherAvailabilityView, error) {
	view, err := s.weeklyView(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	from := time.Now().UTC().Format("2006-01-02")
	to := time.Now().UTC().AddDate(0, 0, availabilityWindowDays-1).Format("2006-01-02")

	booked, err := s.bookings.BookedSlots(ctx, teacherID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list booked slots")
	}
	overrides, err := s.overrides.ListRange(ctx, teacherID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list day overrides")
	}

	view.BookedSlots = booked
	view.BlockedDates = make([]string, 0, len(overrides))
	for _, o := range overrides {
		if o.IsFree {
			view.BlockedDates = append(view.BlockedDates, o.Date)
		}
	}
	return view, nil
}

// weeklyView returns the cacheable part of the availability payload.
func (s *AvailabilityService) weeklyView(ctx context.Context, teacherID string) (*models.TeacherAvailabilityView, error) {
	key := availabilityCacheKey(teacherID)
	if s.cache != nil {
		var cached models.TeacherAvailabilityView
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.recordCacheLookup(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("availability cache read failed", zap.Error(err))
		}
		s.recordCacheLookup(false)
	}

	user, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}
	if !user.Role.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}

	blocks, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}

	view := &models.TeacherAvailabilityView{
		TeacherID:    teacherID,
		TeacherName:  user.FullName,
		Availability: buildWeeklyGrid(blocks),
		TimeSlots:    timeslot.Generate(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view, s.cacheTTL); err != nil {
			s.logger.Warn("availability cache write failed", zap.Error(err))
		}
	}
	return view, nil
}

// buildWeeklyGrid expands recurring blocks into per-slot availability cells.
// Each block marks exactly the half-hour slots it covers.
func buildWeeklyGrid(blocks []models.AvailabilityBlock) models.WeeklyAvailability {
	grid := make(models.WeeklyAvailability)
	slots := timeslot.Generate()
	for _, block := range blocks {
		if !block.Available {
			continue
		}
		day, ok := grid[block.DayOfWeek]
		if !ok {
			day = make(map[string]models.SlotInfo)
			grid[block.DayOfWeek] = day
		}
		for _, slot := range slots {
			start, end, ok := timeslot.Split(slot)
			if !ok {
				continue
			}
			if start >= block.StartTime && end <= block.EndTime {
				day[slot] = models.SlotInfo{Available: true, Mode: block.Mode}
			}
		}
	}
	return grid
}

func (s *AvailabilityService) recordCacheLookup(hit bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheLookup(hit)
}

func (s *AvailabilityService) invalidate(ctx context.Context, teacherID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, availabilityCacheKey(teacherID)); err != nil {
		s.logger.Warn("availability cache invalidation failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}
