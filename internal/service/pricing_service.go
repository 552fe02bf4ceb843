package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

type pricingRepository interface {
	Find(ctx context.Context, teacherID string) (*models.PricingPolicy, error)
	Upsert(ctx context.Context, pricing *models.PricingPolicy) error
}

// PricingConfig carries the platform default prices applied when a teacher
// has not stored a table.
type PricingConfig struct {
	DefaultPriceOnline   float64
	DefaultPriceInPerson float64
}

// SetPricingRequest replaces a teacher's per-mode price table.
type SetPricingRequest struct {
	PriceOnline   float64 `json:"price_online" validate:"required,gt=0"`
	PriceInPerson float64 `json:"price_in_person" validate:"required,gt=0"`
}

// PricingService manages teacher price tables. A teacher without a stored
// table falls back to the platform defaults; bookings snapshot whichever
// table was current at creation time.
type PricingService struct {
	repo      pricingRepository
	config    PricingConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPricingService constructs a PricingService.
func NewPricingService(repo pricingRepository, config PricingConfig, validate *validator.Validate, logger *zap.Logger) *PricingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingService{repo: repo, config: config, validator: validate, logger: logger}
}

// Get returns the teacher's pricing, falling back to defaults.
func (s *PricingService) Get(ctx context.Context, teacherID string) (*models.PricingPolicy, error) {
	policy, err := s.repo.Find(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fallback := models.DefaultPricing(teacherID, s.config.DefaultPriceOnline, s.config.DefaultPriceInPerson)
			return &fallback, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pricing")
	}
	return policy, nil
}

// Set stores the actor's price table. Existing bookings keep their
// snapshotted prices.
func (s *PricingService) Set(ctx context.Context, actor models.ActorContext, req SetPricingRequest) (*models.PricingPolicy, error) {
	if !actor.Role.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers manage pricing")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "prices must be positive")
	}
	policy := &models.PricingPolicy{
		TeacherID:     actor.UserID,
		PriceOnline:   req.PriceOnline,
		PriceInPerson: req.PriceInPerson,
	}
	if err := s.repo.Upsert(ctx, policy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save pricing")
	}
	return policy, nil
}
