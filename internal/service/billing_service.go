package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

type balanceRepository interface {
	Get(ctx context.Context, userID string) (*models.Balance, error)
	Deposit(ctx context.Context, userID string, amount float64) error
	Withdraw(ctx context.Context, userID string, amount float64) error
}

// AmountRequest carries a single positive money amount.
type AmountRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// BillingService exposes the internal ledger: balance reads, top-ups and
// teacher withdrawals. Settlement credits and booking debits go through the
// booking flow, not through this service.
type BillingService struct {
	repo      balanceRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBillingService constructs a BillingService.
func NewBillingService(repo balanceRepository, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{repo: repo, validator: validate, logger: logger}
}

// GetBalance returns the actor's current balance.
func (s *BillingService) GetBalance(ctx context.Context, actor models.ActorContext) (*models.Balance, error) {
	balance, err := s.repo.Get(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}
	return balance, nil
}

// Deposit tops up the actor's balance.
func (s *BillingService) Deposit(ctx context.Context, actor models.ActorContext, req AmountRequest) (*models.Balance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "amount must be positive")
	}
	if err := s.repo.Deposit(ctx, actor.UserID, req.Amount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deposit")
	}
	return s.GetBalance(ctx, actor)
}

// Withdraw pays out earned funds. Only teachers withdraw; the amount must
// be covered by the current balance.
func (s *BillingService) Withdraw(ctx context.Context, actor models.ActorContext, req AmountRequest) (*models.Balance, error) {
	if !actor.Role.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can withdraw")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "amount must be positive")
	}
	if err := s.repo.Withdraw(ctx, actor.UserID, req.Amount); err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) {
			return nil, typed
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw")
	}
	return s.GetBalance(ctx, actor)
}
