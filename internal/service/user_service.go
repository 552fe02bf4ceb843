package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// UserService covers admin account management.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// Delete removes a user and all their dependent rows. Admin only; admins
// cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor models.ActorContext, userID string) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin access required")
	}
	if actor.UserID == userID {
		return appErrors.Clone(appErrors.ErrValidation, "cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.logger.Info("user deleted", zap.String("user_id", userID), zap.String("deleted_by", actor.UserID))
	return nil
}
