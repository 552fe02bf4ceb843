package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lektorek-app/lektorek-api/internal/models"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a notification for a user.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	notification.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO notifications (id, user_id, sender_id, message, is_read, created_at)
		VALUES (:id, :user_id, :sender_id, :message, :is_read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT id, user_id, sender_id, message, is_read, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flags a single notification as read. Scoping by user id keeps
// one user from flipping another's notifications.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
