package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lektorek-app/lektorek-api/internal/models"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

const defaultNotificationLimit = 50

// NotificationService persists in-app notifications and runs the async
// dispatcher that turns booking events into messages. Delivery is
// at-least-once: a failed write is retried by the queue, and duplicates are
// acceptable.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs the service and its dispatch queue.
// Call Start before enqueueing and Stop on shutdown.
func NewNotificationService(repo notificationRepository, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handleEvent, cfg)
	return s
}

// Start launches the dispatcher workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatcher.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// QueueDepth reports the dispatcher backlog, exposed as a metric.
func (s *NotificationService) QueueDepth() int {
	return s.queue.Depth()
}

// Dispatch enqueues a booking event for async delivery. The caller has
// already committed; failures are logged and dropped rather than propagated.
func (s *NotificationService) Dispatch(event models.BookingEvent) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(event.Kind),
		Payload: event,
	})
	if err != nil {
		s.logger.Warn("notification dropped", zap.String("booking_id", event.BookingID), zap.Error(err))
	}
}

func (s *NotificationService) handleEvent(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.BookingEvent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	notification := &models.Notification{
		UserID:  event.RecipientID,
		Message: renderMessage(event),
	}
	if event.SenderID != "" {
		senderID := event.SenderID
		notification.SenderID = &senderID
	}
	return s.repo.Create(ctx, notification)
}

func renderMessage(event models.BookingEvent) string {
	mode := "online"
	if event.LessonMode == models.LessonInPerson {
		mode = "in person"
	}
	switch event.Kind {
	case models.EventBookingCreated:
		return fmt.Sprintf("%s booked a lesson (%s) on %s at %s", event.SenderName, mode, event.BookingDate, event.TimeSlot)
	case models.EventBookingCancelled:
		msg := fmt.Sprintf("%s cancelled the lesson on %s at %s", event.SenderName, event.BookingDate, event.TimeSlot)
		if event.Reason != "" {
			msg += ": " + event.Reason
		}
		return msg
	case models.EventStatusChanged:
		return fmt.Sprintf("lesson on %s at %s was marked %s", event.BookingDate, event.TimeSlot, event.NewStatus)
	}
	return fmt.Sprintf("booking %s updated", event.BookingID)
}

// List returns the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor models.ActorContext, unreadOnly bool) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, actor.UserID, unreadOnly, defaultNotificationLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.ActorContext, id string) error {
	if err := s.repo.MarkRead(ctx, id, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}
