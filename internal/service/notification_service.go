package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elite42/reservation-notifier/internal/domain"
	"github.com/elite42/reservation-notifier/internal/repository"
)

const cancelReason = "cancelled due to reservation cancellation"

// NotificationService serves the support-facing read and cancellation
// operations. Notification creation happens in external workflows; this
// subsystem only queries and, on reservation cancellation, withdraws
// still-pending deliveries.
type NotificationService struct {
	notifications repository.NotificationRepository
	queue         repository.QueueRepository
	attempts      repository.AttemptRepository
	logger        *zap.Logger
	now           func() time.Time
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	queue repository.QueueRepository,
	attempts repository.AttemptRepository,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		queue:         queue,
		attempts:      attempts,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	return s.notifications.GetByID(ctx, id)
}

func (s *NotificationService) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	return s.notifications.List(ctx, params)
}

// History returns a reservation's notifications, newest first, for support
// and debugging; failed notifications stay queryable with their recorded
// error.
func (s *NotificationService) History(ctx context.Context, reservationID string) ([]domain.Notification, error) {
	return s.notifications.ListByReservation(ctx, reservationID)
}

func (s *NotificationService) Attempts(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	if s.attempts == nil {
		return nil, nil
	}
	return s.attempts.GetByNotificationID(ctx, notificationID)
}

// CancelScheduled withdraws a reservation's undelivered notifications, e.g.
// when the reservation itself is cancelled. Only still-pending queue items
// are failed; claimed and terminal items are untouched. Returns the number of
// withdrawn deliveries.
func (s *NotificationService) CancelScheduled(ctx context.Context, reservationID string) (int, error) {
	notifications, err := s.notifications.ListByReservation(ctx, reservationID)
	if err != nil {
		return 0, fmt.Errorf("failed to list reservation notifications: %w", err)
	}

	ids := make([]string, 0, len(notifications))
	for i := range notifications {
		if notifications[i].Status.IsTerminal() {
			continue
		}
		ids = append(ids, notifications[i].ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	affected, err := s.queue.CancelPendingByNotificationIDs(ctx, ids, cancelReason, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending queue items: %w", err)
	}

	cancelled := 0
	for _, id := range ids {
		if err := s.notifications.MarkFailed(ctx, id, cancelReason); err != nil {
			// Lost against the processor: the item was claimed and delivered
			// between the list and the update. Leave it be.
			s.logger.Info("notification already settled during cancellation",
				zap.String("notificationId", id),
				zap.Error(err),
			)
			continue
		}
		cancelled++
	}

	s.logger.Info("scheduled notifications cancelled",
		zap.String("reservationId", reservationID),
		zap.Int64("queueItemsWithdrawn", affected),
		zap.Int("notificationsCancelled", cancelled),
	)

	return cancelled, nil
}
