package service

import (
	"context"
	"time"

	"github.com/elite42/reservation-notifier/internal/adapter"
	"github.com/elite42/reservation-notifier/internal/domain"
	"github.com/elite42/reservation-notifier/internal/repository"
)

type fakeQueueRepo struct {
	createFn        func(ctx context.Context, item *domain.QueueItem) error
	getByIDFn       func(ctx context.Context, id string) (*domain.QueueItem, error)
	fetchDueFn      func(ctx context.Context, now time.Time, limit int) ([]domain.QueueItem, error)
	claimFn         func(ctx context.Context, id string, now time.Time) (*domain.QueueItem, error)
	requeueFn       func(ctx context.Context, id string, processAfter time.Time, reason string) error
	markCompletedFn func(ctx context.Context, id string, processedAt time.Time) error
	markFailedFn    func(ctx context.Context, id string, reason string, processedAt time.Time) error
	cancelPendingFn func(ctx context.Context, notificationIDs []string, reason string, processedAt time.Time) (int64, error)
	reclaimStaleFn  func(ctx context.Context, cutoff time.Time, now time.Time) (int64, error)
}

func (f *fakeQueueRepo) Create(ctx context.Context, item *domain.QueueItem) error {
	if f.createFn != nil {
		return f.createFn(ctx, item)
	}
	return nil
}

func (f *fakeQueueRepo) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeQueueRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]domain.QueueItem, error) {
	if f.fetchDueFn != nil {
		return f.fetchDueFn(ctx, now, limit)
	}
	return nil, nil
}

func (f *fakeQueueRepo) Claim(ctx context.Context, id string, now time.Time) (*domain.QueueItem, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx, id, now)
	}
	return nil, nil
}

func (f *fakeQueueRepo) Requeue(ctx context.Context, id string, processAfter time.Time, reason string) error {
	if f.requeueFn != nil {
		return f.requeueFn(ctx, id, processAfter, reason)
	}
	return nil
}

func (f *fakeQueueRepo) MarkCompleted(ctx context.Context, id string, processedAt time.Time) error {
	if f.markCompletedFn != nil {
		return f.markCompletedFn(ctx, id, processedAt)
	}
	return nil
}

func (f *fakeQueueRepo) MarkFailed(ctx context.Context, id string, reason string, processedAt time.Time) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, reason, processedAt)
	}
	return nil
}

func (f *fakeQueueRepo) CancelPendingByNotificationIDs(ctx context.Context, notificationIDs []string, reason string, processedAt time.Time) (int64, error) {
	if f.cancelPendingFn != nil {
		return f.cancelPendingFn(ctx, notificationIDs, reason, processedAt)
	}
	return 0, nil
}

func (f *fakeQueueRepo) ReclaimStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error) {
	if f.reclaimStaleFn != nil {
		return f.reclaimStaleFn(ctx, cutoff, now)
	}
	return 0, nil
}

func (f *fakeQueueRepo) CountByStatus(_ context.Context) (map[domain.QueueStatus]int64, error) {
	return nil, nil
}

type fakeNotificationRepo struct {
	createFn            func(ctx context.Context, n *domain.Notification) error
	getByIDFn           func(ctx context.Context, id string) (*domain.Notification, error)
	listFn              func(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	listByReservationFn func(ctx context.Context, reservationID string) ([]domain.Notification, error)
	markSentFn          func(ctx context.Context, id string, sentAt time.Time, providerMessageID string) error
	markFailedFn        func(ctx context.Context, id string, reason string) error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeNotificationRepo) ListByReservation(ctx context.Context, reservationID string) ([]domain.Notification, error) {
	if f.listByReservationFn != nil {
		return f.listByReservationFn(ctx, reservationID)
	}
	return nil, nil
}

func (f *fakeNotificationRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, providerMessageID string) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id, sentAt, providerMessageID)
	}
	return nil
}

func (f *fakeNotificationRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, reason)
	}
	return nil
}

func (f *fakeNotificationRepo) MarkQueued(_ context.Context, _ string) error {
	return nil
}

type fakeAttemptRepo struct {
	createFn func(ctx context.Context, a *domain.DeliveryAttempt) error
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAttemptRepo) GetByNotificationID(_ context.Context, _ string) ([]domain.DeliveryAttempt, error) {
	return nil, nil
}

type fakeAdapter struct {
	sendFn func(ctx context.Context, n domain.Notification) (*adapter.Result, error)
}

func (f *fakeAdapter) Send(ctx context.Context, n domain.Notification) (*adapter.Result, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, n)
	}
	return &adapter.Result{}, nil
}

type fakeTemplateRepo struct {
	findFn func(ctx context.Context, merchantID *string, code domain.NotificationType, channel domain.Channel, locale string) (*domain.Template, error)
}

func (f *fakeTemplateRepo) Create(_ context.Context, _ *domain.Template) error {
	return nil
}

func (f *fakeTemplateRepo) Find(ctx context.Context, merchantID *string, code domain.NotificationType, channel domain.Channel, locale string) (*domain.Template, error) {
	if f.findFn != nil {
		return f.findFn(ctx, merchantID, code, channel, locale)
	}
	return nil, nil
}
