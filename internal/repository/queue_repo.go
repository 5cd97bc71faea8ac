package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/elite42/reservation-notifier/internal/domain"
)

type QueueRepository interface {
	Create(ctx context.Context, item *domain.QueueItem) error
	GetByID(ctx context.Context, id string) (*domain.QueueItem, error)
	FetchDue(ctx context.Context, now time.Time, limit int) ([]domain.QueueItem, error)
	Claim(ctx context.Context, id string, now time.Time) (*domain.QueueItem, error)
	Requeue(ctx context.Context, id string, processAfter time.Time, reason string) error
	MarkCompleted(ctx context.Context, id string, processedAt time.Time) error
	MarkFailed(ctx context.Context, id string, reason string, processedAt time.Time) error
	CancelPendingByNotificationIDs(ctx context.Context, notificationIDs []string, reason string, processedAt time.Time) (int64, error)
	ReclaimStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[domain.QueueStatus]int64, error)
}

type GormQueueRepo struct {
	db *gorm.DB
}

func NewGormQueueRepo(db *gorm.DB) *GormQueueRepo {
	return &GormQueueRepo{db: db}
}

func (r *GormQueueRepo) Create(ctx context.Context, item *domain.QueueItem) error {
	model := queueItemModelFromDomain(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if item != nil {
		*item = *queueItemModelToDomain(model)
	}
	return nil
}

func (r *GormQueueRepo) GetByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	var model QueueItemModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return queueItemModelToDomain(&model), nil
}

// FetchDue selects eligible items: pending, past their eligibility gate, with
// attempts remaining. Ordering is priority ascending then FIFO within a
// priority band; it is a selection-time preference, not a completion-order
// guarantee.
func (r *GormQueueRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]domain.QueueItem, error) {
	var models []QueueItemModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND process_after <= ? AND attempts < max_attempts", domain.QueuePending, now).
		Order("priority ASC").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	items := make([]domain.QueueItem, 0, len(models))
	for i := range models {
		items = append(items, *queueItemModelToDomain(&models[i]))
	}

	return items, nil
}

// Claim atomically transitions an item from pending to processing, bumping
// attempts and stamping lastAttempt. The update is predicated on the status
// still being pending at write time, so of two overlapping drain cycles only
// one wins the row; the loser receives (nil, nil) and must skip the item.
// This conditional update is the pipeline's sole concurrency-safety mechanism.
func (r *GormQueueRepo) Claim(ctx context.Context, id string, now time.Time) (*domain.QueueItem, error) {
	result := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("id = ? AND status = ?", id, domain.QueuePending).
		Updates(map[string]any{
			"status":       domain.QueueProcessing,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_attempt": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// Requeue returns a claimed item to the pending pool with a new eligibility
// gate after a retryable failure.
func (r *GormQueueRepo) Requeue(ctx context.Context, id string, processAfter time.Time, reason string) error {
	result := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("id = ? AND status = ?", id, domain.QueueProcessing).
		Updates(map[string]any{
			"status":        domain.QueuePending,
			"process_after": processAfter,
			"error_message": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormQueueRepo) MarkCompleted(ctx context.Context, id string, processedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("id = ? AND status IN ?", id, []domain.QueueStatus{domain.QueuePending, domain.QueueProcessing}).
		Updates(map[string]any{
			"status":       domain.QueueCompleted,
			"processed_at": processedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormQueueRepo) MarkFailed(ctx context.Context, id string, reason string, processedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("id = ? AND status IN ?", id, []domain.QueueStatus{domain.QueuePending, domain.QueueProcessing}).
		Updates(map[string]any{
			"status":        domain.QueueFailed,
			"error_message": reason,
			"processed_at":  processedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// CancelPendingByNotificationIDs fails still-pending items for the given
// notifications, e.g. when the underlying reservation is cancelled. Claimed
// and terminal items are untouched.
func (r *GormQueueRepo) CancelPendingByNotificationIDs(ctx context.Context, notificationIDs []string, reason string, processedAt time.Time) (int64, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("notification_id IN ? AND status = ?", notificationIDs, domain.QueuePending).
		Updates(map[string]any{
			"status":        domain.QueueFailed,
			"error_message": reason,
			"processed_at":  processedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

const staleClaimReason = "claim abandoned, worker did not finish"

// ReclaimStale releases items stuck in processing, which happens when a
// worker dies between claiming an item and writing its terminal state. Items
// whose last attempt predates the cutoff go back to pending when they still
// have attempts left, otherwise they are failed outright so they do not cycle
// through the pool forever. Returns the number of items touched.
func (r *GormQueueRepo) ReclaimStale(ctx context.Context, cutoff time.Time, now time.Time) (int64, error) {
	requeued := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("status = ? AND last_attempt < ? AND attempts < max_attempts", domain.QueueProcessing, cutoff).
		Updates(map[string]any{
			"status":        domain.QueuePending,
			"process_after": now,
			"error_message": staleClaimReason,
		})
	if requeued.Error != nil {
		return 0, requeued.Error
	}

	failed := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Where("status = ? AND last_attempt < ? AND attempts >= max_attempts", domain.QueueProcessing, cutoff).
		Updates(map[string]any{
			"status":        domain.QueueFailed,
			"error_message": staleClaimReason,
			"processed_at":  now,
		})
	if failed.Error != nil {
		return requeued.RowsAffected, failed.Error
	}

	return requeued.RowsAffected + failed.RowsAffected, nil
}

// CountByStatus returns queue depth per status for observability.
func (r *GormQueueRepo) CountByStatus(ctx context.Context) (map[domain.QueueStatus]int64, error) {
	type statusCount struct {
		Status domain.QueueStatus `gorm:"column:status"`
		Count  int64              `gorm:"column:count"`
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&QueueItemModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.QueueStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}
