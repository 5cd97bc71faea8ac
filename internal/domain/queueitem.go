package domain

import "time"

// MaxAttempts is the bounded attempt budget for one queue item. Exhaustion
// occurs after the third failed attempt.
const MaxAttempts = 3

// QueueStatus represents the processing state of a queue item.
type QueueStatus string

const (
	QueuePending    QueueStatus = "PENDING"
	QueueProcessing QueueStatus = "PROCESSING"
	QueueCompleted  QueueStatus = "COMPLETED"
	QueueFailed     QueueStatus = "FAILED"
)

func (s QueueStatus) String() string { return string(s) }

func (s QueueStatus) IsValid() bool {
	switch s {
	case QueuePending, QueueProcessing, QueueCompleted, QueueFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the queue item reached a final, immutable state.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueCompleted || s == QueueFailed
}

// QueueItem is the persisted delivery-attempt tracker for one notification,
// 1:1 with a Notification. Items are never deleted; terminal rows are kept for
// audit. The pending -> processing transition is an atomic conditional update
// (the claim) and is the sole concurrency-safety mechanism of the pipeline.
type QueueItem struct {
	ID             string
	NotificationID string
	Priority       int
	Attempts       int
	MaxAttempts    int
	LastAttempt    *time.Time
	ProcessAfter   time.Time
	Status         QueueStatus
	ErrorMessage   *string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AttemptBudget returns the effective attempt ceiling for the item.
func (q *QueueItem) AttemptBudget() int {
	if q.MaxAttempts <= 0 {
		return MaxAttempts
	}
	return q.MaxAttempts
}

// Exhausted reports whether no attempts remain.
func (q *QueueItem) Exhausted() bool {
	return q.Attempts >= q.AttemptBudget()
}

// DeliveryAttempt records a single send attempt against a provider, kept for
// support and debugging.
type DeliveryAttempt struct {
	ID             string
	NotificationID string
	QueueItemID    string
	AttemptNumber  int
	StatusCode     *int
	ResponseBody   *string
	Error          *string
	CreatedAt      time.Time
}
