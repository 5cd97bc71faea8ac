package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elite42/reservation-notifier/internal/adapter"
	"github.com/elite42/reservation-notifier/internal/dispatch"
	"github.com/elite42/reservation-notifier/internal/domain"
	"github.com/elite42/reservation-notifier/internal/observability"
	"github.com/elite42/reservation-notifier/internal/ratelimit"
	"github.com/elite42/reservation-notifier/internal/repository"
)

const (
	defaultBatchSize   = 50
	defaultConcurrency = 5
	defaultSendTimeout = 10 * time.Second
	defaultStaleAfter  = 15 * time.Minute

	reasonRecordNotFound = "notification record not found"
)

// DrainSummary aggregates one drain cycle's counters for the logging and
// metrics layer.
type DrainSummary struct {
	Processed int
	Sent      int
	Retried   int
	Failed    int
	Skipped   int
	Errors    []ItemError
}

// ItemError records one item's failure without aborting the batch.
type ItemError struct {
	QueueItemID    string
	NotificationID string
	Reason         string
}

// Processor runs drain cycles over the notification queue: select eligible
// items, claim, dispatch through the registry, interpret the result, update
// state. It is safe to invoke concurrently; overlapping cycles are resolved
// per item by the atomic claim.
type Processor struct {
	queue         repository.QueueRepository
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	registry      *dispatch.Registry
	rateLimiter   ratelimit.RateLimiter
	logger        *zap.Logger
	metrics       *observability.Metrics

	batchSize   int
	concurrency int
	sendTimeout time.Duration
	staleAfter  time.Duration
	backoff     func(attemptsSoFar int) time.Duration
	now         func() time.Time
}

// ProcessorOption customises the processor.
type ProcessorOption func(*Processor)

func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithConcurrency(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithSendTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.sendTimeout = d
		}
	}
}

// WithStaleAfter sets how long an item may sit in processing before a drain
// cycle reclaims it as abandoned.
func WithStaleAfter(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

// WithBackoff overrides the retry delay policy, primarily for testing.
func WithBackoff(fn func(attemptsSoFar int) time.Duration) ProcessorOption {
	return func(p *Processor) {
		if fn != nil {
			p.backoff = fn
		}
	}
}

// WithClock overrides the clock, primarily for testing.
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func WithMetrics(metrics *observability.Metrics) ProcessorOption {
	return func(p *Processor) {
		p.metrics = metrics
	}
}

func WithRateLimiter(limiter ratelimit.RateLimiter) ProcessorOption {
	return func(p *Processor) {
		p.rateLimiter = limiter
	}
}

func NewProcessor(
	queue repository.QueueRepository,
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	registry *dispatch.Registry,
	logger *zap.Logger,
	opts ...ProcessorOption,
) (*Processor, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue repository is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("dispatch registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Processor{
		queue:         queue,
		notifications: notifications,
		attempts:      attempts,
		registry:      registry,
		logger:        logger,
		batchSize:     defaultBatchSize,
		concurrency:   defaultConcurrency,
		sendTimeout:   defaultSendTimeout,
		staleAfter:    defaultStaleAfter,
		backoff:       Backoff,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// DrainQueue executes one drain cycle. Per-item failures are recorded in the
// summary and never abort the cycle; only a queue-store read failure returns
// an error.
func (p *Processor) DrainQueue(ctx context.Context) (DrainSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := p.now()

	// Items abandoned in processing by a dead worker would otherwise never be
	// selected again. A failed sweep is logged and the cycle continues.
	if reclaimed, err := p.queue.ReclaimStale(ctx, start.Add(-p.staleAfter), start); err != nil {
		p.logger.Error("failed to reclaim stale queue items", zap.Error(err))
	} else if reclaimed > 0 {
		p.logger.Warn("reclaimed stale queue items", zap.Int64("count", reclaimed))
	}

	items, err := p.queue.FetchDue(ctx, start, p.batchSize)
	if err != nil {
		return DrainSummary{}, fmt.Errorf("failed to fetch due queue items: %w", err)
	}

	var (
		mu      sync.Mutex
		summary DrainSummary
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i := range items {
		item := items[i]
		g.Go(func() error {
			outcome := p.processItem(groupCtx, item)

			mu.Lock()
			defer mu.Unlock()
			summary.Processed++
			switch outcome.kind {
			case outcomeSent:
				summary.Sent++
			case outcomeRetried:
				summary.Retried++
			case outcomeFailed:
				summary.Failed++
			case outcomeSkipped:
				summary.Skipped++
			}
			if outcome.err != "" {
				summary.Errors = append(summary.Errors, ItemError{
					QueueItemID:    item.ID,
					NotificationID: item.NotificationID,
					Reason:         outcome.err,
				})
			}
			return nil
		})
	}

	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()

	if p.metrics != nil {
		p.metrics.ObserveDrainCycle(p.now().Sub(start), summary.Processed)
	}

	p.logger.Info("drain cycle finished",
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("retried", summary.Retried),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, nil
}

type outcomeKind int

const (
	outcomeSkipped outcomeKind = iota
	outcomeSent
	outcomeRetried
	outcomeFailed
)

type itemOutcome struct {
	kind outcomeKind
	err  string
}

func (p *Processor) processItem(ctx context.Context, item domain.QueueItem) itemOutcome {
	log := p.logger.With(
		zap.String("queueItemId", item.ID),
		zap.String("notificationId", item.NotificationID),
	)

	notification, err := p.notifications.GetByID(ctx, item.NotificationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Orphaned item: permanent, no retry.
			if markErr := p.queue.MarkFailed(ctx, item.ID, reasonRecordNotFound, p.now()); markErr != nil {
				log.Error("failed to mark orphaned queue item", zap.Error(markErr))
				return itemOutcome{kind: outcomeFailed, err: markErr.Error()}
			}
			log.Warn("queue item references missing notification")
			return itemOutcome{kind: outcomeFailed, err: reasonRecordNotFound}
		}
		log.Error("failed to load notification", zap.Error(err))
		return itemOutcome{kind: outcomeSkipped, err: err.Error()}
	}

	// The notification reached a terminal state outside this item's control:
	// complete the item as a no-op.
	if notification.Status.IsTerminal() {
		if err := p.queue.MarkCompleted(ctx, item.ID, p.now()); err != nil {
			log.Error("failed to complete no-op queue item", zap.Error(err))
			return itemOutcome{kind: outcomeSkipped, err: err.Error()}
		}
		return itemOutcome{kind: outcomeSkipped}
	}

	claimed, err := p.queue.Claim(ctx, item.ID, p.now())
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return itemOutcome{kind: outcomeSkipped, err: err.Error()}
	}
	if claimed == nil {
		// Another worker won the conditional update.
		return itemOutcome{kind: outcomeSkipped}
	}

	channelName := strings.ToLower(notification.Channel.String())
	if p.metrics != nil {
		p.metrics.IncSendInFlight(channelName)
		defer p.metrics.DecSendInFlight(channelName)
	}

	if p.rateLimiter != nil {
		if err := p.rateLimiter.Wait(ctx, channelName); err != nil {
			// Treat an interrupted wait as a retryable failure so the item is
			// not stranded in processing.
			return p.handleFailure(ctx, log, claimed, notification, &adapter.Error{
				Message:   "rate limiter wait interrupted",
				Transient: true,
				Cause:     err,
			})
		}
	}

	sendStart := p.now()
	result, sendErr := p.send(ctx, notification)
	if p.metrics != nil {
		p.metrics.ObserveSendDuration(channelName, p.now().Sub(sendStart))
	}

	p.recordAttempt(ctx, log, claimed, result, sendErr)

	if sendErr == nil {
		return p.handleSuccess(ctx, log, claimed, notification, result)
	}
	return p.handleFailure(ctx, log, claimed, notification, sendErr)
}

// send resolves the adapter and invokes it under the per-send timeout. A
// panicking adapter is converted into a retryable adapter error so one broken
// provider cannot crash the drain cycle.
func (p *Processor) send(ctx context.Context, notification *domain.Notification) (result *adapter.Result, err error) {
	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &adapter.Error{
				Message:   fmt.Sprintf("adapter panic: %v", r),
				Transient: true,
			}
		}
	}()

	a := p.registry.Resolve(notification.Channel)
	return a.Send(sendCtx, *notification)
}

func (p *Processor) handleSuccess(
	ctx context.Context,
	log *zap.Logger,
	item *domain.QueueItem,
	notification *domain.Notification,
	result *adapter.Result,
) itemOutcome {
	now := p.now()

	messageID := ""
	if result != nil {
		messageID = strings.TrimSpace(result.MessageID)
	}

	settled := false
	if err := p.notifications.MarkSent(ctx, notification.ID, now, messageID); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			log.Error("failed to mark notification as sent", zap.Error(err))
			return itemOutcome{kind: outcomeSkipped, err: err.Error()}
		}
		// The notification reached a terminal state mid-flight, typically a
		// cancellation racing the send. The queue item still completes so it
		// is not left in processing with no path back to pending.
		settled = true
		log.Warn("notification already settled, completing queue item")
	}
	if err := p.queue.MarkCompleted(ctx, item.ID, now); err != nil && !errors.Is(err, domain.ErrConflict) {
		log.Error("failed to complete queue item after send", zap.Error(err))
		return itemOutcome{kind: outcomeSkipped, err: err.Error()}
	}

	if settled {
		return itemOutcome{kind: outcomeSkipped}
	}

	if p.metrics != nil {
		p.metrics.IncNotificationSent(strings.ToLower(notification.Channel.String()))
	}

	return itemOutcome{kind: outcomeSent}
}

func (p *Processor) handleFailure(
	ctx context.Context,
	log *zap.Logger,
	item *domain.QueueItem,
	notification *domain.Notification,
	sendErr error,
) itemOutcome {
	reason := sendErr.Error()
	channelName := strings.ToLower(notification.Channel.String())
	attemptsSoFar := item.Attempts

	permanent := adapter.IsPermanent(sendErr)
	if !permanent && attemptsSoFar < item.AttemptBudget() {
		retryAt := p.now().Add(p.backoff(attemptsSoFar))
		if err := p.queue.Requeue(ctx, item.ID, retryAt, reason); err != nil {
			log.Error("failed to requeue item for retry", zap.Error(err))
			return itemOutcome{kind: outcomeSkipped, err: err.Error()}
		}

		if p.metrics != nil {
			p.metrics.IncRetryScheduled(channelName)
		}
		log.Info("send failed, retry scheduled",
			zap.Int("attempts", attemptsSoFar),
			zap.Time("retryAt", retryAt),
			zap.String("reason", reason),
		)
		return itemOutcome{kind: outcomeRetried, err: reason}
	}

	now := p.now()
	if err := p.queue.MarkFailed(ctx, item.ID, reason, now); err != nil && !errors.Is(err, domain.ErrConflict) {
		log.Error("failed to mark queue item as failed", zap.Error(err))
		return itemOutcome{kind: outcomeSkipped, err: err.Error()}
	}
	// A conflict means the notification already settled elsewhere; the queue
	// item is failed either way, so the write is skipped rather than retried.
	if err := p.notifications.MarkFailed(ctx, notification.ID, reason); err != nil && !errors.Is(err, domain.ErrConflict) {
		log.Error("failed to mark notification as failed", zap.Error(err))
		return itemOutcome{kind: outcomeSkipped, err: err.Error()}
	}

	if p.metrics != nil {
		failureReason := "retry_exhausted"
		if permanent {
			failureReason = "permanent_error"
		}
		p.metrics.IncNotificationFailed(channelName, failureReason)
	}
	log.Warn("notification failed permanently",
		zap.Int("attempts", attemptsSoFar),
		zap.Bool("permanent", permanent),
		zap.String("reason", reason),
	)

	return itemOutcome{kind: outcomeFailed, err: reason}
}

// recordAttempt persists the attempt audit row; a failure here is logged but
// never alters the delivery outcome.
func (p *Processor) recordAttempt(
	ctx context.Context,
	log *zap.Logger,
	item *domain.QueueItem,
	result *adapter.Result,
	sendErr error,
) {
	if p.attempts == nil {
		return
	}

	var statusCode *int
	var responseBody *string
	var attemptErr *string

	if result != nil {
		if result.StatusCode > 0 {
			value := result.StatusCode
			statusCode = &value
		}
		if body := strings.TrimSpace(result.Body); body != "" {
			responseBody = &body
		}
	}
	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value

		var adapterErr *adapter.Error
		if errors.As(sendErr, &adapterErr) && adapterErr.StatusCode > 0 && statusCode == nil {
			code := adapterErr.StatusCode
			statusCode = &code
		}
	}

	attempt := &domain.DeliveryAttempt{
		ID:             uuid.NewString(),
		NotificationID: item.NotificationID,
		QueueItemID:    item.ID,
		AttemptNumber:  item.Attempts,
		StatusCode:     statusCode,
		ResponseBody:   responseBody,
		Error:          attemptErr,
		CreatedAt:      p.now().UTC(),
	}

	if err := p.attempts.Create(ctx, attempt); err != nil {
		log.Error("failed to record delivery attempt", zap.Error(err))
	}
}
