package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/elite42/reservation-notifier/internal/adapter"
	"github.com/elite42/reservation-notifier/internal/dispatch"
	"github.com/elite42/reservation-notifier/internal/domain"
)

var frozenNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func pendingItem(id, notificationID string, attempts int) domain.QueueItem {
	return domain.QueueItem{
		ID:             id,
		NotificationID: notificationID,
		Priority:       5,
		Attempts:       attempts,
		MaxAttempts:    domain.MaxAttempts,
		ProcessAfter:   frozenNow.Add(-time.Minute),
		Status:         domain.QueuePending,
		CreatedAt:      frozenNow.Add(-time.Hour),
	}
}

func queuedNotification(id string, channel domain.Channel) *domain.Notification {
	return &domain.Notification{
		ID:            id,
		ReservationID: "res-1",
		Type:          domain.TypeReservationConfirmed,
		Channel:       channel,
		Recipient:     "guest@example.com",
		Body:          "See you soon",
		Status:        domain.NotificationQueued,
	}
}

// claimFromPending simulates the repository's conditional update against an
// in-memory item.
func claimFromPending(item domain.QueueItem) func(ctx context.Context, id string, now time.Time) (*domain.QueueItem, error) {
	var mu sync.Mutex
	claimed := false
	return func(_ context.Context, id string, now time.Time) (*domain.QueueItem, error) {
		mu.Lock()
		defer mu.Unlock()
		if id != item.ID || claimed {
			return nil, nil
		}
		claimed = true
		out := item
		out.Status = domain.QueueProcessing
		out.Attempts++
		out.LastAttempt = &now
		return &out, nil
	}
}

func newTestProcessor(t *testing.T, queue *fakeQueueRepo, notifications *fakeNotificationRepo, registry *dispatch.Registry, opts ...ProcessorOption) *Processor {
	t.Helper()

	opts = append(opts, WithClock(func() time.Time { return frozenNow }))
	p, err := NewProcessor(queue, notifications, &fakeAttemptRepo{}, registry, zap.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	return p
}

func TestDrainQueueSuccessfulSend(t *testing.T) {
	t.Parallel()

	// Scenario: adapter succeeds with a provider message id; the notification
	// is marked sent and the queue item completed.
	item := pendingItem("q1", "n1", 0)

	var markedSentID, markedMessageID string
	var completedID string

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, limit int) ([]domain.QueueItem, error) {
			if limit != defaultBatchSize {
				t.Errorf("limit = %d, want %d", limit, defaultBatchSize)
			}
			return []domain.QueueItem{item}, nil
		},
		claimFn: claimFromPending(item),
		markCompletedFn: func(_ context.Context, id string, _ time.Time) error {
			completedID = id
			return nil
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Notification, error) {
			return queuedNotification(id, domain.ChannelEmail), nil
		},
		markSentFn: func(_ context.Context, id string, sentAt time.Time, providerMessageID string) error {
			markedSentID = id
			markedMessageID = providerMessageID
			if !sentAt.Equal(frozenNow) {
				t.Errorf("sentAt = %s, want %s", sentAt, frozenNow)
			}
			return nil
		},
	}
	registry := dispatch.NewRegistry(dispatch.WithAdapter(domain.ChannelEmail, &fakeAdapter{
		sendFn: func(_ context.Context, _ domain.Notification) (*adapter.Result, error) {
			return &adapter.Result{MessageID: "abc123", StatusCode: 202}, nil
		},
	}))

	p := newTestProcessor(t, queue, notifications, registry)

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if summary.Processed != 1 || summary.Sent != 1 {
		t.Fatalf("summary = %+v, want processed=1 sent=1", summary)
	}
	if markedSentID != "n1" || markedMessageID != "abc123" {
		t.Fatalf("MarkSent(%q, %q), want n1/abc123", markedSentID, markedMessageID)
	}
	if completedID != "q1" {
		t.Fatalf("MarkCompleted(%q), want q1", completedID)
	}
}

func TestDrainQueueTransientFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	// Scenario: first attempt times out; the item returns to pending with
	// attempts=1 and processAfter = now + 2 minutes.
	item := pendingItem("q1", "n1", 0)

	var requeuedAt time.Time
	var requeueReason string

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return []domain.QueueItem{item}, nil
		},
		claimFn: claimFromPending(item),
		requeueFn: func(_ context.Context, id string, processAfter time.Time, reason string) error {
			if id != "q1" {
				t.Errorf("Requeue id = %q, want q1", id)
			}
			requeuedAt = processAfter
			requeueReason = reason
			return nil
		},
		markFailedFn: func(_ context.Context, id string, _ string, _ time.Time) error {
			t.Errorf("MarkFailed(%q) should not be called on first failure", id)
			return nil
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Notification, error) {
			return queuedNotification(id, domain.ChannelEmail), nil
		},
		markFailedFn: func(_ context.Context, id string, _ string) error {
			t.Errorf("notification MarkFailed(%q) should not be called on first failure", id)
			return nil
		},
	}
	registry := dispatch.NewRegistry(dispatch.WithAdapter(domain.ChannelEmail, &fakeAdapter{
		sendFn: func(_ context.Context, _ domain.Notification) (*adapter.Result, error) {
			return nil, &adapter.Error{Message: "smtp timeout", Transient: true}
		},
	}))

	p := newTestProcessor(t, queue, notifications, registry)

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if summary.Retried != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want retried=1 failed=0", summary)
	}
	if want := frozenNow.Add(2 * time.Minute); !requeuedAt.Equal(want) {
		t.Fatalf("processAfter = %s, want %s", requeuedAt, want)
	}
	if !strings.Contains(requeueReason, "smtp timeout") {
		t.Fatalf("requeue reason = %q, want the adapter failure", requeueReason)
	}
}

func TestDrainQueueExhaustionFailsBothRecords(t *testing.T) {
	t.Parallel()

	// Scenario: an item with attempts=2 and maxAttempts=3 fails again; the
	// third failed attempt exhausts the budget and both the queue item and
	// the notification become failed, permanently.
	item := pendingItem("q1", "n1", 2)

	var queueFailed, notificationFailed bool
	var failureReason string

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return []domain.QueueItem{item}, nil
		},
		claimFn: claimFromPending(item),
		requeueFn: func(_ context.Context, id string, _ time.Time, _ string) error {
			t.Errorf("Requeue(%q) should not be called when the budget is exhausted", id)
			return nil
		},
		markFailedFn: func(_ context.Context, _ string, reason string, processedAt time.Time) error {
			queueFailed = true
			failureReason = reason
			if !processedAt.Equal(frozenNow) {
				t.Errorf("processedAt = %s, want %s", processedAt, frozenNow)
			}
			return nil
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Notification, error) {
			return queuedNotification(id, domain.ChannelWhatsApp), nil
		},
		markFailedFn: func(_ context.Context, _ string, _ string) error {
			notificationFailed = true
			return nil
		},
	}
	registry := dispatch.NewRegistry(dispatch.WithAdapter(domain.ChannelWhatsApp, &fakeAdapter{
		sendFn: func(_ context.Context, _ domain.Notification) (*adapter.Result, error) {
			return nil, &adapter.Error{StatusCode: 503, Message: "service unavailable", Transient: true}
		},
	}))

	p := newTestProcessor(t, queue, notifications, registry)

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want failed=1", summary)
	}
	if !queueFailed || !notificationFailed {
		t.Fatalf("queueFailed=%v notificationFailed=%v, want both true", queueFailed, notificationFailed)
	}
	if !strings.Contains(failureReason, "service unavailable") {
		t.Fatalf("failure reason = %q, want adapter message", failureReason)
	}
}

func TestDrainQueueUnknownChannelFailsImmediately(t *testing.T) {
	t.Parallel()

	// An unregistered channel is a permanent failure on the first attempt; no
	// retry budget is consumed waiting for something that can never succeed.
	item := pendingItem("q1", "n1", 0)

	var queueFailed, notificationFailed bool

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return []domain.QueueItem{item}, nil
		},
		claimFn: claimFromPending(item),
		requeueFn: func(_ context.Context, id string, _ time.Time, _ string) error {
			t.Errorf("Requeue(%q) should not be called for a permanent failure", id)
			return nil
		},
		markFailedFn: func(_ context.Context, _ string, _ string, _ time.Time) error {
			queueFailed = true
			return nil
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Notification, error) {
			n := queuedNotification(id, domain.Channel("VIBER"))
			return n, nil
		},
		markFailedFn: func(_ context.Context, _ string, reason string) error {
			notificationFailed = true
			if !strings.Contains(reason, "unknown channel") {
				t.Errorf("reason = %q, want unknown channel", reason)
			}
			return nil
		},
	}

	p := newTestProcessor(t, queue, notifications, dispatch.NewRegistry())

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want failed=1", summary)
	}
	if !queueFailed || !notificationFailed {
		t.Fatalf("queueFailed=%v notificationFailed=%v, want both true", queueFailed, notificationFailed)
	}
}

func TestDrainQueueMissingNotificationIsPermanent(t *testing.T) {
	t.Parallel()

	item := pendingItem("q1", "n-gone", 0)

	var failReason string

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return []domain.QueueItem{item}, nil
		},
		claimFn: func(_ context.Context, id string, _ time.Time) (*domain.QueueItem, error) {
			t.Errorf("Claim(%q) should not be called for an orphaned item", id)
			return nil, nil
		},
		markFailedFn: func(_ context.Context, _ string, reason string, _ time.Time) error {
			failReason = reason
			return nil
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, _ string) (*domain.Notification, error) {
			return nil, domain.ErrNotFound
		},
	}

	p := newTestProcessor(t, queue, notifications, dispatch.NewRegistry())

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if summary.Failed != 1 {
		t.Fatalf("summary = %+v, want failed=1", summary)
	}
	if failReason != reasonRecordNotFound {
		t.Fatalf("reason = %q, want %q", failReason, reasonRecordNotFound)
	}
}

func TestDrainQueueTerminalNotificationCompletesNoOp(t *testing.T) {
	t.Parallel()

	item := pendingItem("q1", "n1", 0)

	var completed bool

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return []domain.QueueItem{item}, nil
		},
		claimFn: func(_ context.Context, id string, _ time.Time) (*domain.QueueItem, error) {
			t.Errorf("Claim(%q) should not be called for a terminal notification", id)
			return nil, nil
		},
		markCompletedFn: func(_ context.Context, _ string, _ time.Time) error {
			completed = true
			return nil
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Notification, error) {
			n := queuedNotification(id, domain.ChannelEmail)
			n.Status = domain.NotificationSent
			return n, nil
		},
	}

	p := newTestProcessor(t, queue, notifications, dispatch.NewRegistry())

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if !completed {
		t.Fatal("queue item should be completed as a no-op")
	}
	if summary.Sent != 0 || summary.Failed != 0 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want skipped=1 only", summary)
	}
}

func TestDrainQueueLostClaimSkipsItem(t *testing.T) {
	t.Parallel()

	// Another worker already holds the item: the conditional update affects
	// zero rows and this cycle must not dispatch.
	item := pendingItem("q1", "n1", 0)

	sendCalled := false

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return []domain.QueueItem{item}, nil
		},
		claimFn: func(_ context.Context, _ string, _ time.Time) (*domain.QueueItem, error) {
			return nil, nil
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Notification, error) {
			return queuedNotification(id, domain.ChannelEmail), nil
		},
	}
	registry := dispatch.NewRegistry(dispatch.WithAdapter(domain.ChannelEmail, &fakeAdapter{
		sendFn: func(_ context.Context, _ domain.Notification) (*adapter.Result, error) {
			sendCalled = true
			return &adapter.Result{}, nil
		},
	}))

	p := newTestProcessor(t, queue, notifications, registry)

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if sendCalled {
		t.Fatal("Send() must not be called when the claim is lost")
	}
	if summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want skipped=1", summary)
	}
}

func TestDrainQueueOneFailureDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	items := []domain.QueueItem{
		pendingItem("q1", "n1", 0),
		pendingItem("q2", "n2", 0),
		pendingItem("q3", "n3", 0),
	}

	var mu sync.Mutex
	sent := make([]string, 0, 2)

	claims := make(map[string]func(ctx context.Context, id string, now time.Time) (*domain.QueueItem, error), len(items))
	for _, item := range items {
		claims[item.ID] = claimFromPending(item)
	}

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return items, nil
		},
		claimFn: func(ctx context.Context, id string, now time.Time) (*domain.QueueItem, error) {
			return claims[id](ctx, id, now)
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Notification, error) {
			return queuedNotification(id, domain.ChannelPush), nil
		},
		markSentFn: func(_ context.Context, id string, _ time.Time, _ string) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, id)
			return nil
		},
	}
	registry := dispatch.NewRegistry(dispatch.WithAdapter(domain.ChannelPush, &fakeAdapter{
		sendFn: func(_ context.Context, n domain.Notification) (*adapter.Result, error) {
			if n.ID == "n2" {
				panic("push gateway client bug")
			}
			return &adapter.Result{MessageID: "ok-" + n.ID}, nil
		},
	}))

	p := newTestProcessor(t, queue, notifications, registry, WithConcurrency(1))

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if summary.Processed != 3 {
		t.Fatalf("processed = %d, want 3", summary.Processed)
	}
	if summary.Sent != 2 {
		t.Fatalf("sent = %d, want 2 (panicking item must not abort the batch)", summary.Sent)
	}
	if summary.Retried != 1 {
		t.Fatalf("retried = %d, want 1 (panic is a retryable adapter error)", summary.Retried)
	}
	if len(sent) != 2 {
		t.Fatalf("sent notifications = %v, want two", sent)
	}
}

func TestDrainQueueStoreReadFailureAbortsCycle(t *testing.T) {
	t.Parallel()

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return nil, errors.New("storage unavailable")
		},
	}

	p := newTestProcessor(t, queue, &fakeNotificationRepo{}, dispatch.NewRegistry())

	if _, err := p.DrainQueue(context.Background()); err == nil {
		t.Fatal("DrainQueue() expected error when the queue store is unavailable")
	}
}

func TestDrainQueueBackToBackCyclesAreIdempotent(t *testing.T) {
	t.Parallel()

	// With no newly-eligible items the second cycle must not touch anything.
	calls := 0
	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			calls++
			return nil, nil
		},
	}

	p := newTestProcessor(t, queue, &fakeNotificationRepo{}, dispatch.NewRegistry())

	for i := 0; i < 2; i++ {
		summary, err := p.DrainQueue(context.Background())
		if err != nil {
			t.Fatalf("DrainQueue() error = %v", err)
		}
		if summary.Processed != 0 {
			t.Fatalf("summary = %+v, want empty", summary)
		}
	}
	if calls != 2 {
		t.Fatalf("FetchDue called %d times, want 2", calls)
	}
}

func TestDrainQueueCancellationRaceStillCompletesItem(t *testing.T) {
	t.Parallel()

	// Scenario: the notification is cancelled after the item is claimed but
	// before the sent write lands, so MarkSent reports a conflict. The queue
	// item must still reach completed rather than sitting in processing,
	// which no drain cycle would ever select again.
	item := pendingItem("q1", "n1", 0)

	var completedID string
	var failedID string

	queue := &fakeQueueRepo{
		fetchDueFn: func(_ context.Context, _ time.Time, _ int) ([]domain.QueueItem, error) {
			return []domain.QueueItem{item}, nil
		},
		claimFn: claimFromPending(item),
		markCompletedFn: func(_ context.Context, id string, _ time.Time) error {
			completedID = id
			return nil
		},
		markFailedFn: func(_ context.Context, id string, _ string, _ time.Time) error {
			failedID = id
			return nil
		},
	}
	notifications := &fakeNotificationRepo{
		getByIDFn: func(_ context.Context, id string) (*domain.Notification, error) {
			return queuedNotification(id, domain.ChannelEmail), nil
		},
		markSentFn: func(_ context.Context, _ string, _ time.Time, _ string) error {
			return domain.ErrConflict
		},
	}
	registry := dispatch.NewRegistry(dispatch.WithAdapter(domain.ChannelEmail, &fakeAdapter{
		sendFn: func(_ context.Context, _ domain.Notification) (*adapter.Result, error) {
			return &adapter.Result{MessageID: "abc123", StatusCode: 202}, nil
		},
	}))

	p := newTestProcessor(t, queue, notifications, registry)

	summary, err := p.DrainQueue(context.Background())
	if err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if completedID != "q1" {
		t.Fatalf("MarkCompleted(%q), want q1", completedID)
	}
	if failedID != "" {
		t.Fatalf("MarkFailed(%q), want no call", failedID)
	}
	if summary.Sent != 0 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want sent=0 skipped=1", summary)
	}
}

func TestDrainQueueReclaimsStaleClaims(t *testing.T) {
	t.Parallel()

	// Scenario: a previous worker died mid-send. The cycle sweeps abandoned
	// processing items back to pending before selecting work.
	var gotCutoff, gotNow time.Time

	queue := &fakeQueueRepo{
		reclaimStaleFn: func(_ context.Context, cutoff time.Time, now time.Time) (int64, error) {
			gotCutoff = cutoff
			gotNow = now
			return 2, nil
		},
	}
	notifications := &fakeNotificationRepo{}
	registry := dispatch.NewRegistry()

	p := newTestProcessor(t, queue, notifications, registry, WithStaleAfter(5*time.Minute))

	if _, err := p.DrainQueue(context.Background()); err != nil {
		t.Fatalf("DrainQueue() error = %v", err)
	}

	if want := frozenNow.Add(-5 * time.Minute); !gotCutoff.Equal(want) {
		t.Errorf("cutoff = %s, want %s", gotCutoff, want)
	}
	if !gotNow.Equal(frozenNow) {
		t.Errorf("now = %s, want %s", gotNow, frozenNow)
	}
}
