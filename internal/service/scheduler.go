package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultDrainSpec = "* * * * *"

// Drainer is the queue-processor port the scheduler triggers.
type Drainer interface {
	DrainQueue(ctx context.Context) (DrainSummary, error)
}

// Scheduler fires drain cycles on a fixed cron cadence. It holds no state
// about in-flight drains: safety against overlapping invocations is delegated
// entirely to the processor's atomic claim. RunOnce exposes the identical
// contract for manual, on-demand invocation.
type Scheduler struct {
	drainer Drainer
	cron    *cron.Cron
	spec    string
	logger  *zap.Logger
}

// SchedulerOption customises the Scheduler.
type SchedulerOption func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithDrainSpec overrides the cron specification for the drain cycle.
func WithDrainSpec(spec string) SchedulerOption {
	return func(s *Scheduler) {
		if spec != "" {
			s.spec = spec
		}
	}
}

func NewScheduler(drainer Drainer, logger *zap.Logger, opts ...SchedulerOption) (*Scheduler, error) {
	if drainer == nil {
		return nil, fmt.Errorf("drainer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		drainer: drainer,
		spec:    defaultDrainSpec,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s, nil
}

// Start registers the drain job and launches the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("scheduled drain cycle failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule drain cycle: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

// Stop halts the cron loop, waiting for a running drain to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes a single drain cycle with the same contract as the
// scheduled invocation, for operational backfill or testing.
func (s *Scheduler) RunOnce(ctx context.Context) (DrainSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	summary, err := s.drainer.DrainQueue(ctx)
	if err != nil {
		return DrainSummary{}, err
	}

	s.logger.Debug("drain cycle completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("processed", summary.Processed),
	)

	return summary, nil
}
