package ratelimit

import "context"

// RateLimiter throttles outbound sends per delivery channel so a drain cycle
// cannot exceed provider quotas.
type RateLimiter interface {
	// Allow reports whether one send on the channel fits the current window.
	Allow(ctx context.Context, channel string) (bool, error)
	// Wait blocks until a send is allowed or the context ends.
	Wait(ctx context.Context, channel string) error
}

// Noop admits every send. Used when no Redis backend is configured.
type Noop struct{}

func (Noop) Allow(_ context.Context, _ string) (bool, error) { return true, nil }

func (Noop) Wait(_ context.Context, _ string) error { return nil }
