package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/elite42/reservation-notifier/internal/ratelimit"
)

const (
	defaultLimitPerSec int64 = 25
	waitStep                 = 25 * time.Millisecond
	waitStepMax              = 200 * time.Millisecond
	windowSeconds            = 1

	keyPrefix = "notifier:sendrate"
)

// Fixed one-second window: the first INCR of a window sets the expiry, every
// caller past the limit is rejected until the window rolls over.
var admitScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*SendLimiter)(nil)

// SendLimiter is a Redis-backed per-channel send throttle shared by every
// worker process, so the fleet as a whole honours provider quotas. Each
// channel gets its own window; channels without an explicit limit use the
// default.
type SendLimiter struct {
	client        *goredis.Client
	defaultLimit  int64
	channelLimits map[string]int64
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
}

// SendLimiterOption customises the limiter.
type SendLimiterOption func(*SendLimiter)

// WithChannelLimit overrides the per-second budget for one channel.
func WithChannelLimit(channel string, perSec int64) SendLimiterOption {
	return func(l *SendLimiter) {
		channel = strings.ToLower(strings.TrimSpace(channel))
		if channel != "" && perSec > 0 {
			l.channelLimits[channel] = perSec
		}
	}
}

func withClock(now func() time.Time) SendLimiterOption {
	return func(l *SendLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

func withSleep(sleep func(ctx context.Context, d time.Duration) error) SendLimiterOption {
	return func(l *SendLimiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

func NewSendLimiter(client *goredis.Client, defaultPerSec int64, opts ...SendLimiterOption) (*SendLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if defaultPerSec <= 0 {
		defaultPerSec = defaultLimitPerSec
	}

	l := &SendLimiter{
		client:        client,
		defaultLimit:  defaultPerSec,
		channelLimits: make(map[string]int64),
		now:           time.Now,
		sleep:         sleepWithContext,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

func (l *SendLimiter) limitFor(channel string) int64 {
	if limit, ok := l.channelLimits[channel]; ok {
		return limit
	}
	return l.defaultLimit
}

func (l *SendLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel == "" {
		return false, fmt.Errorf("channel is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("%s:%s:%d", keyPrefix, channel, l.now().UTC().Unix())
	result, err := admitScript.Run(ctx, l.client, []string{key}, l.limitFor(channel), windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate send rate: %w", err)
	}

	return result == 1, nil
}

func (l *SendLimiter) Wait(ctx context.Context, channel string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	step := waitStep
	for {
		allowed, err := l.Allow(ctx, channel)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := l.sleep(ctx, step); err != nil {
			return err
		}

		step += waitStep
		if step > waitStepMax {
			step = waitStepMax
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
