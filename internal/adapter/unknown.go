package adapter

import (
	"context"

	"github.com/elite42/reservation-notifier/internal/domain"
)

// UnknownAdapter is the registry fallback for channel strings with no
// registered adapter. It always returns a permanent failure; an unknown
// channel can never succeed, so retrying would only burn the attempt budget.
type UnknownAdapter struct{}

func NewUnknownAdapter() *UnknownAdapter {
	return &UnknownAdapter{}
}

func (a *UnknownAdapter) Send(_ context.Context, notification domain.Notification) (*Result, error) {
	return nil, UnknownChannel(notification.Channel.String())
}
