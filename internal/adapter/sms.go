package adapter

import (
	"context"

	"github.com/elite42/reservation-notifier/internal/domain"
)

// SMSAdapter is registered but ships without a provider. It returns a
// structured, retryable failure instead of panicking so the drain cycle
// classifies it through the normal adapter-error path. Wiring an SMS gateway
// replaces this stub with a real implementation.
type SMSAdapter struct{}

func NewSMSAdapter() *SMSAdapter {
	return &SMSAdapter{}
}

func (a *SMSAdapter) Send(_ context.Context, _ domain.Notification) (*Result, error) {
	return nil, NotConfigured(domain.ChannelSMS.String())
}
