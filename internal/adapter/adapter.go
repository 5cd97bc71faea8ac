// Package adapter contains one channel adapter per delivery mechanism. Each
// adapter translates a generic notification into a provider-specific call and
// normalizes the provider's success/error shape into a Result or a classified
// Error.
package adapter

import (
	"context"

	"github.com/elite42/reservation-notifier/internal/domain"
)

// Adapter is the outbound delivery port for one channel.
type Adapter interface {
	Send(ctx context.Context, notification domain.Notification) (*Result, error)
}

// Result stores provider call metadata for audit and persistence.
type Result struct {
	MessageID  string
	StatusCode int
	Body       string
}
