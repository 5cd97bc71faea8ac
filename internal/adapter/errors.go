package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Error classifies adapter call failures as transient or permanent. Transient
// failures are retried under the queue's backoff budget; permanent failures
// (an unrecognized channel, a rejected recipient) fail the item immediately.
type Error struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "adapter error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NotConfigured builds the retryable failure returned by a registered channel
// that has no provider wired up.
func NotConfigured(channel string) *Error {
	return &Error{
		Message:   fmt.Sprintf("%s channel is not configured", strings.ToLower(channel)),
		Transient: true,
	}
}

// UnknownChannel builds the permanent failure returned by the registry
// fallback for an unrecognized channel string.
func UnknownChannel(channel string) *Error {
	return &Error{
		Message:   fmt.Sprintf("unknown channel %q", channel),
		Transient: false,
	}
}

// IsTransient reports whether an error should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Both cancellation and timeout mean the send never got a provider
	// verdict; the delivery may be retried safely.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var adapterErr *Error
	if errors.As(err, &adapterErr) {
		return adapterErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsPermanent reports whether the failure should skip the retry budget
// entirely.
func IsPermanent(err error) bool {
	return err != nil && !IsTransient(err)
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func httpErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
