package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/elite42/reservation-notifier/internal/domain"
)

type pushRequest struct {
	To    string `json:"to"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
	Type  string `json:"type"`
}

// PushAdapter delivers notifications through the platform's push gateway. The
// recipient is the guest account id; the gateway resolves device tokens.
type PushAdapter struct {
	client   *resty.Client
	endpoint string
}

func NewPushAdapter(endpoint string) (*PushAdapter, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewPushAdapterWithClient(endpoint, client)
}

func NewPushAdapterWithClient(endpoint string, client *resty.Client) (*PushAdapter, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		// Registered but unconfigured: sends report a retryable
		// not-configured failure instead of the channel vanishing from the
		// registry.
		return &PushAdapter{}, nil
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid push gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	return &PushAdapter{client: client, endpoint: trimmed}, nil
}

func (a *PushAdapter) Send(ctx context.Context, notification domain.Notification) (*Result, error) {
	if a == nil || a.client == nil || a.endpoint == "" {
		return nil, NotConfigured(domain.ChannelPush.String())
	}
	if err := notification.Validate(); err != nil {
		return nil, &Error{Message: "invalid notification", Cause: err}
	}

	title := ""
	if notification.Subject != nil {
		title = *notification.Subject
	}

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(pushRequest{
			To:    notification.Recipient,
			Title: title,
			Body:  notification.Body,
			Type:  notification.Type.String(),
		}).
		Post(a.endpoint)
	if err != nil {
		return nil, &Error{
			Message:   "push gateway request failed",
			Transient: true,
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Result{
			MessageID:  gatewayMessageID(response),
			StatusCode: statusCode,
			Body:       responseBody,
		}, nil
	}

	return nil, &Error{
		StatusCode: statusCode,
		Message:    httpErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func gatewayMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
