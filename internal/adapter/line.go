package adapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/elite42/reservation-notifier/internal/domain"
)

const defaultLineBaseURL = "https://api.line.me/v2/bot"

// LINE allows at most 5 messages per push; the pipeline always sends one.
type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type lineRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

type lineErrorResponse struct {
	Message string `json:"message"`
}

// LineAdapter delivers notifications through the LINE Messaging API. The
// recipient is the LINE user id from the guest's channel preferences.
type LineAdapter struct {
	client      *resty.Client
	baseURL     string
	accessToken string
}

func NewLineAdapter(accessToken string) *LineAdapter {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewLineAdapterWithClient(accessToken, defaultLineBaseURL, client)
}

func NewLineAdapterWithClient(accessToken, baseURL string, client *resty.Client) *LineAdapter {
	return &LineAdapter{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: strings.TrimSpace(accessToken),
	}
}

func (a *LineAdapter) Send(ctx context.Context, notification domain.Notification) (*Result, error) {
	if a == nil || a.client == nil || a.accessToken == "" {
		return nil, NotConfigured(domain.ChannelLine.String())
	}
	if err := notification.Validate(); err != nil {
		return nil, &Error{Message: "invalid notification", Cause: err}
	}

	var errBody lineErrorResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(a.accessToken).
		SetBody(lineRequest{
			To:       notification.Recipient,
			Messages: []lineMessage{{Type: "text", Text: notification.Body}},
		}).
		SetError(&errBody).
		Post(a.baseURL + "/message/push")
	if err != nil {
		return nil, &Error{
			Message:   "line request failed",
			Transient: true,
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Result{
			MessageID:  strings.TrimSpace(response.Header().Get("X-Line-Request-Id")),
			StatusCode: statusCode,
			Body:       strings.TrimSpace(response.String()),
		}, nil
	}

	message := errBody.Message
	if message == "" {
		message = httpErrorMessage(statusCode, strings.TrimSpace(response.String()))
	}

	return nil, &Error{
		StatusCode: statusCode,
		Message:    message,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
