package adapter

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/elite42/reservation-notifier/internal/domain"
)

const defaultZaloBaseURL = "https://openapi.zalo.me/v3.0/oa"

type zaloRequest struct {
	Recipient zaloRecipient `json:"recipient"`
	Message   zaloMessage   `json:"message"`
}

type zaloRecipient struct {
	UserID string `json:"user_id"`
}

type zaloMessage struct {
	Text string `json:"text"`
}

type zaloResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}

// ZaloAdapter delivers notifications through the Zalo Official Account API.
// The recipient is the Zalo user id from the guest's channel preferences.
type ZaloAdapter struct {
	client      *resty.Client
	baseURL     string
	accessToken string
}

func NewZaloAdapter(accessToken string) *ZaloAdapter {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewZaloAdapterWithClient(accessToken, defaultZaloBaseURL, client)
}

func NewZaloAdapterWithClient(accessToken, baseURL string, client *resty.Client) *ZaloAdapter {
	return &ZaloAdapter{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: strings.TrimSpace(accessToken),
	}
}

func (a *ZaloAdapter) Send(ctx context.Context, notification domain.Notification) (*Result, error) {
	if a == nil || a.client == nil || a.accessToken == "" {
		return nil, NotConfigured(domain.ChannelZalo.String())
	}
	if err := notification.Validate(); err != nil {
		return nil, &Error{Message: "invalid notification", Cause: err}
	}

	var parsed zaloResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("access_token", a.accessToken).
		SetBody(zaloRequest{
			Recipient: zaloRecipient{UserID: notification.Recipient},
			Message:   zaloMessage{Text: notification.Body},
		}).
		SetResult(&parsed).
		SetError(&parsed).
		Post(a.baseURL + "/message/cs")
	if err != nil {
		return nil, &Error{
			Message:   "zalo request failed",
			Transient: true,
			Cause:     err,
		}
	}

	// Zalo reports failures inside a 200 response; error 0 means success.
	statusCode := response.StatusCode()
	if statusCode == http.StatusOK && parsed.Error == 0 {
		return &Result{
			MessageID:  parsed.Data.MessageID,
			StatusCode: statusCode,
			Body:       strings.TrimSpace(response.String()),
		}, nil
	}

	message := parsed.Message
	if message == "" {
		message = httpErrorMessage(statusCode, strings.TrimSpace(response.String()))
	}

	return nil, &Error{
		StatusCode: statusCode,
		Message:    message,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
