package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/elite42/reservation-notifier/internal/domain"
)

const (
	whatsAppAPIVersion     = "v18.0"
	defaultWhatsAppBaseURL = "https://graph.facebook.com/" + whatsAppAPIVersion
)

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// WhatsAppAdapter delivers notifications through the WhatsApp Business Cloud
// API. The recipient is a phone number in international format.
type WhatsAppAdapter struct {
	client        *resty.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
}

func NewWhatsAppAdapter(phoneNumberID, accessToken string) *WhatsAppAdapter {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewWhatsAppAdapterWithClient(phoneNumberID, accessToken, defaultWhatsAppBaseURL, client)
}

func NewWhatsAppAdapterWithClient(phoneNumberID, accessToken, baseURL string, client *resty.Client) *WhatsAppAdapter {
	return &WhatsAppAdapter{
		client:        client,
		baseURL:       strings.TrimRight(baseURL, "/"),
		phoneNumberID: strings.TrimSpace(phoneNumberID),
		accessToken:   strings.TrimSpace(accessToken),
	}
}

func (a *WhatsAppAdapter) Send(ctx context.Context, notification domain.Notification) (*Result, error) {
	if a == nil || a.client == nil || a.phoneNumberID == "" || a.accessToken == "" {
		return nil, NotConfigured(domain.ChannelWhatsApp.String())
	}
	if err := notification.Validate(); err != nil {
		return nil, &Error{Message: "invalid notification", Cause: err}
	}

	var parsed whatsAppResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(a.accessToken).
		SetBody(whatsAppRequest{
			MessagingProduct: "whatsapp",
			To:               notification.Recipient,
			Type:             "text",
			Text:             whatsAppText{Body: notification.Body},
		}).
		SetResult(&parsed).
		SetError(&parsed).
		Post(fmt.Sprintf("%s/%s/messages", a.baseURL, a.phoneNumberID))
	if err != nil {
		return nil, &Error{
			Message:   "whatsapp request failed",
			Transient: true,
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		messageID := ""
		if len(parsed.Messages) > 0 {
			messageID = parsed.Messages[0].ID
		}
		return &Result{
			MessageID:  messageID,
			StatusCode: statusCode,
			Body:       strings.TrimSpace(response.String()),
		}, nil
	}

	message := parsed.Error.Message
	if message == "" {
		message = httpErrorMessage(statusCode, strings.TrimSpace(response.String()))
	}

	return nil, &Error{
		StatusCode: statusCode,
		Message:    message,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
