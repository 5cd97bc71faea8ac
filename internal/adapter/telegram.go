package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/elite42/reservation-notifier/internal/domain"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultSendTimeout     = 10 * time.Second
)

type telegramRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

// TelegramAdapter delivers notifications through the Telegram Bot API. The
// recipient is the chat id stored in the guest's channel preferences.
type TelegramAdapter struct {
	client  *resty.Client
	baseURL string
	token   string
}

func NewTelegramAdapter(token string) *TelegramAdapter {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewTelegramAdapterWithClient(token, defaultTelegramBaseURL, client)
}

func NewTelegramAdapterWithClient(token, baseURL string, client *resty.Client) *TelegramAdapter {
	return &TelegramAdapter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
	}
}

func (a *TelegramAdapter) Send(ctx context.Context, notification domain.Notification) (*Result, error) {
	if a == nil || a.client == nil || a.token == "" {
		return nil, NotConfigured(domain.ChannelTelegram.String())
	}
	if err := notification.Validate(); err != nil {
		return nil, &Error{Message: "invalid notification", Cause: err}
	}

	var parsed telegramResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(telegramRequest{
			ChatID: notification.Recipient,
			Text:   notification.Body,
		}).
		SetResult(&parsed).
		SetError(&parsed).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", a.baseURL, a.token))
	if err != nil {
		return nil, &Error{
			Message:   "telegram request failed",
			Transient: true,
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode == http.StatusOK && parsed.OK {
		return &Result{
			MessageID:  fmt.Sprintf("%d", parsed.Result.MessageID),
			StatusCode: statusCode,
			Body:       strings.TrimSpace(response.String()),
		}, nil
	}

	message := parsed.Description
	if message == "" {
		message = httpErrorMessage(statusCode, strings.TrimSpace(response.String()))
	}

	return nil, &Error{
		StatusCode: statusCode,
		Message:    message,
		Transient:  isTransientHTTPStatus(statusCode),
	}
}
