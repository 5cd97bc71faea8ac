package adapter

import (
	"context"
	"fmt"
	"strings"

	mail "gopkg.in/mail.v2"

	"github.com/elite42/reservation-notifier/internal/domain"
)

// EmailSender abstracts the SMTP dialer so tests can capture outgoing mail.
type EmailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// EmailConfig holds SMTP settings for the email adapter.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c EmailConfig) configured() bool {
	return strings.TrimSpace(c.Host) != "" && c.Port > 0 && strings.TrimSpace(c.From) != ""
}

// EmailAdapter delivers notifications over SMTP.
type EmailAdapter struct {
	sender EmailSender
	from   string
}

func NewEmailAdapter(cfg EmailConfig) *EmailAdapter {
	if !cfg.configured() {
		return &EmailAdapter{}
	}

	return &EmailAdapter{
		sender: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func NewEmailAdapterWithSender(sender EmailSender, from string) *EmailAdapter {
	return &EmailAdapter{sender: sender, from: from}
}

func (a *EmailAdapter) Send(ctx context.Context, notification domain.Notification) (*Result, error) {
	if a == nil || a.sender == nil {
		return nil, NotConfigured(domain.ChannelEmail.String())
	}
	if err := notification.Validate(); err != nil {
		return nil, &Error{Message: "invalid notification", Cause: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Message: "email send aborted", Cause: err}
	}

	message := mail.NewMessage()
	message.SetHeader("From", a.from)
	if notification.RecipientName != nil && strings.TrimSpace(*notification.RecipientName) != "" {
		message.SetAddressHeader("To", notification.Recipient, *notification.RecipientName)
	} else {
		message.SetHeader("To", notification.Recipient)
	}
	message.SetHeader("Subject", emailSubject(notification))
	message.SetBody("text/plain", notification.Body)

	if err := a.sender.DialAndSend(message); err != nil {
		// SMTP failures are treated as transient; a permanently bad address
		// exhausts the attempt budget instead.
		return nil, &Error{
			Message:   "smtp delivery failed",
			Transient: true,
			Cause:     err,
		}
	}

	return &Result{}, nil
}

func emailSubject(notification domain.Notification) string {
	if notification.Subject != nil && strings.TrimSpace(*notification.Subject) != "" {
		return *notification.Subject
	}

	switch notification.Type {
	case domain.TypeReservationConfirmed:
		return "Your reservation is confirmed"
	case domain.TypeReminder24h, domain.TypeReminder2h:
		return "Reservation reminder"
	case domain.TypeReservationUpdated:
		return "Your reservation was updated"
	case domain.TypeReservationCancelled:
		return "Your reservation was cancelled"
	case domain.TypeTableReady:
		return "Your table is ready"
	default:
		return fmt.Sprintf("Reservation notification: %s", notification.Type)
	}
}
