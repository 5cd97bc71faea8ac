package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotificationStatus represents the delivery lifecycle state of a notification.
// The status moves monotonically toward a terminal value (SENT or FAILED); a
// terminal notification is never reopened.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationQueued  NotificationStatus = "QUEUED"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

func (s NotificationStatus) String() string { return string(s) }

func (s NotificationStatus) IsValid() bool {
	switch s {
	case NotificationPending, NotificationQueued, NotificationSent, NotificationFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the notification reached a final state.
func (s NotificationStatus) IsTerminal() bool {
	return s == NotificationSent || s == NotificationFailed
}

func ParseNotificationStatus(s string) (NotificationStatus, error) {
	st := NotificationStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid notification status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel represents the delivery mechanism.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelPush     Channel = "PUSH"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelTelegram Channel = "TELEGRAM"
	ChannelLine     Channel = "LINE"
	ChannelZalo     Channel = "ZALO"
)

// Channels lists every channel the platform can deliver to.
func Channels() []Channel {
	return []Channel{
		ChannelEmail,
		ChannelSMS,
		ChannelPush,
		ChannelWhatsApp,
		ChannelTelegram,
		ChannelLine,
		ChannelZalo,
	}
}

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWhatsApp, ChannelTelegram, ChannelLine, ChannelZalo:
		return true
	}
	return false
}

func ParseChannel(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// NotificationType identifies the reservation event the notification is about.
type NotificationType string

const (
	TypeReservationConfirmed NotificationType = "reservation_confirmed"
	TypeReminder24h          NotificationType = "reminder_24h"
	TypeReminder2h           NotificationType = "reminder_2h"
	TypeReservationUpdated   NotificationType = "reservation_updated"
	TypeReservationCancelled NotificationType = "reservation_cancelled"
	TypeNoShow               NotificationType = "no_show"
	TypeTableReady           NotificationType = "table_ready"
)

func (t NotificationType) String() string { return string(t) }

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeReservationConfirmed, TypeReminder24h, TypeReminder2h,
		TypeReservationUpdated, TypeReservationCancelled, TypeNoShow, TypeTableReady:
		return true
	}
	return false
}

func ParseNotificationType(s string) (NotificationType, error) {
	nt := NotificationType(strings.ToLower(strings.TrimSpace(s)))
	if !nt.IsValid() {
		return "", fmt.Errorf("%w: invalid notification type %q", ErrValidation, s)
	}
	return nt, nil
}

// Notification is the content and destination of a single message to be
// delivered once. It is created by an external workflow together with exactly
// one QueueItem and mutated only by the queue processor.
type Notification struct {
	ID                string
	ReservationID     string
	Type              NotificationType
	Channel           Channel
	Recipient         string
	RecipientName     *string
	Subject           *string
	Body              string
	Status            NotificationStatus
	ProviderMessageID *string
	ErrorMessage      *string
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.ReservationID) == "" {
		return fmt.Errorf("%w: reservation id is required", ErrValidation)
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !n.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, n.Channel)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: invalid notification type %q", ErrValidation, n.Type)
	}
	return nil
}
