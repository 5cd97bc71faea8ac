package repository

import (
	"time"

	"github.com/elite42/reservation-notifier/internal/domain"
)

// NotificationModel is the persistence model for reservation_notifications.
type NotificationModel struct {
	ID                string                    `gorm:"type:uuid;primaryKey"`
	ReservationID     string                    `gorm:"type:uuid;not null;index"`
	Type              domain.NotificationType   `gorm:"column:notification_type;type:varchar(40);not null"`
	Channel           domain.Channel            `gorm:"type:varchar(10);not null"`
	Recipient         string                    `gorm:"type:varchar(255);not null"`
	RecipientName     *string                   `gorm:"type:varchar(255)"`
	Subject           *string                   `gorm:"type:varchar(255)"`
	Body              string                    `gorm:"type:text;not null"`
	Status            domain.NotificationStatus `gorm:"type:varchar(20);not null"`
	ProviderMessageID *string                   `gorm:"type:varchar(255)"`
	ErrorMessage      *string                   `gorm:"type:text"`
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (NotificationModel) TableName() string {
	return "reservation_notifications"
}

// QueueItemModel is the persistence model for notification_queue.
type QueueItemModel struct {
	ID             string             `gorm:"type:uuid;primaryKey"`
	NotificationID string             `gorm:"type:uuid;not null;uniqueIndex"`
	Priority       int                `gorm:"not null;default:5"`
	Attempts       int                `gorm:"not null;default:0"`
	MaxAttempts    int                `gorm:"not null;default:3"`
	LastAttempt    *time.Time
	ProcessAfter   time.Time          `gorm:"not null"`
	Status         domain.QueueStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage   *string            `gorm:"type:text"`
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (QueueItemModel) TableName() string {
	return "notification_queue"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	NotificationID string  `gorm:"type:uuid;not null;index"`
	QueueItemID    string  `gorm:"type:uuid;not null"`
	AttemptNumber  int     `gorm:"not null"`
	StatusCode     *int    `gorm:"type:int"`
	ResponseBody   *string `gorm:"type:text"`
	Error          *string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

// TemplateModel is the persistence model for notification_templates.
type TemplateModel struct {
	ID         string                  `gorm:"type:uuid;primaryKey"`
	MerchantID *string                 `gorm:"type:uuid"`
	Code       domain.NotificationType `gorm:"column:template_code;type:varchar(40);not null"`
	Channel    domain.Channel          `gorm:"type:varchar(10);not null"`
	Locale     string                  `gorm:"type:varchar(10);not null"`
	Subject    *string                 `gorm:"type:varchar(255)"`
	Title      *string                 `gorm:"type:varchar(255)"`
	Body       string                  `gorm:"type:text;not null"`
	Active     bool                    `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (TemplateModel) TableName() string {
	return "notification_templates"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:                n.ID,
		ReservationID:     n.ReservationID,
		Type:              n.Type,
		Channel:           n.Channel,
		Recipient:         n.Recipient,
		RecipientName:     n.RecipientName,
		Subject:           n.Subject,
		Body:              n.Body,
		Status:            n.Status,
		ProviderMessageID: n.ProviderMessageID,
		ErrorMessage:      n.ErrorMessage,
		SentAt:            n.SentAt,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:                m.ID,
		ReservationID:     m.ReservationID,
		Type:              m.Type,
		Channel:           m.Channel,
		Recipient:         m.Recipient,
		RecipientName:     m.RecipientName,
		Subject:           m.Subject,
		Body:              m.Body,
		Status:            m.Status,
		ProviderMessageID: m.ProviderMessageID,
		ErrorMessage:      m.ErrorMessage,
		SentAt:            m.SentAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func queueItemModelFromDomain(q *domain.QueueItem) *QueueItemModel {
	if q == nil {
		return nil
	}

	return &QueueItemModel{
		ID:             q.ID,
		NotificationID: q.NotificationID,
		Priority:       q.Priority,
		Attempts:       q.Attempts,
		MaxAttempts:    q.MaxAttempts,
		LastAttempt:    q.LastAttempt,
		ProcessAfter:   q.ProcessAfter,
		Status:         q.Status,
		ErrorMessage:   q.ErrorMessage,
		ProcessedAt:    q.ProcessedAt,
		CreatedAt:      q.CreatedAt,
		UpdatedAt:      q.UpdatedAt,
	}
}

func queueItemModelToDomain(m *QueueItemModel) *domain.QueueItem {
	if m == nil {
		return nil
	}

	return &domain.QueueItem{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Priority:       m.Priority,
		Attempts:       m.Attempts,
		MaxAttempts:    m.MaxAttempts,
		LastAttempt:    m.LastAttempt,
		ProcessAfter:   m.ProcessAfter,
		Status:         m.Status,
		ErrorMessage:   m.ErrorMessage,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		NotificationID: a.NotificationID,
		QueueItemID:    a.QueueItemID,
		AttemptNumber:  a.AttemptNumber,
		StatusCode:     a.StatusCode,
		ResponseBody:   a.ResponseBody,
		Error:          a.Error,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		QueueItemID:    m.QueueItemID,
		AttemptNumber:  m.AttemptNumber,
		StatusCode:     m.StatusCode,
		ResponseBody:   m.ResponseBody,
		Error:          m.Error,
		CreatedAt:      m.CreatedAt,
	}
}

func templateModelToDomain(m *TemplateModel) *domain.Template {
	if m == nil {
		return nil
	}

	return &domain.Template{
		ID:         m.ID,
		MerchantID: m.MerchantID,
		Code:       m.Code,
		Channel:    m.Channel,
		Locale:     m.Locale,
		Subject:    m.Subject,
		Title:      m.Title,
		Body:       m.Body,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func templateModelFromDomain(t *domain.Template) *TemplateModel {
	if t == nil {
		return nil
	}

	return &TemplateModel{
		ID:         t.ID,
		MerchantID: t.MerchantID,
		Code:       t.Code,
		Channel:    t.Channel,
		Locale:     t.Locale,
		Subject:    t.Subject,
		Title:      t.Title,
		Body:       t.Body,
		Active:     t.Active,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
