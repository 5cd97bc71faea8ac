package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/elite42/reservation-notifier/internal/domain"
)

type TemplateRepository interface {
	Create(ctx context.Context, t *domain.Template) error
	// Find returns the best active template for a code/channel/locale triple:
	// a merchant-specific template wins over the platform default. A nil
	// result with a nil error means nothing matched.
	Find(ctx context.Context, merchantID *string, code domain.NotificationType, channel domain.Channel, locale string) (*domain.Template, error)
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

func (r *GormTemplateRepo) Create(ctx context.Context, t *domain.Template) error {
	model := templateModelFromDomain(t)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if t != nil {
		*t = *templateModelToDomain(model)
	}
	return nil
}

func (r *GormTemplateRepo) Find(ctx context.Context, merchantID *string, code domain.NotificationType, channel domain.Channel, locale string) (*domain.Template, error) {
	query := r.db.WithContext(ctx).
		Model(&TemplateModel{}).
		Where("template_code = ? AND channel = ? AND locale = ? AND is_active = ?", code, channel, locale, true)

	if merchantID != nil {
		query = query.Where("merchant_id = ? OR merchant_id IS NULL", *merchantID)
		// NULLs last so a merchant-specific row wins.
		query = query.Order("merchant_id IS NULL ASC")
	} else {
		query = query.Where("merchant_id IS NULL")
	}

	var models []TemplateModel
	if err := query.Limit(1).Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}

	return templateModelToDomain(&models[0]), nil
}
