package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/elite42/reservation-notifier/internal/repository"
)

func createNotificationTemplatesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_notification_templates",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.TemplateModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_merchant_lookup ON notification_templates (merchant_id, template_code, channel, locale) WHERE merchant_id IS NOT NULL`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_templates_default_lookup ON notification_templates (template_code, channel, locale) WHERE merchant_id IS NULL`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TemplateModel{})
		},
	}
}
