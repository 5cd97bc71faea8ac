package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/elite42/reservation-notifier/internal/repository"
)

func createReservationNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_reservation_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_notifications_reservation_created ON reservation_notifications (reservation_id, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_notifications_status_channel ON reservation_notifications (status, channel)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}
