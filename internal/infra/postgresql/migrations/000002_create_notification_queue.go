package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/elite42/reservation-notifier/internal/repository"
)

func createNotificationQueueTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notification_queue",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.QueueItemModel{}); err != nil {
				return err
			}
			// Partial index matching exactly the drain cycle's eligibility
			// predicate.
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_queue_due ON notification_queue (process_after, priority, created_at) WHERE status = 'PENDING'`,
				`CREATE INDEX IF NOT EXISTS idx_queue_status ON notification_queue (status)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.QueueItemModel{})
		},
	}
}
