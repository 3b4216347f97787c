package logging

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/checkin-backend/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// StartCleanup schedules a daily purge of system_logs older than retain.
// Stop the returned scheduler on shutdown.
func StartCleanup(db *gorm.DB, retain time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		deleted, err := PurgeSystemLogs(db, time.Now().Add(-retain))
		if err != nil {
			slog.Error("log cleanup failed", "error", err)
			return
		}
		if deleted > 0 {
			slog.Info("log cleanup completed", "deleted", deleted)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule log cleanup: %w", err)
	}
	c.Start()
	return c, nil
}

// PurgeSystemLogs deletes records logged before cutoff.
func PurgeSystemLogs(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("timestamp < ?", cutoff.UTC()).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}
