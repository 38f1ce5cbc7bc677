package postgres

import (
	"github.com/chromatech/advisor/internal/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the advisor tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Conversation{},
		&models.ChatMessage{},
		&models.CacheEntry{},
		&models.CostRecord{},
		&models.UserPreference{},
	)
}
