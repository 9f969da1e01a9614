package database

import (
	"gorm.io/gorm"

	"github.com/davidrys/gatepass/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Registrant{},
		&models.ScanEvent{},
	)
}
