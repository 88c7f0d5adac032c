package db

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration. Workspace
// must precede Mapping so foreign key constraints resolve in order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Workspace{},
		&models.Mapping{},
		&models.ThreadContextEntry{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
