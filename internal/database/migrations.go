package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Permission{},
		&models.RolePermission{},
		&models.Team{},
		&models.TeamMembership{},
		&models.ActivityLog{},
		&models.CacheEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return ensureIndexes(db)
}

// ensureIndexes adds composite indexes that struct tags cannot express.
func ensureIndexes(db *gorm.DB) error {
	migrator := db.Migrator()
	if !migrator.HasIndex(&models.ActivityLog{}, "idx_activity_logs_user_created") {
		if err := db.Exec("CREATE INDEX idx_activity_logs_user_created ON activity_logs (user_id, created_at)").Error; err != nil {
			return fmt.Errorf("create activity index: %w", err)
		}
	}
	return nil
}
