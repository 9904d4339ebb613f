package permissions

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/cmsauthz/internal/models"
)

// SyncResult summarises a catalog sync.
type SyncResult struct {
	Permissions int      `json:"permissions"`
	SeededRoles []string `json:"seeded_roles"`
}

// Sync upserts catalog definitions and seeds default grants for roles that have none.
// Existing grants are never altered, so administrators keep their edits across restarts.
func Sync(ctx context.Context, db *gorm.DB, catalog Catalog) (SyncResult, error) {
	if db == nil {
		return SyncResult{}, errors.New("permission sync: db is required")
	}
	if err := catalog.Validate(); err != nil {
		return SyncResult{}, err
	}
	ctx = ensureContext(ctx)

	result := SyncResult{SeededRoles: []string{}}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range catalog.Definitions {
			record := models.Permission{
				Name:        def.Name,
				Category:    def.Category,
				Description: def.Description,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"category", "description", "updated_at"}),
			}).Create(&record).Error; err != nil {
				return fmt.Errorf("permission sync: upsert %s: %w", def.Name, err)
			}
		}
		result.Permissions = len(catalog.Definitions)

		var stored []models.Permission
		if err := tx.Select("id", "name").Find(&stored).Error; err != nil {
			return fmt.Errorf("permission sync: load ids: %w", err)
		}
		ids := make(map[string]string, len(stored))
		for _, perm := range stored {
			ids[perm.Name] = perm.ID
		}

		for _, role := range catalog.Roles() {
			var existing int64
			if err := tx.Model(&models.RolePermission{}).Where("role = ?", role).Count(&existing).Error; err != nil {
				return fmt.Errorf("permission sync: count %s grants: %w", role, err)
			}
			if existing > 0 {
				continue
			}

			grants := make([]models.RolePermission, 0, len(catalog.RoleGrants[role]))
			for _, name := range catalog.RoleGrants[role] {
				grants = append(grants, models.RolePermission{Role: role, PermissionID: ids[name]})
			}
			if len(grants) == 0 {
				continue
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&grants).Error; err != nil {
				return fmt.Errorf("permission sync: seed %s: %w", role, err)
			}
			result.SeededRoles = append(result.SeededRoles, role)
		}
		return nil
	})
	if err != nil {
		return SyncResult{}, err
	}
	return result, nil
}
