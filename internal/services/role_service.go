package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/activity"
	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	apperrors "github.com/charlesng35/cmsauthz/pkg/errors"
	"github.com/charlesng35/cmsauthz/pkg/validator"
)

type rolePermissionsInput struct {
	Role        string   `validate:"required,role_name"`
	Permissions []string `validate:"dive,permission_name"`
}

// RoleService edits role grants. Any change can affect every user holding the
// role or a team role with the same name, so writes flush the whole cache.
type RoleService struct {
	db          *gorm.DB
	invalidator permissions.Invalidator
	activity    activity.Sink
	catalog     permissions.Catalog
}

// NewRoleService constructs a RoleService. catalog is what ReseedCatalog syncs.
func NewRoleService(db *gorm.DB, invalidator permissions.Invalidator, sink activity.Sink, catalog permissions.Catalog) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	return &RoleService{
		db:          db,
		invalidator: invalidator,
		activity:    sink,
		catalog:     catalog,
	}, nil
}

// Roles lists every role that appears in the catalog or holds a grant.
func (s *RoleService) Roles(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)

	var stored []string
	if err := s.db.WithContext(ctx).
		Model(&models.RolePermission{}).
		Distinct("role").
		Pluck("role", &stored).Error; err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}
	return normaliseNames(append(stored, s.catalog.Roles()...)), nil
}

// RolePermissions returns the sorted permission names granted to role.
func (s *RoleService) RolePermissions(ctx context.Context, role string) ([]string, error) {
	ctx = ensureContext(ctx)

	var names []string
	if err := s.db.WithContext(ctx).
		Table("role_permissions AS rp").
		Joins("JOIN permissions AS p ON p.id = rp.permission_id").
		Where("rp.role = ?", strings.TrimSpace(role)).
		Order("p.name ASC").
		Pluck("p.name", &names).Error; err != nil {
		return nil, fmt.Errorf("role service: load grants: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// SetRolePermissions replaces the grants of role with names. Every name must
// exist in the permission catalog.
func (s *RoleService) SetRolePermissions(ctx context.Context, role string, names []string) ([]string, error) {
	ctx = ensureContext(ctx)

	in := rolePermissionsInput{
		Role:        strings.TrimSpace(role),
		Permissions: normaliseNames(names),
	}
	if err := validator.ValidateStruct(in); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	previous, err := s.RolePermissions(ctx, in.Role)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var perms []models.Permission
		if len(in.Permissions) > 0 {
			if err := tx.Where("name IN ?", in.Permissions).Find(&perms).Error; err != nil {
				return fmt.Errorf("role service: load permissions: %w", err)
			}
		}
		if len(perms) != len(in.Permissions) {
			return apperrors.NewBadRequest("unknown permissions: " + strings.Join(missingNames(in.Permissions, perms), ", "))
		}

		if err := tx.Where("role = ?", in.Role).Delete(&models.RolePermission{}).Error; err != nil {
			return fmt.Errorf("role service: clear grants: %w", err)
		}
		if len(perms) == 0 {
			return nil
		}

		grants := make([]models.RolePermission, 0, len(perms))
		for _, perm := range perms {
			grants = append(grants, models.RolePermission{Role: in.Role, PermissionID: perm.ID})
		}
		if err := tx.Create(&grants).Error; err != nil {
			return fmt.Errorf("role service: insert grants: %w", err)
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, err
	}

	added, removed := diffNames(previous, in.Permissions)
	invalidateAll(s.invalidator, ctx)
	recordActivity(s.activity, ctx, "role.permissions_updated", "role", in.Role, map[string]any{
		"permissions": in.Permissions,
		"added":       added,
		"removed":     removed,
	})

	return in.Permissions, nil
}

// ReseedCatalog syncs the permission catalog and seeds default grants for roles
// without any.
func (s *RoleService) ReseedCatalog(ctx context.Context) (permissions.SyncResult, error) {
	ctx = ensureContext(ctx)

	result, err := permissions.Sync(ctx, s.db, s.catalog)
	if err != nil {
		return permissions.SyncResult{}, fmt.Errorf("role service: sync catalog: %w", err)
	}

	invalidateAll(s.invalidator, ctx)
	recordActivity(s.activity, ctx, "permissions.synced", "permission", "", map[string]any{
		"permissions":  result.Permissions,
		"seeded_roles": result.SeededRoles,
	})

	return result, nil
}

func missingNames(wanted []string, found []models.Permission) []string {
	known := make(map[string]struct{}, len(found))
	for _, perm := range found {
		known[perm.Name] = struct{}{}
	}
	var missing []string
	for _, name := range wanted {
		if _, ok := known[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
