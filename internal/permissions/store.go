package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/models"
)

// UserRecord is the slice of an account the resolver needs.
type UserRecord struct {
	ID   string
	Role string
}

// Membership is one team membership with its raw custom permission JSON.
type Membership struct {
	TeamID      string
	Role        string
	Permissions []byte
}

// Store is the identity store query shape consumed by the Resolver.
type Store interface {
	ActiveUser(ctx context.Context, userID string) (UserRecord, error)
	RolePermissions(ctx context.Context, role string) ([]string, error)
	TeamMemberships(ctx context.Context, userID string) ([]Membership, error)
	Catalog(ctx context.Context) ([]models.Permission, error)
}

// GormStore implements Store on the relational schema.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a Store backed by db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("permission store: db is required")
	}
	return &GormStore{db: db}, nil
}

// ActiveUser returns the id and role of an active user or ErrUserNotFound.
func (s *GormStore) ActiveUser(ctx context.Context, userID string) (UserRecord, error) {
	var record UserRecord
	err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.User{}).
		Select("id", "role").
		Where("id = ? AND is_active = ?", userID, true).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("permission store: load user: %w", err)
	}
	return record, nil
}

// RolePermissions returns the permission names granted to role.
func (s *GormStore) RolePermissions(ctx context.Context, role string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.RolePermission{}).
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("role_permissions.role = ?", role).
		Order("permissions.name").
		Pluck("permissions.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("permission store: role %s grants: %w", role, err)
	}
	return names, nil
}

// TeamMemberships returns every team membership held by userID.
func (s *GormStore) TeamMemberships(ctx context.Context, userID string) ([]Membership, error) {
	var rows []struct {
		TeamID      string
		Role        string
		Permissions datatypes.JSON
	}
	err := s.db.WithContext(ensureContext(ctx)).
		Model(&models.TeamMembership{}).
		Select("team_id", "role", "permissions").
		Where("user_id = ?", userID).
		Order("team_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("permission store: team memberships: %w", err)
	}

	memberships := make([]Membership, 0, len(rows))
	for _, row := range rows {
		memberships = append(memberships, Membership{
			TeamID:      row.TeamID,
			Role:        row.Role,
			Permissions: []byte(row.Permissions),
		})
	}
	return memberships, nil
}

// Catalog lists every stored permission ordered by category then name.
func (s *GormStore) Catalog(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	if err := s.db.WithContext(ensureContext(ctx)).
		Order("category").
		Order("name").
		Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("permission store: catalog: %w", err)
	}
	return perms, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normaliseID(id string) string {
	return strings.TrimSpace(id)
}
