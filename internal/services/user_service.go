package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/activity"
	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	apperrors "github.com/charlesng35/cmsauthz/pkg/errors"
	"github.com/charlesng35/cmsauthz/pkg/validator"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUserExists signals an email address is already registered.
	ErrUserExists = apperrors.New("USER_EXISTS", "Email already registered", http.StatusConflict)
)

// CreateUserInput describes the fields accepted when provisioning a user.
type CreateUserInput struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"omitempty,max=255"`
	FirstName string `json:"first_name" validate:"omitempty,max=255"`
	LastName  string `json:"last_name" validate:"omitempty,max=255"`
	Role      string `json:"role" validate:"omitempty,role_name"`
}

type roleInput struct {
	Role string `json:"role" validate:"required,role_name"`
}

// UserService owns the user attributes that feed permission resolution: the
// role and the active flag.
type UserService struct {
	db          *gorm.DB
	invalidator permissions.Invalidator
	activity    activity.Sink
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, invalidator permissions.Invalidator, sink activity.Sink) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:          db,
		invalidator: invalidator,
		activity:    sink,
	}, nil
}

// Create provisions a user. The role defaults to viewer.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Role = strings.TrimSpace(input.Role)
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}

	role := input.Role
	if role == "" {
		role = permissions.RoleViewer
	}

	user := &models.User{
		Email:     input.Email,
		Username:  strings.TrimSpace(input.Username),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      role,
		IsActive:  true,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	recordActivity(s.activity, ctx, "user.created", "user", user.ID, map[string]any{
		"email": user.Email,
		"role":  user.Role,
	})

	return user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// ChangeRole assigns a new role and drops the user's cached permissions.
func (s *UserService) ChangeRole(ctx context.Context, id, role string) (*models.User, error) {
	ctx = ensureContext(ctx)

	in := roleInput{Role: strings.TrimSpace(role)}
	if err := validator.ValidateStruct(in); err != nil {
		return nil, apperrors.NewBadRequest("invalid role name")
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == in.Role {
		return user, nil
	}

	previous := user.Role
	if err := s.db.WithContext(ctx).Model(user).Update("role", in.Role).Error; err != nil {
		return nil, fmt.Errorf("user service: update role: %w", err)
	}
	user.Role = in.Role

	invalidateUser(s.invalidator, ctx, user.ID)
	recordActivity(s.activity, ctx, "user.role_changed", "user", user.ID, map[string]any{
		"from": previous,
		"to":   in.Role,
	})

	return user, nil
}

// SetActive toggles the active state of an account. Inactive users resolve to
// no permissions at all.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("user service: update active state: %w", err)
	}
	user.IsActive = active

	action := "user.activated"
	if !active {
		action = "user.deactivated"
	}

	invalidateUser(s.invalidator, ctx, user.ID)
	recordActivity(s.activity, ctx, action, "user", user.ID, nil)

	return user, nil
}
