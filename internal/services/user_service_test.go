package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	apperrors "github.com/charlesng35/cmsauthz/pkg/errors"
	"github.com/charlesng35/cmsauthz/pkg/logger"
)

func TestNewUserServiceRequiresDB(t *testing.T) {
	_, err := NewUserService(nil, nil, nil)
	require.Error(t, err)
}

func TestUserServiceCreate(t *testing.T) {
	f := newFixture(t)
	svc, err := NewUserService(f.db, f.manager, f.recorder)
	require.NoError(t, err)

	user, err := svc.Create(f.adminContext(), CreateUserInput{Email: " Writer@Example.com ", Username: "writer"})
	require.NoError(t, err)
	require.Equal(t, "writer@example.com", user.Email)
	require.Equal(t, permissions.RoleViewer, user.Role)
	require.True(t, user.IsActive)

	_, err = svc.Create(context.Background(), CreateUserInput{Email: "writer@example.com"})
	require.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Create(context.Background(), CreateUserInput{Email: "not-an-email"})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.StatusCode)

	logs := f.activityFor(t, "user.created")
	require.Len(t, logs, 1)
	require.Equal(t, f.adminID, logs[0].UserID)
	require.Equal(t, user.ID, logs[0].ResourceID)
}

func TestUserServiceChangeRoleRevokesCachedPermissions(t *testing.T) {
	f := newFixture(t)
	svc, err := NewUserService(f.db, f.manager, f.recorder)
	require.NoError(t, err)

	userID := f.createUser(t, permissions.RoleViewer)
	require.False(t, f.allowed(t, userID, "content.update", ""))

	updated, err := svc.ChangeRole(f.adminContext(), userID, permissions.RoleEditor)
	require.NoError(t, err)
	require.Equal(t, permissions.RoleEditor, updated.Role)

	require.True(t, f.allowed(t, userID, "content.update", ""), "cached viewer set must not survive the role change")

	logs := f.activityFor(t, "user.role_changed")
	require.Len(t, logs, 1)
	require.Equal(t, "user", logs[0].ResourceType)
	require.Equal(t, "203.0.113.7", logs[0].IPAddress)
	details := decodeDetails(t, logs[0])
	require.Equal(t, "viewer", details["from"])
	require.Equal(t, "editor", details["to"])
}

func TestUserServiceChangeRoleValidation(t *testing.T) {
	f := newFixture(t)
	spy := &spyInvalidator{}
	svc, err := NewUserService(f.db, spy, f.recorder)
	require.NoError(t, err)

	userID := f.createUser(t, permissions.RoleAuthor)

	_, err = svc.ChangeRole(context.Background(), userID, "Not A Role")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.StatusCode)

	_, err = svc.ChangeRole(context.Background(), "missing", permissions.RoleEditor)
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.ChangeRole(context.Background(), userID, permissions.RoleAuthor)
	require.NoError(t, err)
	require.Empty(t, spy.users, "an unchanged role does not invalidate")
	require.Empty(t, f.activityFor(t, "user.role_changed"))
}

func TestUserServiceSetActive(t *testing.T) {
	f := newFixture(t)
	svc, err := NewUserService(f.db, f.manager, f.recorder)
	require.NoError(t, err)

	userID := f.createUser(t, permissions.RoleAdmin)
	require.True(t, f.allowed(t, userID, "settings.update", ""))

	user, err := svc.SetActive(f.adminContext(), userID, false)
	require.NoError(t, err)
	require.False(t, user.IsActive)
	require.False(t, f.allowed(t, userID, "settings.update", ""), "inactive users hold nothing")

	_, err = svc.SetActive(f.adminContext(), userID, true)
	require.NoError(t, err)
	require.True(t, f.allowed(t, userID, "settings.update", ""))

	require.Len(t, f.activityFor(t, "user.deactivated"), 1)
	require.Len(t, f.activityFor(t, "user.activated"), 1)

	_, err = svc.SetActive(context.Background(), "missing", false)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceInvalidationFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	f := newFixture(t)
	spy := &spyInvalidator{err: errors.New("redis: connection refused")}
	svc, err := NewUserService(f.db, spy, f.recorder)
	require.NoError(t, err)

	userID := f.createUser(t, permissions.RoleViewer)
	_, err = svc.ChangeRole(context.Background(), userID, permissions.RoleAuthor)
	require.NoError(t, err, "the committed write stands")
	require.Equal(t, []string{userID}, spy.users)

	entries := logs.FilterMessage("permission cache invalidation failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, userID, entries[0].ContextMap()["user_id"])
}

func TestUserServiceActivityFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	svc, err := NewUserService(f.db, f.manager, f.recorder)
	require.NoError(t, err)

	userID := f.createUser(t, permissions.RoleViewer)
	require.NoError(t, f.db.Migrator().DropTable(&models.ActivityLog{}))

	updated, err := svc.ChangeRole(f.adminContext(), userID, permissions.RoleEditor)
	require.NoError(t, err)
	require.Equal(t, permissions.RoleEditor, updated.Role)

	var stored models.User
	require.NoError(t, f.db.First(&stored, "id = ?", userID).Error)
	require.Equal(t, permissions.RoleEditor, stored.Role)
}
