package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	apperrors "github.com/charlesng35/cmsauthz/pkg/errors"
)

func newRoleService(t *testing.T, f *fixture, inv permissions.Invalidator) *RoleService {
	t.Helper()
	svc, err := NewRoleService(f.db, inv, f.recorder, permissions.DefaultCatalog())
	require.NoError(t, err)
	return svc
}

func TestRoleServiceRolePermissions(t *testing.T) {
	f := newFixture(t)
	svc := newRoleService(t, f, f.manager)

	names, err := svc.RolePermissions(context.Background(), permissions.RoleViewer)
	require.NoError(t, err)
	require.Equal(t, []string{"content.read", "media.read"}, names)

	names, err = svc.RolePermissions(context.Background(), "nobody")
	require.NoError(t, err)
	require.Empty(t, names)
	require.NotNil(t, names)

	roles, err := svc.Roles(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "author", "editor", "viewer"}, roles)
}

func TestRoleServiceSetRolePermissionsFlushesCache(t *testing.T) {
	f := newFixture(t)
	svc := newRoleService(t, f, f.manager)

	authorID := f.createUser(t, permissions.RoleAuthor)
	require.False(t, f.allowed(t, authorID, "content.publish", ""))
	require.True(t, f.allowed(t, authorID, "media.upload", ""))

	names, err := svc.SetRolePermissions(f.adminContext(), permissions.RoleAuthor,
		[]string{"content.read", "content.publish", " content.read "})
	require.NoError(t, err)
	require.Equal(t, []string{"content.publish", "content.read"}, names)

	require.True(t, f.allowed(t, authorID, "content.publish", ""))
	require.False(t, f.allowed(t, authorID, "media.upload", ""), "revoked grants disappear from the cache")

	logs := f.activityFor(t, "role.permissions_updated")
	require.Len(t, logs, 1)
	require.Equal(t, "author", logs[0].ResourceID)
	details := decodeDetails(t, logs[0])
	require.ElementsMatch(t, []any{"content.publish"}, details["added"])
	require.ElementsMatch(t, []any{"content.create", "content.update", "media.read", "media.upload"}, details["removed"])
}

func TestRoleServiceRejectsUnknownPermissions(t *testing.T) {
	f := newFixture(t)
	spy := &spyInvalidator{}
	svc := newRoleService(t, f, spy)

	_, err := svc.SetRolePermissions(context.Background(), permissions.RoleViewer, []string{"content.read", "content.teleport"})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	require.Contains(t, appErr.Message, "content.teleport")
	require.Zero(t, spy.all)

	names, err := svc.RolePermissions(context.Background(), permissions.RoleViewer)
	require.NoError(t, err)
	require.Equal(t, []string{"content.read", "media.read"}, names, "grants untouched after a rejected write")

	_, err = svc.SetRolePermissions(context.Background(), "Bad Role", nil)
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}

func TestRoleServiceSetRolePermissionsEmptyClearsGrants(t *testing.T) {
	f := newFixture(t)
	spy := &spyInvalidator{}
	svc := newRoleService(t, f, spy)

	names, err := svc.SetRolePermissions(context.Background(), permissions.RoleViewer, nil)
	require.NoError(t, err)
	require.Empty(t, names)
	require.Equal(t, 1, spy.all)

	var count int64
	require.NoError(t, f.db.Model(&models.RolePermission{}).Where("role = ?", "viewer").Count(&count).Error)
	require.Zero(t, count)
}

func TestRoleServiceReseedCatalog(t *testing.T) {
	f := newFixture(t)
	spy := &spyInvalidator{}
	svc := newRoleService(t, f, spy)

	_, err := svc.SetRolePermissions(context.Background(), permissions.RoleViewer, []string{"content.read"})
	require.NoError(t, err)
	require.NoError(t, f.db.Where("role = ?", permissions.RoleAuthor).Delete(&models.RolePermission{}).Error)

	result, err := svc.ReseedCatalog(f.adminContext())
	require.NoError(t, err)
	require.Equal(t, len(permissions.DefaultCatalog().Definitions), result.Permissions)
	require.Equal(t, []string{permissions.RoleAuthor}, result.SeededRoles)
	require.Equal(t, 2, spy.all)

	viewer, err := svc.RolePermissions(context.Background(), permissions.RoleViewer)
	require.NoError(t, err)
	require.Equal(t, []string{"content.read"}, viewer, "edited roles keep their grants")

	require.Len(t, f.activityFor(t, "permissions.synced"), 1)
}
