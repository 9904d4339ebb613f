package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/cmsauthz/internal/database/testutil"
	"github.com/charlesng35/cmsauthz/internal/models"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	catalog := DefaultCatalog()
	require.NoError(t, catalog.Validate())
	require.Equal(t, []string{RoleAdmin, RoleAuthor, RoleEditor, RoleViewer}, catalog.Roles())
	require.ElementsMatch(t, catalog.Names(), catalog.RoleGrants[RoleAdmin])
}

func TestCatalogValidateRejectsBadDefinitions(t *testing.T) {
	cases := map[string]Catalog{
		"empty name": {Definitions: []Definition{{Name: " ", Category: "x"}}},
		"no category": {Definitions: []Definition{{Name: "a.b"}}},
		"duplicate": {Definitions: []Definition{
			{Name: "a.b", Category: "a"},
			{Name: "a.b", Category: "a"},
		}},
		"unknown grant": {
			Definitions: []Definition{{Name: "a.b", Category: "a"}},
			RoleGrants:  map[string][]string{"viewer": {"a.c"}},
		},
	}
	for name, catalog := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, catalog.Validate())
		})
	}
}

func TestSyncSeedsCatalogOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()
	catalog := DefaultCatalog()

	result, err := Sync(ctx, db, catalog)
	require.NoError(t, err)
	require.Equal(t, len(catalog.Definitions), result.Permissions)
	require.Equal(t, catalog.Roles(), result.SeededRoles)

	var count int64
	require.NoError(t, db.Model(&models.Permission{}).Count(&count).Error)
	require.Equal(t, int64(len(catalog.Definitions)), count)

	// An administrator trims the viewer role; a resync must keep that edit.
	require.NoError(t, db.Where("role = ?", RoleViewer).
		Where("permission_id IN (?)", db.Model(&models.Permission{}).Select("id").Where("name = ?", "media.read")).
		Delete(&models.RolePermission{}).Error)

	catalog.Definitions[0].Description = "Read any content entry"
	result, err = Sync(ctx, db, catalog)
	require.NoError(t, err)
	require.Empty(t, result.SeededRoles)

	var perm models.Permission
	require.NoError(t, db.First(&perm, "name = ?", catalog.Definitions[0].Name).Error)
	require.Equal(t, "Read any content entry", perm.Description)

	store, err := NewGormStore(db)
	require.NoError(t, err)
	viewer, err := store.RolePermissions(ctx, RoleViewer)
	require.NoError(t, err)
	require.Equal(t, []string{"content.read"}, viewer)
}

func TestSyncedCatalogDrivesManager(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()
	_, err := Sync(ctx, db, DefaultCatalog())
	require.NoError(t, err)

	editor := createUser(t, db, RoleEditor, true)
	store, err := NewGormStore(db)
	require.NoError(t, err)
	manager := newTestManager(t, store, nil)

	results, err := manager.CheckMultiplePermissions(ctx, editor,
		[]string{"content.publish", "workflow.transition", "users.delete", "permissions.manage"}, "")
	require.NoError(t, err)
	require.Equal(t, map[string]bool{
		"content.publish":     true,
		"workflow.transition": true,
		"users.delete":        false,
		"permissions.manage":  false,
	}, results)

	perms, err := manager.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, perms, len(DefaultCatalog().Definitions))
	require.Equal(t, "activity", perms[0].Category)
}

func TestSyncRequiresDB(t *testing.T) {
	_, err := Sync(context.Background(), nil, DefaultCatalog())
	require.Error(t, err)
}
