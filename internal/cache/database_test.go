package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/cmsauthz/internal/database/testutil"
	"github.com/charlesng35/cmsauthz/internal/models"
)

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "permissions:u1", []byte("one"), time.Minute))
	require.NoError(t, store.Set(ctx, "permissions:u1", []byte("two"), time.Minute))

	value, ok, err := store.Get(ctx, "permissions:u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", string(value))

	require.NoError(t, store.Delete(ctx, "permissions:u1"))
	_, ok, err = store.Get(ctx, "permissions:u1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreExpiresEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "forever", []byte("v"), 0))

	now = now.Add(2 * time.Minute)

	_, ok, err := store.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, ok)

	var count int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Where("key = ?", "short").Count(&count).Error)
	require.Zero(t, count, "expired entries are removed on read")
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("v"), time.Hour))
	require.NoError(t, store.Set(ctx, "c", []byte("v"), 0))

	now = now.Add(10 * time.Minute)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}

func TestDatabaseStoreDeletePrefix(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "permissions:u1", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "permissions:u2", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "permissionsXu3", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "perm_ssions:u4", []byte("v"), time.Minute))

	require.NoError(t, store.DeletePrefix(ctx, "permissions:"))

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Order("key").Pluck("key", &keys).Error)
	require.Equal(t, []string{"perm_ssions:u4", "permissionsXu3"}, keys)

	require.Error(t, store.DeletePrefix(ctx, ""))
}

func TestNewDatabaseStoreNil(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	require.Error(t, store.Set(context.Background(), "k", nil, 0))
}
