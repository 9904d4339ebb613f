package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/activity"
	"github.com/charlesng35/cmsauthz/internal/auditctx"
	"github.com/charlesng35/cmsauthz/internal/database/testutil"
	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/internal/permissions"
)

// spyInvalidator records invalidation calls and optionally fails them.
type spyInvalidator struct {
	mu    sync.Mutex
	users []string
	all   int
	err   error
}

func (s *spyInvalidator) InvalidateUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	return s.err
}

func (s *spyInvalidator) InvalidateAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all++
	return s.err
}

type fixture struct {
	db       *gorm.DB
	manager  *permissions.Manager
	recorder *activity.Recorder
	adminID  string
}

// newFixture wires a real manager and recorder over a seeded in-memory database.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, err := permissions.Sync(context.Background(), db, permissions.DefaultCatalog())
	require.NoError(t, err)

	store, err := permissions.NewGormStore(db)
	require.NoError(t, err)
	manager, err := permissions.NewManager(store, permissions.NewMemoryCache())
	require.NoError(t, err)
	recorder, err := activity.NewRecorder(db)
	require.NoError(t, err)

	f := &fixture{db: db, manager: manager, recorder: recorder}
	f.adminID = f.createUser(t, permissions.RoleAdmin)
	return f
}

func (f *fixture) createUser(t *testing.T, role string) string {
	t.Helper()
	user := &models.User{
		Email:    uuid.NewString() + "@example.com",
		Username: "user-" + role,
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user.ID
}

func (f *fixture) createTeam(t *testing.T, name string) string {
	t.Helper()
	team := &models.Team{Name: name}
	require.NoError(t, f.db.Create(team).Error)
	return team.ID
}

// adminContext attributes activity to the fixture's admin.
func (f *fixture) adminContext() context.Context {
	return auditctx.WithActor(context.Background(), auditctx.Actor{
		UserID:    f.adminID,
		IPAddress: "203.0.113.7",
		UserAgent: "services-test",
	})
}

func (f *fixture) allowed(t *testing.T, userID, permission, teamID string) bool {
	t.Helper()
	ok, err := f.manager.HasPermission(context.Background(), userID, permission, teamID)
	require.NoError(t, err)
	return ok
}

func (f *fixture) activityFor(t *testing.T, action string) []models.ActivityLog {
	t.Helper()
	var logs []models.ActivityLog
	require.NoError(t, f.db.Where("action = ?", action).Order("created_at ASC").Find(&logs).Error)
	return logs
}

func decodeDetails(t *testing.T, log models.ActivityLog) map[string]any {
	t.Helper()
	var details map[string]any
	require.NoError(t, json.Unmarshal(log.Details, &details))
	return details
}
