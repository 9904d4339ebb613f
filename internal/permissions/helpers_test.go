package permissions

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/models"
)

// fakeStore is an in-memory Store whose data tests can mutate between calls.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]UserRecord
	grants      map[string][]string
	memberships map[string][]Membership
	err         error

	started chan struct{}
	release chan struct{}

	membersStarted chan struct{}
	membersRelease chan struct{}

	userCalls atomic.Int32
	roleCalls atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]UserRecord),
		grants:      make(map[string][]string),
		memberships: make(map[string][]Membership),
	}
}

// block makes the next ActiveUser calls wait until unblock is called.
func (s *fakeStore) block() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = make(chan struct{}, 16)
	s.release = make(chan struct{})
}

// blockMemberships makes the next TeamMemberships calls wait until
// unblockMemberships is called, after the role grants were already read.
func (s *fakeStore) blockMemberships() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.membersStarted = make(chan struct{}, 16)
	s.membersRelease = make(chan struct{})
}

func (s *fakeStore) unblockMemberships() {
	s.mu.Lock()
	release := s.membersRelease
	s.membersRelease = nil
	s.mu.Unlock()
	if release != nil {
		close(release)
	}
}

func (s *fakeStore) unblock() {
	s.mu.Lock()
	release := s.release
	s.release = nil
	s.mu.Unlock()
	if release != nil {
		close(release)
	}
}

func (s *fakeStore) setUser(id, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = UserRecord{ID: id, Role: role}
}

func (s *fakeStore) setGrants(role string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[role] = names
}

func (s *fakeStore) addMembership(userID, teamID, role, custom string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw []byte
	if custom != "" {
		raw = []byte(custom)
	}
	s.memberships[userID] = append(s.memberships[userID], Membership{TeamID: teamID, Role: role, Permissions: raw})
}

func (s *fakeStore) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeStore) ActiveUser(ctx context.Context, userID string) (UserRecord, error) {
	s.userCalls.Add(1)

	s.mu.Lock()
	started, release := s.started, s.release
	s.mu.Unlock()
	if release != nil {
		started <- struct{}{}
		<-release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return UserRecord{}, s.err
	}
	user, ok := s.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user, nil
}

func (s *fakeStore) RolePermissions(ctx context.Context, role string) ([]string, error) {
	s.roleCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]string(nil), s.grants[role]...), nil
}

func (s *fakeStore) TeamMemberships(ctx context.Context, userID string) ([]Membership, error) {
	s.mu.Lock()
	started, release := s.membersStarted, s.membersRelease
	s.mu.Unlock()
	if release != nil {
		started <- struct{}{}
		<-release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]Membership(nil), s.memberships[userID]...), nil
}

func (s *fakeStore) Catalog(ctx context.Context) ([]models.Permission, error) {
	return nil, nil
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func createUser(t *testing.T, db *gorm.DB, role string, active bool) string {
	t.Helper()
	user := models.User{Email: role + "-" + uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, db.Create(&user).Error)
	if !active {
		require.NoError(t, db.Model(&user).Update("is_active", false).Error)
	}
	return user.ID
}

func grant(t *testing.T, db *gorm.DB, role string, names ...string) {
	t.Helper()
	for _, name := range names {
		perm := models.Permission{Name: name, Category: strings.SplitN(name, ".", 2)[0]}
		require.NoError(t, db.Where(models.Permission{Name: name}).Attrs(perm).FirstOrCreate(&perm).Error)
		require.NoError(t, db.Create(&models.RolePermission{Role: role, PermissionID: perm.ID}).Error)
	}
}

func createTeam(t *testing.T, db *gorm.DB, name string) string {
	t.Helper()
	team := models.Team{Name: name}
	require.NoError(t, db.Create(&team).Error)
	return team.ID
}

func addMember(t *testing.T, db *gorm.DB, teamID, userID, role, custom string) {
	t.Helper()
	membership := models.TeamMembership{TeamID: teamID, UserID: userID, Role: role}
	if custom != "" {
		membership.Permissions = datatypes.JSON(custom)
	}
	require.NoError(t, db.Create(&membership).Error)
}
