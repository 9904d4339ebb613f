package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/activity"
	"github.com/charlesng35/cmsauthz/internal/api"
	"github.com/charlesng35/cmsauthz/internal/app"
	iauth "github.com/charlesng35/cmsauthz/internal/auth"
	sharedtestutil "github.com/charlesng35/cmsauthz/internal/database/testutil"
	"github.com/charlesng35/cmsauthz/internal/models"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	"github.com/charlesng35/cmsauthz/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T           *testing.T
	DB          *gorm.DB
	Router      *gin.Engine
	JWT         *iauth.JWTService
	Permissions *permissions.Manager
	Activity    *activity.Recorder
}

// NewEnv provisions a fresh handler test environment with migrations and the
// default permission catalog applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	catalog := permissions.DefaultCatalog()
	_, err := permissions.Sync(context.Background(), db, catalog)
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	store, err := permissions.NewGormStore(db)
	require.NoError(t, err)
	manager, err := permissions.NewManager(store, permissions.NewMemoryCache(), permissions.WithTTL(time.Minute))
	require.NoError(t, err)

	recorder, err := activity.NewRecorder(db)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:          db,
		JWT:         jwtSvc,
		Permissions: manager,
		Activity:    recorder,
		Catalog:     catalog,
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	})
	require.NoError(t, err)

	return &Env{
		T:           t,
		DB:          db,
		Router:      router,
		JWT:         jwtSvc,
		Permissions: manager,
		Activity:    recorder,
	}
}

// CreateUser inserts an active user holding role and returns the record.
func (e *Env) CreateUser(role string) *models.User {
	e.T.Helper()

	username := role + "-" + uuid.NewString()[:8]
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		IsActive: true,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// CreateTeam inserts a team and returns its identifier.
func (e *Env) CreateTeam(name string) string {
	e.T.Helper()

	team := &models.Team{Name: name}
	require.NoError(e.T, e.DB.Create(team).Error)
	return team.ID
}

// Token issues an access token for user.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Role: user.Role})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "handler-tests")

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
