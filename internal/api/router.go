package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/cmsauthz/internal/activity"
	"github.com/charlesng35/cmsauthz/internal/app"
	iauth "github.com/charlesng35/cmsauthz/internal/auth"
	"github.com/charlesng35/cmsauthz/internal/handlers"
	"github.com/charlesng35/cmsauthz/internal/middleware"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	"github.com/charlesng35/cmsauthz/internal/services"
)

// Dependencies carries the runtime components the HTTP surface is built from.
type Dependencies struct {
	DB          *gorm.DB
	JWT         *iauth.JWTService
	Permissions *permissions.Manager
	Activity    *activity.Recorder
	Catalog     permissions.Catalog
	Monitoring  app.MonitoringConfig
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("router: database handle must be provided")
	case d.JWT == nil:
		return errors.New("router: jwt service must be provided")
	case d.Permissions == nil:
		return errors.New("router: permission manager must be provided")
	case d.Activity == nil:
		return errors.New("router: activity recorder must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	users, err := services.NewUserService(deps.DB, deps.Permissions, deps.Activity)
	if err != nil {
		return nil, err
	}
	teams, err := services.NewTeamService(deps.DB, deps.Permissions, deps.Activity)
	if err != nil {
		return nil, err
	}
	roles, err := services.NewRoleService(deps.DB, deps.Permissions, deps.Activity, deps.Catalog)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	registerHealthRoutes(r, deps.DB, deps.Monitoring.Health)
	registerMetricsRoutes(r, deps.Monitoring.Prometheus)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT), middleware.Actor())

	authz := deps.Permissions
	registerPermissionRoutes(api, handlers.NewPermissionHandler(deps.Permissions, roles), authz)
	registerUserRoutes(api, handlers.NewUserHandler(users), authz)
	registerRoleRoutes(api, handlers.NewRoleHandler(roles), authz)
	registerTeamRoutes(api, handlers.NewTeamHandler(teams), authz)
	registerActivityRoutes(api, handlers.NewActivityHandler(deps.Activity), authz)

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
