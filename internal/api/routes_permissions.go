package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/handlers"
	"github.com/charlesng35/cmsauthz/internal/middleware"
)

func registerPermissionRoutes(api *gin.RouterGroup, handler *handlers.PermissionHandler, authz middleware.Authorizer) {
	perms := api.Group("/permissions")
	{
		perms.GET("", middleware.RequirePermission(authz, "permissions.read"), handler.List)
		perms.GET("/my", middleware.RequireAuth(), handler.MyPermissions)
		perms.POST("/check", middleware.RequireAuth(), handler.Check)
		perms.POST("/sync", middleware.RequirePermission(authz, "permissions.manage"), handler.Sync)
	}
}

func registerRoleRoutes(api *gin.RouterGroup, handler *handlers.RoleHandler, authz middleware.Authorizer) {
	roles := api.Group("/roles")
	{
		roles.GET("", middleware.RequirePermission(authz, "permissions.read"), handler.List)
		roles.GET("/:role/permissions", middleware.RequirePermission(authz, "permissions.read"), handler.Permissions)
		roles.PUT("/:role/permissions", middleware.RequirePermission(authz, "permissions.manage"), handler.SetPermissions)
	}
}
