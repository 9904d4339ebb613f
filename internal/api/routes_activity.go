package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/handlers"
	"github.com/charlesng35/cmsauthz/internal/middleware"
)

func registerActivityRoutes(api *gin.RouterGroup, handler *handlers.ActivityHandler, authz middleware.Authorizer) {
	logs := api.Group("/activity-logs")
	{
		logs.GET("", middleware.RequirePermission(authz, "activity.read"), handler.List)
		logs.GET("/export", middleware.RequirePermissions(authz, []string{"activity.read", "activity.export"}), handler.Export)
	}
}
