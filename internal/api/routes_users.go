package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/handlers"
	"github.com/charlesng35/cmsauthz/internal/middleware"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler, authz middleware.Authorizer) {
	users := api.Group("/users")
	{
		users.POST("", middleware.RequirePermission(authz, "users.create"), handler.Create)
		users.GET("/:id", middleware.RequirePermission(authz, "users.read"), handler.Get)
		users.PATCH("/:id/role", middleware.RequirePermission(authz, "users.update"), handler.ChangeRole)
		users.PATCH("/:id/status", middleware.RequirePermission(authz, "users.update"), handler.SetStatus)
	}
}
