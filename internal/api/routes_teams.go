package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/handlers"
	"github.com/charlesng35/cmsauthz/internal/middleware"
)

func registerTeamRoutes(api *gin.RouterGroup, handler *handlers.TeamHandler, authz middleware.Authorizer) {
	scoped := middleware.TeamParam("teamId")

	members := api.Group("/teams/:teamId/members")
	{
		members.GET("", middleware.RequireAnyPermission(authz, []string{"teams.read", "teams.manage"}, scoped), handler.ListMembers)
		members.PUT("/:userId", middleware.RequirePermission(authz, "teams.manage", scoped), handler.UpsertMember)
		members.DELETE("/:userId", middleware.RequirePermission(authz, "teams.manage", scoped), handler.RemoveMember)
	}
}
