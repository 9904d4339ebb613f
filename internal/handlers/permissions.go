package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/middleware"
	"github.com/charlesng35/cmsauthz/internal/permissions"
	"github.com/charlesng35/cmsauthz/internal/services"
	apperrors "github.com/charlesng35/cmsauthz/pkg/errors"
	"github.com/charlesng35/cmsauthz/pkg/response"
)

// PermissionHandler serves permission introspection and catalog sync.
type PermissionHandler struct {
	manager *permissions.Manager
	roles   *services.RoleService
}

func NewPermissionHandler(manager *permissions.Manager, roles *services.RoleService) *PermissionHandler {
	return &PermissionHandler{manager: manager, roles: roles}
}

type myPermissionsResponse struct {
	UserID          string              `json:"user_id"`
	Role            string              `json:"role"`
	Permissions     []string            `json:"permissions"`
	TeamPermissions map[string][]string `json:"team_permissions"`
}

type checkPermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,min=1,max=50,dive,permission_name"`
	TeamID      string   `json:"team_id" validate:"omitempty,max=64"`
}

// GET /api/permissions/my
func (h *PermissionHandler) MyPermissions(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}

	set, err := h.manager.UserPermissions(requestContext(c), userID)
	if err != nil {
		if errors.Is(err, permissions.ErrUserNotFound) {
			response.Error(c, apperrors.ErrUnauthorized)
			return
		}
		respondError(c, err)
		return
	}

	teams := make(map[string][]string, len(set.TeamPermissions))
	for _, teamID := range set.TeamIDs() {
		teams[teamID] = set.TeamPermissions[teamID].Names()
	}
	response.Success(c, http.StatusOK, myPermissionsResponse{
		UserID:          set.UserID,
		Role:            set.Role,
		Permissions:     set.Permissions.Names(),
		TeamPermissions: teams,
	})
}

// GET /api/permissions
func (h *PermissionHandler) List(c *gin.Context) {
	catalog, err := h.manager.Catalog(requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, catalog)
}

// POST /api/permissions/check
func (h *PermissionHandler) Check(c *gin.Context) {
	var body checkPermissionsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	results, err := h.manager.CheckMultiplePermissions(requestContext(c), middleware.UserID(c), body.Permissions, strings.TrimSpace(body.TeamID))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, results)
}

// POST /api/permissions/sync
func (h *PermissionHandler) Sync(c *gin.Context) {
	result, err := h.roles.ReseedCatalog(requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
