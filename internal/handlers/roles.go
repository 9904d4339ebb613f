package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/services"
	"github.com/charlesng35/cmsauthz/pkg/response"
)

type RoleHandler struct {
	svc *services.RoleService
}

func NewRoleHandler(svc *services.RoleService) *RoleHandler {
	return &RoleHandler{svc: svc}
}

type rolePermissionsResponse struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"dive,permission_name"`
}

// GET /api/roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.svc.Roles(requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/roles/:role/permissions
func (h *RoleHandler) Permissions(c *gin.Context) {
	role := c.Param("role")
	names, err := h.svc.RolePermissions(requestContext(c), role)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, rolePermissionsResponse{Role: role, Permissions: names})
}

// PUT /api/roles/:role/permissions
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	var body setRolePermissionsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role := c.Param("role")
	names, err := h.svc.SetRolePermissions(requestContext(c), role, body.Permissions)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, rolePermissionsResponse{Role: role, Permissions: names})
}
