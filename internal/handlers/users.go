package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/services"
	"github.com/charlesng35/cmsauthz/pkg/response"
)

// UserHandler exposes the user attributes that drive authorization.
type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,role_name"`
}

type setStatusRequest struct {
	Active *bool `json:"is_active" validate:"required"`
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var body services.CreateUserInput
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.svc.Create(requestContext(c), body)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PATCH /api/users/:id/role
func (h *UserHandler) ChangeRole(c *gin.Context) {
	var body changeRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.svc.ChangeRole(requestContext(c), c.Param("id"), body.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PATCH /api/users/:id/status
func (h *UserHandler) SetStatus(c *gin.Context) {
	var body setStatusRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.svc.SetActive(requestContext(c), c.Param("id"), *body.Active)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}
