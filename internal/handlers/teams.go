package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/services"
	"github.com/charlesng35/cmsauthz/pkg/response"
)

type TeamHandler struct {
	svc *services.TeamService
}

func NewTeamHandler(svc *services.TeamService) *TeamHandler {
	return &TeamHandler{svc: svc}
}

// GET /api/teams/:teamId/members
func (h *TeamHandler) ListMembers(c *gin.Context) {
	members, err := h.svc.ListMembers(requestContext(c), c.Param("teamId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// PUT /api/teams/:teamId/members/:userId
func (h *TeamHandler) UpsertMember(c *gin.Context) {
	var body services.MemberInput
	if !bindAndValidate(c, &body) {
		return
	}

	member, err := h.svc.UpsertMember(requestContext(c), c.Param("teamId"), c.Param("userId"), body)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// DELETE /api/teams/:teamId/members/:userId
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveMember(requestContext(c), c.Param("teamId"), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
