package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/dto"
	"github.com/stagelink/gig-backend/internal/http/handlers/common"
	"github.com/stagelink/gig-backend/internal/models"
	"github.com/stagelink/gig-backend/internal/service"
)

type ProjectHandler struct {
	svc *service.LifecycleService
}

func NewProjectHandler(s *service.LifecycleService) *ProjectHandler {
	return &ProjectHandler{svc: s}
}

// Get GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	userID, role, ok := h.actor(c)
	if !ok {
		return
	}
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := h.svc.GetProject(c.Request.Context(), userID, role, projectID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// ListMine GET /projects
func (h *ProjectHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	projects, err := h.svc.ListProjectsByParticipant(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Accept POST /projects/:id/accept
func (h *ProjectHandler) Accept(c *gin.Context) {
	h.transition(c, h.svc.AcceptAgreement)
}

// Decline POST /projects/:id/decline
func (h *ProjectHandler) Decline(c *gin.Context) {
	h.transition(c, h.svc.DeclineAgreement)
}

// Deliver POST /projects/:id/deliver
func (h *ProjectHandler) Deliver(c *gin.Context) {
	h.transition(c, h.svc.MarkDelivered)
}

// Complete POST /projects/:id/complete
func (h *ProjectHandler) Complete(c *gin.Context) {
	h.transition(c, h.svc.ConfirmCompletion)
}

// Cancel POST /projects/:id/cancel
func (h *ProjectHandler) Cancel(c *gin.Context) {
	userID, role, ok := h.actor(c)
	if !ok {
		return
	}
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CancelProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := h.svc.Cancel(c.Request.Context(), userID, role, projectID, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) transition(c *gin.Context, op func(ctx context.Context, actorID, projectID uuid.UUID) (*models.GigProject, error)) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	project, err := op(c.Request.Context(), userID, projectID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) actor(c *gin.Context) (uuid.UUID, string, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return uuid.Nil, "", false
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return uuid.Nil, "", false
	}
	return userID, role, true
}
