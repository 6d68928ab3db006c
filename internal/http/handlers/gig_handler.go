package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stagelink/gig-backend/internal/dto"
	"github.com/stagelink/gig-backend/internal/http/handlers/common"
	"github.com/stagelink/gig-backend/internal/service"
)

type GigHandler struct {
	svc *service.LifecycleService
}

func NewGigHandler(s *service.LifecycleService) *GigHandler {
	return &GigHandler{svc: s}
}

// Create POST /gigs
func (h *GigHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateGigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), userID, service.CreateGigInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
		DateNeeded:  req.DateNeeded,
		ExpiresAt:   req.ExpiresAt,
		Location:    req.Location,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// Get GET /gigs/:id
func (h *GigHandler) Get(c *gin.Context) {
	postID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	post, err := h.svc.GetPost(c.Request.Context(), postID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// ListMine GET /gigs
func (h *GigHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	posts, err := h.svc.ListPostsByPoster(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// ConfirmMatch POST /gigs/:id/confirm
func (h *GigHandler) ConfirmMatch(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	postID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ConfirmMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		common.RespondBadRequest(c, "provider_id должен быть валидным UUID")
		return
	}

	project, err := h.svc.ConfirmMatch(c.Request.Context(), userID, postID, providerID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, project)
}
