package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagelink/gig-backend/internal/dto"
	"github.com/stagelink/gig-backend/internal/http/handlers/common"
	"github.com/stagelink/gig-backend/internal/service"
)

type RatingHandler struct {
	svc *service.RatingService
}

func NewRatingHandler(s *service.RatingService) *RatingHandler {
	return &RatingHandler{svc: s}
}

// Submit POST /projects/:id/rating
func (h *RatingHandler) Submit(c *gin.Context) {
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

	var req dto.SubmitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	rating, err := h.svc.Submit(c.Request.Context(), userID, projectID, service.SubmitRatingInput{
		Overall:           req.Overall,
		Professionalism:   req.Professionalism,
		Punctuality:       req.Punctuality,
		Quality:           req.Quality,
		PaymentPromptness: req.PaymentPromptness,
		Review:            req.Review,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

// GetForProject GET /projects/:id/rating
func (h *RatingHandler) GetForProject(c *gin.Context) {
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

	ratings, err := h.svc.GetForProject(c.Request.Context(), userID, projectID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ratings)
}

// GetForUser GET /users/:id/ratings
func (h *RatingHandler) GetForUser(c *gin.Context) {
	targetID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	summary, err := h.svc.GetForUser(c.Request.Context(), targetID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
