package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stagelink/gig-backend/internal/dto"
	"github.com/stagelink/gig-backend/internal/http/handlers/common"
	"github.com/stagelink/gig-backend/internal/scheduler"
	"github.com/stagelink/gig-backend/internal/service"
)

// AdminHandler — сервисные рычаги: внеплановый прогон задач, а также
// ручное списание и ручной возврат по проекту после сбоя шлюза.
type AdminHandler struct {
	jobs      *scheduler.Manager
	lifecycle *service.LifecycleService
}

func NewAdminHandler(jobs *scheduler.Manager, lifecycle *service.LifecycleService) *AdminHandler {
	return &AdminHandler{jobs: jobs, lifecycle: lifecycle}
}

// ListJobs GET /admin/jobs
func (h *AdminHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.JobNames()})
}

// RunJob POST /admin/jobs/run
func (h *AdminHandler) RunJob(c *gin.Context) {
	var req dto.RunJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.jobs.RunByName(c.Request.Context(), req.Name); err != nil {
		_ = c.Error(err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "задача выполнена", nil)
}

// ReleaseProject POST /admin/projects/:id/release
func (h *AdminHandler) ReleaseProject(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.lifecycle.ReleaseProject(c.Request.Context(), projectID); err != nil {
		_ = c.Error(err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "списание выполнено", nil)
}

// RefundProject POST /admin/projects/:id/refund
func (h *AdminHandler) RefundProject(c *gin.Context) {
	projectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.lifecycle.RefundProject(c.Request.Context(), projectID); err != nil {
		_ = c.Error(err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "возврат выполнен", nil)
}
