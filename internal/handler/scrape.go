package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dealerwatch/internal/repository"
	"dealerwatch/internal/service"
)

type ScrapeHandler struct {
	Repo         repository.Repository
	Orchestrator *service.ScrapeOrchestratorService
	Query        *service.InventoryQueryService
}

func (h *ScrapeHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/scrape-jobs")
	group.POST("", h.trigger)
	group.GET("", h.list)
	group.GET("/:id", h.get)
	group.POST("/:id/cancel", h.cancel)
}

type triggerJobRequest struct {
	Model      string  `json:"model" binding:"required"`
	Region     *string `json:"region"`
	IncludeVDP bool    `json:"include_vdp"`
}

// @Summary Run a scrape job for one model
// @Tags scrape-jobs
// @Accept json
// @Param request body triggerJobRequest true "job parameters"
// @Success 200 {object} apiResponse
// @Router /api/v1/scrape-jobs [post]
func (h *ScrapeHandler) trigger(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusServiceUnavailable, "orchestrator unavailable", nil)
		return
	}
	var req triggerJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	result, err := h.Orchestrator.RunJob(c.Request.Context(), service.JobRequest{
		Model:      req.Model,
		Region:     req.Region,
		IncludeVDP: req.IncludeVDP,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoDealers) {
			Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
			return
		}
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

func (h *ScrapeHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListScrapeJobsParams{
		Limit:   limit,
		Offset:  offset,
		Status:  strQueryPtr(c, "status"),
		Model:   strQueryPtr(c, "model"),
		OrderBy: "created_at",
	}
	items, err := h.Repo.ListScrapeJobs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountScrapeJobs(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Job detail with per-attempt task rows
// @Tags scrape-jobs
// @Param id path string true "job id"
// @Success 200 {object} apiResponse
// @Router /api/v1/scrape-jobs/{id} [get]
func (h *ScrapeHandler) get(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "query service unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	detail, err := h.Query.JobDetail(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if detail == nil {
		Error(c, http.StatusNotFound, "job not found", nil)
		return
	}
	Ok(c, detail, nil)
}

func (h *ScrapeHandler) cancel(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusServiceUnavailable, "orchestrator unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Orchestrator.Cancel(c.Request.Context(), id); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	job, _ := h.Repo.GetScrapeJobByID(c.Request.Context(), id)
	Ok(c, job, nil)
}
