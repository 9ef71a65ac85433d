package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dealerwatch/internal/repository"
)

type AnalyticsHandler struct {
	Repo repository.Repository
}

func (h *AnalyticsHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/analytics")
	group.GET("/overview", h.overview)
	group.GET("/dealers", h.dealers)
	group.GET("/status-counts", h.statusCounts)
}

func (h *AnalyticsHandler) overview(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	row, err := h.Repo.AnalyticsOverview(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, row, nil)
}

func (h *AnalyticsHandler) dealers(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	rows, err := h.Repo.DealerInventoryStats(c.Request.Context(), intQuery(c, "limit", 100))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, nil)
}

func (h *AnalyticsHandler) statusCounts(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	rows, err := h.Repo.ListingStatusCounts(c.Request.Context(), uintQueryPtr(c, "dealer_id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, nil)
}
