package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dealerwatch/internal/service"
)

type VINHandler struct {
	Query *service.InventoryQueryService
}

func (h *VINHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/vins/:vin", h.detail)
}

// @Summary Full audit view for one VIN
// @Tags vins
// @Param vin path string true "vehicle identification number"
// @Success 200 {object} apiResponse
// @Router /api/v1/vins/{vin} [get]
func (h *VINHandler) detail(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "query service unavailable", nil)
		return
	}
	vin := strings.TrimSpace(c.Param("vin"))
	if vin == "" {
		Error(c, http.StatusBadRequest, "invalid vin", nil)
		return
	}
	detail, err := h.Query.VINDetail(c.Request.Context(), vin)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if detail == nil {
		Error(c, http.StatusNotFound, "vin not found", nil)
		return
	}
	Ok(c, detail, nil)
}
