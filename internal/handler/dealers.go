package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dealerwatch/internal/models"
	"dealerwatch/internal/repository"
	"dealerwatch/internal/service"
	"dealerwatch/internal/urlbuilder"
)

type DealerHandler struct {
	Repo     repository.Repository
	Registry *service.DealerRegistryService
}

func (h *DealerHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/dealers")
	group.GET("", h.list)
	group.POST("", h.save)
	group.GET("/:id", h.get)
	group.GET("/:id/preview-url", h.previewURL)
	r.GET("/api/v1/models", h.modelList)
}

func (h *DealerHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListDealersParams{
		Limit:       limit,
		Offset:      offset,
		Active:      boolQueryPtr(c, "active"),
		Region:      strQueryPtr(c, "region"),
		BackendType: strQueryPtr(c, "backend_type"),
		OrderBy:     "name",
	}
	items, err := h.Repo.ListDealers(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountDealers(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

type saveDealerRequest struct {
	ID                   uint    `json:"id"`
	Name                 string  `json:"name" binding:"required"`
	Code                 *string `json:"code"`
	Region               *string `json:"region"`
	HomepageURL          string  `json:"homepage_url"`
	BackendType          string  `json:"backend_type" binding:"required"`
	InventoryURLTemplate string  `json:"inventory_url_template"`
	Active               *bool   `json:"active"`
}

// @Summary Create or update a dealer
// @Tags dealers
// @Accept json
// @Param request body saveDealerRequest true "dealer"
// @Success 200 {object} apiResponse
// @Router /api/v1/dealers [post]
func (h *DealerHandler) save(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusServiceUnavailable, "registry unavailable", nil)
		return
	}
	var req saveDealerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	dealer := &models.Dealer{
		ID:                   req.ID,
		Name:                 req.Name,
		Code:                 req.Code,
		Region:               req.Region,
		HomepageURL:          req.HomepageURL,
		BackendType:          req.BackendType,
		InventoryURLTemplate: req.InventoryURLTemplate,
		Active:               true,
	}
	if req.Active != nil {
		dealer.Active = *req.Active
	}
	if err := h.Registry.Save(c.Request.Context(), dealer); err != nil {
		var tmplErr *urlbuilder.TemplateError
		if errors.As(err, &tmplErr) {
			Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
			return
		}
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, dealer, nil)
}

func (h *DealerHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uintParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetDealerByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "dealer not found", nil)
		return
	}
	Ok(c, item, nil)
}

// previewURL resolves the dealer's inventory URL for a model without
// touching the dealer row or scheduling anything.
func (h *DealerHandler) previewURL(c *gin.Context) {
	if h.Registry == nil {
		Error(c, http.StatusServiceUnavailable, "registry unavailable", nil)
		return
	}
	id := uintParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	model := strings.TrimSpace(c.Query("model"))
	if model == "" {
		Error(c, http.StatusBadRequest, "model is required", nil)
		return
	}
	url, err := h.Registry.PreviewURL(c.Request.Context(), id, model)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"dealer_id": id, "model": model, "url": url}, nil)
}

func (h *DealerHandler) modelList(c *gin.Context) {
	Ok(c, urlbuilder.Models(), nil)
}
