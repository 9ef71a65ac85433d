package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dealerwatch/internal/repository"
	"dealerwatch/internal/service"
)

// SearchHandler is the read side: cross-dealer listing search plus the raw
// price event and observation logs behind it.
type SearchHandler struct {
	Repo  repository.Repository
	Query *service.InventoryQueryService
}

func (h *SearchHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/listings", h.listings)
	r.GET("/api/v1/price-events", h.priceEvents)
	r.GET("/api/v1/observations", h.observations)
}

// @Summary Search current listings across dealers
// @Tags listings
// @Param model query string false "vehicle model"
// @Param region query string false "dealer region"
// @Param status query string false "listing status"
// @Param dealer_id query int false "dealer id"
// @Param max_price query number false "advertised price ceiling"
// @Param below_msrp query bool false "only listings priced under MSRP"
// @Param seen_since query string false "RFC3339 lower bound on last_seen_at"
// @Param order_by query string false "sort key: last_seen_at, first_seen_at, advertised_price, price_delta_msrp, msrp, year"
// @Param ascending query bool false "sort ascending"
// @Success 200 {object} apiResponse
// @Router /api/v1/listings [get]
func (h *SearchHandler) listings(c *gin.Context) {
	if h.Query == nil {
		Error(c, http.StatusInternalServerError, "query service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListListingsParams{
		Limit:     limit,
		Offset:    offset,
		DealerID:  uintQueryPtr(c, "dealer_id"),
		VIN:       strQueryPtr(c, "vin"),
		Model:     strQueryPtr(c, "model"),
		Region:    strQueryPtr(c, "region"),
		Status:    strQueryPtr(c, "status"),
		MaxPrice:  decimalQueryPtr(c, "max_price"),
		BelowMSRP: boolQueryPtr(c, "below_msrp"),
		SeenSince: timeQueryPtr(c, "seen_since"),
		OrderBy: parseOrder(c.Query("order_by"), map[string]string{
			"last_seen_at":     "l.last_seen_at",
			"first_seen_at":    "l.first_seen_at",
			"advertised_price": "l.advertised_price",
			"price_delta_msrp": "l.price_delta_msrp",
			"msrp":             "v.msrp",
			"year":             "v.year",
		}),
		Asc: boolQueryPtr(c, "ascending"),
	}
	rows, total, err := h.Query.SearchListings(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, rows, paginationMeta(limit, offset, total))
}

func (h *SearchHandler) priceEvents(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPriceEventsParams{
		Limit:    limit,
		Offset:   offset,
		DealerID: uintQueryPtr(c, "dealer_id"),
		VIN:      strQueryPtr(c, "vin"),
		Since:    timeQueryPtr(c, "since"),
	}
	items, err := h.Repo.ListPriceEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPriceEvents(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *SearchHandler) observations(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListObservationsParams{
		Limit:    limit,
		Offset:   offset,
		DealerID: uintQueryPtr(c, "dealer_id"),
		VIN:      strQueryPtr(c, "vin"),
		JobID:    strQueryPtr(c, "job_id"),
		Source:   strQueryPtr(c, "source"),
		Since:    timeQueryPtr(c, "since"),
	}
	items, err := h.Repo.ListObservations(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountObservations(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
