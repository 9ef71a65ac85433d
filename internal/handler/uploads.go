package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"dealerwatch/internal/repository"
	"dealerwatch/internal/service"
)

// 20MB is far beyond any real locator export.
const maxUploadBytes = 20 << 20

type UploadHandler struct {
	Repo   repository.Repository
	Ingest *service.UploadIngestService
}

func (h *UploadHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/uploads")
	group.POST("", h.upload)
	group.GET("", h.list)
	group.GET("/:id", h.get)
}

// @Summary Ingest a vehicle locator CSV
// @Tags uploads
// @Accept multipart/form-data
// @Param file formData file true "locator CSV"
// @Success 200 {object} apiResponse
// @Router /api/v1/uploads [post]
func (h *UploadHandler) upload(c *gin.Context) {
	if h.Ingest == nil {
		Error(c, http.StatusServiceUnavailable, "ingest unavailable", nil)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		Error(c, http.StatusBadRequest, "file is required", nil)
		return
	}
	if fileHeader.Size > maxUploadBytes {
		Error(c, http.StatusRequestEntityTooLarge, "file too large", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	summary, err := h.Ingest.Ingest(c.Request.Context(), fileHeader.Filename, content)
	if err != nil {
		Error(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	Ok(c, summary, nil)
}

func (h *UploadHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListUploadsParams{
		Limit:  limit,
		Offset: offset,
		Status: strQueryPtr(c, "status"),
	}
	items, err := h.Repo.ListUploads(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *UploadHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetUploadByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "upload not found", nil)
		return
	}
	Ok(c, item, nil)
}
