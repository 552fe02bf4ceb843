package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lektorek-app/lektorek-api/internal/service"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/response"
)

// ExportHandler exposes CRM export generation and signed downloads.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// BookingsCSV godoc
// @Summary Export the acting teacher's bookings as CSV
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /crm/export/bookings [get]
func (h *ExportHandler) BookingsCSV(c *gin.Context) {
	result, err := h.service.BookingsCSV(c.Request.Context(), currentActor(c), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SchedulePDF godoc
// @Summary Export the acting teacher's weekly schedule as PDF
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /crm/export/schedule [get]
func (h *ExportHandler) SchedulePDF(c *gin.Context) {
	result, err := h.service.SchedulePDF(c.Request.Context(), currentActor(c), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a previously generated export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	filename, payload, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(filename, ".csv"):
		contentType = "text/csv"
	case strings.HasSuffix(filename, ".pdf"):
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}
