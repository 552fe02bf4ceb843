package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lektorek-app/lektorek-api/internal/service"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/response"
)

// PricingHandler exposes teacher price table endpoints.
type PricingHandler struct {
	service *service.PricingService
}

// NewPricingHandler constructs handler.
func NewPricingHandler(svc *service.PricingService) *PricingHandler {
	return &PricingHandler{service: svc}
}

// Get godoc
// @Summary Price table for the acting teacher
// @Tags Pricing
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /crm/pricing [get]
func (h *PricingHandler) Get(c *gin.Context) {
	pricing, err := h.service.Get(c.Request.Context(), currentActor(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pricing, nil)
}

// Set godoc
// @Summary Replace the acting teacher's price table
// @Tags Pricing
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SetPricingRequest true "Prices"
// @Success 200 {object} response.Envelope
// @Router /crm/pricing [put]
func (h *PricingHandler) Set(c *gin.Context) {
	var req service.SetPricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	pricing, err := h.service.Set(c.Request.Context(), currentActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pricing, nil)
}
