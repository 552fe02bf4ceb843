package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lektorek-app/lektorek-api/internal/service"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/response"
)

// AvailabilityHandler exposes availability endpoints: the public teacher
// calendar and the CRM schedule editor.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: svc}
}

// GetTeacherAvailability godoc
// @Summary Public half-hour availability calendar for a teacher
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) GetTeacherAvailability(c *gin.Context) {
	view, err := h.service.GetTeacherAvailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// SetWeek godoc
// @Summary Replace the acting teacher's recurring weekly schedule
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SetAvailabilityRequest true "Weekly blocks"
// @Success 200 {object} response.Envelope
// @Router /crm/availability [put]
func (h *AvailabilityHandler) SetWeek(c *gin.Context) {
	var req service.SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	ids, err := h.service.SetWeeklyAvailability(c.Request.Context(), currentActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"block_ids": ids}, nil)
}

// ListWeek godoc
// @Summary List the acting teacher's recurring blocks
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /crm/availability [get]
func (h *AvailabilityHandler) ListWeek(c *gin.Context) {
	blocks, err := h.service.ListWeek(c.Request.Context(), currentActor(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// DeleteBlock godoc
// @Summary Delete one recurring block
// @Tags Availability
// @Security BearerAuth
// @Param id path string true "Block ID"
// @Success 204
// @Router /crm/availability/{id} [delete]
func (h *AvailabilityHandler) DeleteBlock(c *gin.Context) {
	if err := h.service.DeleteBlock(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetDayOverride godoc
// @Summary Block or restore a single date
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.DayOverrideRequest true "Override"
// @Success 200 {object} response.Envelope
// @Router /crm/day-override [post]
func (h *AvailabilityHandler) SetDayOverride(c *gin.Context) {
	var req service.DayOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	result, err := h.service.SetDayOverride(c.Request.Context(), currentActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListOverrides godoc
// @Summary List the acting teacher's date overrides in a range
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /crm/overrides [get]
func (h *AvailabilityHandler) ListOverrides(c *gin.Context) {
	overrides, err := h.service.ListOverrides(c.Request.Context(), currentActor(c).UserID, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overrides, nil)
}
