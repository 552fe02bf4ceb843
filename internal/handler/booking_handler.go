package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lektorek-app/lektorek-api/internal/models"
	"github.com/lektorek-app/lektorek-api/internal/service"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/response"
)

// BookingHandler exposes the booking lifecycle endpoints.
type BookingHandler struct {
	service *service.BookingService
	metrics *service.MetricsService
}

// NewBookingHandler constructs handler.
func NewBookingHandler(svc *service.BookingService, metrics *service.MetricsService) *BookingHandler {
	return &BookingHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Book a lesson slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateBookingRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	booking, err := h.service.Create(c.Request.Context(), currentActor(c), req)
	if err != nil {
		h.metrics.RecordBookingRejected(appErrors.FromError(err).Code)
		response.Error(c, err)
		return
	}
	h.metrics.RecordBookingCreated()
	response.Created(c, booking)
}

// List godoc
// @Summary List bookings visible to the actor
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	filter := models.BookingFilter{
		DateFrom: c.Query("from"),
		DateTo:   c.Query("to"),
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseBookingStatus(raw)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown booking status"))
			return
		}
		filter.Status = &status
	}

	bookings, err := h.service.List(c.Request.Context(), currentActor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel godoc
// @Summary Cancel an active booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body cancelRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	booking, err := h.service.Cancel(c.Request.Context(), currentActor(c), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSettlement(string(models.StatusCancelled))
	response.JSON(c, http.StatusOK, booking, nil)
}

// UpdateStatus godoc
// @Summary Move a booking to a terminal status
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body service.UpdateStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/status [patch]
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	booking, err := h.service.UpdateStatus(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSettlement(string(booking.Status))
	response.JSON(c, http.StatusOK, booking, nil)
}

// UpdateNotes godoc
// @Summary Replace the notes on a booking
// @Tags Bookings
// @Accept json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body service.UpdateNotesRequest true "Notes"
// @Success 204
// @Router /bookings/{id}/notes [patch]
func (h *BookingHandler) UpdateNotes(c *gin.Context) {
	var req service.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	if err := h.service.UpdateNotes(c.Request.Context(), currentActor(c), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// WeekView godoc
// @Summary Teacher week view with student identity
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /crm/bookings [get]
func (h *BookingHandler) WeekView(c *gin.Context) {
	bookings, err := h.service.WeekView(c.Request.Context(), currentActor(c), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Stats godoc
// @Summary Booking counters for the acting teacher
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /crm/stats [get]
func (h *BookingHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
