package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lektorek-app/lektorek-api/internal/service"
	"github.com/lektorek-app/lektorek-api/pkg/response"
)

// NotificationHandler exposes in-app notification endpoints.
type NotificationHandler struct {
	service *service.NotificationService
}

// NewNotificationHandler constructs handler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary List the actor's notifications, newest first
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	notifications, err := h.service.List(c.Request.Context(), currentActor(c), unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags Notifications
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
