package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lektorek-app/lektorek-api/internal/service"
	"github.com/lektorek-app/lektorek-api/pkg/response"
)

// UserHandler exposes admin account management endpoints.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler constructs handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// Delete godoc
// @Summary Delete a user and all their data (admin)
// @Tags Users
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
