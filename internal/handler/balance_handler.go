package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lektorek-app/lektorek-api/internal/service"
	appErrors "github.com/lektorek-app/lektorek-api/pkg/errors"
	"github.com/lektorek-app/lektorek-api/pkg/response"
)

// BalanceHandler exposes the internal ledger endpoints.
type BalanceHandler struct {
	service *service.BillingService
}

// NewBalanceHandler constructs handler.
func NewBalanceHandler(svc *service.BillingService) *BalanceHandler {
	return &BalanceHandler{service: svc}
}

// Get godoc
// @Summary Current balance for the actor
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /balance [get]
func (h *BalanceHandler) Get(c *gin.Context) {
	balance, err := h.service.GetBalance(c.Request.Context(), currentActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// Deposit godoc
// @Summary Top up the actor's balance
// @Tags Balance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AmountRequest true "Amount"
// @Success 200 {object} response.Envelope
// @Router /balance/deposit [post]
func (h *BalanceHandler) Deposit(c *gin.Context) {
	var req service.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	balance, err := h.service.Deposit(c.Request.Context(), currentActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// Withdraw godoc
// @Summary Withdraw earned funds (teachers)
// @Tags Balance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AmountRequest true "Amount"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /balance/withdraw [post]
func (h *BalanceHandler) Withdraw(c *gin.Context) {
	var req service.AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	balance, err := h.service.Withdraw(c.Request.Context(), currentActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}
