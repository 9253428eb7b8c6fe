package controllers

import (
	"errors"
	"net/http"

	"payment-service/errs"
	"payment-service/models"
	"payment-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PayoutController is the admin review surface for payout requests.
type PayoutController struct {
	Wallets services.WalletService
	Logger  *zap.Logger
}

func (pc *PayoutController) respondError(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		pc.Logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func (pc *PayoutController) handleServiceError(c *gin.Context, err error, fallback string) {
	var appErr *errs.Error
	if errors.As(err, &appErr) {
		errs.Respond(c, appErr)
		return
	}
	pc.respondError(c, http.StatusInternalServerError, fallback, err)
}

// ListPayouts lists payout requests across merchants, optionally
// filtered by status (defaults to pending review).
func (pc *PayoutController) ListPayouts(c *gin.Context) {
	status := models.PayoutStatus(c.DefaultQuery("status", string(models.PayoutPending)))
	payouts, err := pc.Wallets.ListPayouts(c.Request.Context(), nil, status)
	if err != nil {
		pc.handleServiceError(c, err, "Failed to load payout requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payouts})
}

// ApprovePayout debits the wallet and completes the request atomically.
func (pc *PayoutController) ApprovePayout(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		pc.respondError(c, http.StatusBadRequest, "Invalid payout id", err)
		return
	}
	payout, err := pc.Wallets.ApprovePayout(c.Request.Context(), payoutID)
	if err != nil {
		pc.handleServiceError(c, err, "Failed to approve payout")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payout})
}

// RejectPayout fails the request with a reason. The balance was never
// debited at request time, so no compensating credit happens here.
func (pc *PayoutController) RejectPayout(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		pc.respondError(c, http.StatusBadRequest, "Invalid payout id", err)
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		pc.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	payout, err := pc.Wallets.RejectPayout(c.Request.Context(), payoutID, req.Reason)
	if err != nil {
		pc.handleServiceError(c, err, "Failed to reject payout")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payout})
}
