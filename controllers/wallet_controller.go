package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"payment-service/errs"
	"payment-service/middleware"
	"payment-service/models"
	"payment-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditMarker flips the settlement marker on the source payment so
// webhook replays stop re-publishing payment.completed once the wallet
// has the money.
type CreditMarker interface {
	MarkCredited(ctx context.Context, orderID uuid.UUID) error
}

type WalletController struct {
	Wallets  services.WalletService
	Payments CreditMarker
	Logger   *zap.Logger
}

func (wc *WalletController) respondError(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		wc.Logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func (wc *WalletController) merchantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		wc.respondError(c, http.StatusBadRequest, "Invalid merchant id", err)
		return uuid.Nil, false
	}
	return id, true
}

func (wc *WalletController) handleServiceError(c *gin.Context, err error, fallback string) {
	var appErr *errs.Error
	if errors.As(err, &appErr) {
		errs.Respond(c, appErr)
		return
	}
	wc.respondError(c, http.StatusInternalServerError, fallback, err)
}

// GetWallet returns the caller's wallet.
func (wc *WalletController) GetWallet(c *gin.Context) {
	restaurantID, ok := wc.merchantID(c)
	if !ok {
		return
	}
	wallet, err := wc.Wallets.GetWallet(c.Request.Context(), restaurantID)
	if err != nil {
		wc.handleServiceError(c, err, "Failed to load wallet")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": wallet})
}

// ListTransactions returns the caller's ledger history, newest first.
func (wc *WalletController) ListTransactions(c *gin.Context) {
	restaurantID, ok := wc.merchantID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txns, err := wc.Wallets.ListTransactions(c.Request.Context(), restaurantID, limit)
	if err != nil {
		wc.handleServiceError(c, err, "Failed to load transactions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": txns})
}

// Withdraw creates a payout request held for admin review.
func (wc *WalletController) Withdraw(c *gin.Context) {
	restaurantID, ok := wc.merchantID(c)
	if !ok {
		return
	}
	var req struct {
		Amount   int64           `json:"amount" binding:"required,min=1"`
		BankInfo models.BankInfo `json:"bank_info" binding:"required"`
		Note     string          `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		wc.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	payout, err := wc.Wallets.RequestWithdraw(c.Request.Context(), restaurantID, req.Amount, req.BankInfo, req.Note)
	if err != nil {
		wc.handleServiceError(c, err, "Failed to create payout request")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": payout})
}

// ListPayouts returns the caller's payout requests.
func (wc *WalletController) ListPayouts(c *gin.Context) {
	restaurantID, ok := wc.merchantID(c)
	if !ok {
		return
	}
	payouts, err := wc.Wallets.ListPayouts(c.Request.Context(), &restaurantID, models.PayoutStatus(c.Query("status")))
	if err != nil {
		wc.handleServiceError(c, err, "Failed to load payout requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payouts})
}

// InternalCredit is the service-to-service fallback mirroring the
// settlement consumer's semantics, including its idempotency: crediting
// the same order twice is acknowledged without a second balance change.
func (wc *WalletController) InternalCredit(c *gin.Context) {
	var req struct {
		RestaurantID string `json:"restaurant_id" binding:"required,uuid"`
		OrderID      string `json:"order_id" binding:"required,uuid"`
		Amount       int64  `json:"amount" binding:"required,min=1"`
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		wc.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	orderID := uuid.MustParse(req.OrderID)
	credited, err := wc.Wallets.Credit(c.Request.Context(),
		uuid.MustParse(req.RestaurantID), orderID, req.Amount, req.Description)
	if err != nil {
		wc.handleServiceError(c, err, "Failed to credit wallet")
		return
	}
	msg := "Wallet credited"
	if !credited {
		msg = "Order already credited"
	}
	// Best-effort, matching the settlement consumer: the credit is
	// already committed even if the marker write fails.
	if credited && wc.Payments != nil {
		if err := wc.Payments.MarkCredited(c.Request.Context(), orderID); err != nil {
			wc.Logger.Warn("Failed to mark payment credited",
				zap.String("order_id", req.OrderID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}
