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

type PaymentController struct {
	Payments *services.PaymentService
	Logger   *zap.Logger
}

// respondError logs a warning and writes the standard error envelope.
func (pc *PaymentController) respondError(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		pc.Logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// CreatePayment opens a payment for an order. This is the synchronous
// fallback to the order.created consumer and shares its idempotency:
// re-posting the same order returns the existing payment.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	var req struct {
		OrderID      string `json:"order_id" binding:"required,uuid"`
		PayerID      string `json:"payer_id" binding:"required,uuid"`
		Amount       int64  `json:"amount" binding:"required,min=1"`
		Currency     string `json:"currency" binding:"required"`
		Method       string `json:"method" binding:"required"`
		RestaurantID string `json:"restaurant_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		pc.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	evt := models.OrderCreatedEvent{
		OrderID:      req.OrderID,
		PayerID:      req.PayerID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Method:       req.Method,
		RestaurantID: req.RestaurantID,
	}
	if err := pc.Payments.HandleOrderCreated(c.Request.Context(), evt); err != nil {
		pc.respondError(c, http.StatusInternalServerError, "Failed to create payment", err)
		return
	}

	payment, err := pc.Payments.GetPaymentForOrder(c.Request.Context(), uuid.MustParse(req.OrderID))
	if err != nil {
		pc.respondError(c, http.StatusInternalServerError, "Failed to load payment", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payment})
}

// GetPayment returns the payment row for an order.
func (pc *PaymentController) GetPayment(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		pc.respondError(c, http.StatusBadRequest, "Invalid order id", err)
		return
	}
	payment, err := pc.Payments.GetPaymentForOrder(c.Request.Context(), orderID)
	if err != nil {
		errs.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": payment})
}

// RefundPayment issues a manual (possibly partial) refund.
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		pc.respondError(c, http.StatusBadRequest, "Invalid payment id", err)
		return
	}
	var req struct {
		Amount int64  `json:"amount" binding:"min=0"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		pc.respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := pc.Payments.Refund(c.Request.Context(), paymentID, req.Amount, req.Reason); err != nil {
		var appErr *errs.Error
		if errors.As(err, &appErr) {
			errs.Respond(c, appErr)
			return
		}
		pc.respondError(c, http.StatusInternalServerError, "Refund failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Refund issued"})
}
