package controllers

import (
	"encoding/json"
	"net/http"

	"payment-service/kafka"
	"payment-service/models"
	"payment-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// WebhookController verifies gateway callbacks and hands them to the
// broker. The verified event is published to the gateway events topic
// before the gateway gets its 200, so a crash after the ack never loses
// the charge outcome; the consumer applies it with the usual retry and
// DLQ machinery.
type WebhookController struct {
	Stripe    *services.StripeService
	Publisher kafka.EventPublisher
	Topic     string
	Logger    *zap.Logger
}

// StripeWebhook verifies and acknowledges gateway callbacks. A bad
// signature is rejected with no side effects. A verified, relevant
// event is acknowledged only once it has a durable copy on the gateway
// events topic; if the publish fails the gateway gets a 5xx and
// retries.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	event, err := wc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		wc.Logger.Warn("Webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid webhook"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		wc.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "ignored"})
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		wc.Logger.Error("Failed to decode payment intent", zap.String("event_id", event.ID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid webhook"})
		return
	}

	gw := models.GatewayEvent{
		Type:                 string(event.Type),
		GatewayTransactionID: pi.ID,
		PaymentID:            pi.Metadata["payment_id"],
	}
	if event.Type == "payment_intent.payment_failed" {
		gw.Reason = "charge failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			gw.Reason = pi.LastPaymentError.Msg
		}
	}

	payload, err := json.Marshal(gw)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to record webhook"})
		return
	}
	if err := wc.Publisher.Publish(c.Request.Context(), wc.Topic, pi.ID, payload); err != nil {
		wc.Logger.Error("Failed to persist gateway event",
			zap.String("event_id", event.ID),
			zap.String("payment_intent_id", pi.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to record webhook"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "received"})
}
