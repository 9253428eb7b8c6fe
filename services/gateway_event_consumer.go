package services

import (
	"context"
	"encoding/json"

	"payment-service/kafka"
	"payment-service/models"

	"go.uber.org/zap"
)

// GatewayEventConsumer applies verified gateway callbacks from the
// gateway events topic. The webhook handler only acknowledges the
// gateway after the event is on this topic, so a crash between the two
// redelivers here instead of losing the charge outcome.
type GatewayEventConsumer struct {
	payments *PaymentService
	logger   *zap.Logger
}

func NewGatewayEventConsumer(payments *PaymentService, logger *zap.Logger) *GatewayEventConsumer {
	return &GatewayEventConsumer{payments: payments, logger: logger}
}

func (c *GatewayEventConsumer) Handle(ctx context.Context, value []byte) error {
	var evt models.GatewayEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		c.logger.Warn("Invalid gateway event JSON", zap.Error(err), zap.ByteString("payload", value))
		return kafka.Permanent(err)
	}
	if err := evt.Validate(); err != nil {
		c.logger.Warn("Rejected gateway event", zap.Error(err))
		return kafka.Permanent(err)
	}

	switch evt.Type {
	case "payment_intent.succeeded":
		return c.payments.ApplyGatewaySuccess(ctx, evt.GatewayTransactionID, evt.PaymentID)
	case "payment_intent.payment_failed":
		reason := evt.Reason
		if reason == "" {
			reason = "charge failed"
		}
		return c.payments.ApplyGatewayFailure(ctx, evt.GatewayTransactionID, evt.PaymentID, reason)
	default:
		c.logger.Info("Ignoring gateway event type", zap.String("type", evt.Type))
		return nil
	}
}
