package services

import (
	"context"
	"encoding/json"

	"payment-service/kafka"
	"payment-service/models"

	"go.uber.org/zap"
)

// OrderCreatedConsumer feeds order.created events into the payment
// orchestrator.
type OrderCreatedConsumer struct {
	payments *PaymentService
	logger   *zap.Logger
}

func NewOrderCreatedConsumer(payments *PaymentService, logger *zap.Logger) *OrderCreatedConsumer {
	return &OrderCreatedConsumer{payments: payments, logger: logger}
}

func (c *OrderCreatedConsumer) Handle(ctx context.Context, value []byte) error {
	var evt models.OrderCreatedEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		c.logger.Warn("Invalid order.created JSON", zap.Error(err), zap.ByteString("payload", value))
		return kafka.Permanent(err)
	}
	if err := evt.Validate(); err != nil {
		c.logger.Warn("Rejected order.created event", zap.Error(err))
		return kafka.Permanent(err)
	}
	return c.payments.HandleOrderCreated(ctx, evt)
}
