package services

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-service/kafka"
	"payment-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefundConsumer reverses captured payments when orders are cancelled.
// Gateway failures propagate so the message is redelivered: money has
// already been captured, so a refund must eventually succeed or land in
// the DLQ for escalation.
type RefundConsumer struct {
	payments *PaymentService
	logger   *zap.Logger
}

func NewRefundConsumer(payments *PaymentService, logger *zap.Logger) *RefundConsumer {
	return &RefundConsumer{payments: payments, logger: logger}
}

func (c *RefundConsumer) Handle(ctx context.Context, value []byte) error {
	var evt models.OrderCancelledEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		c.logger.Warn("Invalid order.cancelled JSON", zap.Error(err), zap.ByteString("payload", value))
		return kafka.Permanent(err)
	}
	if err := evt.Validate(); err != nil {
		c.logger.Warn("Rejected order.cancelled event", zap.Error(err))
		return kafka.Permanent(err)
	}

	if !evt.RefundRequired {
		c.logger.Info("Cancellation without refund; discarding",
			zap.String("order_id", evt.OrderID),
			zap.String("cancelled_by", evt.CancelledBy),
		)
		return nil
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return kafka.Permanent(fmt.Errorf("order.cancelled bad order_id %q: %w", evt.OrderID, err))
	}

	reason := evt.Reason
	if reason == "" {
		reason = "order cancelled"
	}
	return c.payments.RefundForOrder(ctx, orderID, reason)
}
