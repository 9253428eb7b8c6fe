package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payment-service/kafka"
	"payment-service/models"
	"payment-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementConsumer credits merchant wallets from order.completed
// events. Crediting requires both signals to agree: the order must be
// completed and the payment paid. The COMPLETED EARN row per order is
// the idempotency anchor, so redelivered events never double-credit.
type SettlementConsumer struct {
	wallets  repository.WalletRepository
	payments repository.PaymentRepository
	logger   *zap.Logger
}

func NewSettlementConsumer(wallets repository.WalletRepository, payments repository.PaymentRepository, logger *zap.Logger) *SettlementConsumer {
	return &SettlementConsumer{wallets: wallets, payments: payments, logger: logger}
}

func (c *SettlementConsumer) Handle(ctx context.Context, value []byte) error {
	var evt models.OrderCompletedEvent
	if err := json.Unmarshal(value, &evt); err != nil {
		c.logger.Warn("Invalid order.completed JSON", zap.Error(err), zap.ByteString("payload", value))
		return kafka.Permanent(err)
	}
	if err := evt.Validate(); err != nil {
		// Data-quality failure; retrying cannot fix it.
		c.logger.Warn("Rejected order.completed event", zap.Error(err))
		return kafka.Permanent(err)
	}

	if evt.Status != "completed" || !evt.Paid() {
		c.logger.Warn("Settlement gate not met; discarding",
			zap.String("order_id", evt.OrderID),
			zap.String("status", evt.Status),
			zap.String("payment_status", evt.PaymentStatus),
		)
		return nil
	}

	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return kafka.Permanent(fmt.Errorf("order.completed bad order_id %q: %w", evt.OrderID, err))
	}
	restaurantID, err := uuid.Parse(evt.RestaurantID)
	if err != nil {
		return kafka.Permanent(fmt.Errorf("order.completed bad restaurant_id %q: %w", evt.RestaurantID, err))
	}

	// Cheap pre-check outside the transaction so duplicate deliveries
	// never contend for the wallet row.
	credited, err := c.wallets.HasCompletedEarn(ctx, orderID)
	if err != nil {
		return err
	}
	if credited {
		c.logger.Info("Order already settled; skipping", zap.String("order_id", evt.OrderID))
		return nil
	}

	err = c.wallets.CreditEarning(ctx, restaurantID, orderID, evt.AmountForMerchant,
		fmt.Sprintf("Earning for order %s", evt.OrderID))
	if errors.Is(err, repository.ErrDuplicateEarn) {
		c.logger.Info("Order already settled; skipping", zap.String("order_id", evt.OrderID))
		return nil
	}
	if err != nil {
		// Nack: the credit rolled back entirely, redelivery retries it.
		return err
	}

	c.logger.Info("Merchant wallet credited",
		zap.String("order_id", evt.OrderID),
		zap.String("restaurant_id", evt.RestaurantID),
		zap.Int64("amount", evt.AmountForMerchant),
	)

	// Best-effort marker so webhook replays short-circuit before the
	// ledger. The credit itself is already committed.
	if err := c.payments.MarkCredited(ctx, orderID); err != nil {
		c.logger.Warn("Failed to mark payment credited",
			zap.String("order_id", evt.OrderID), zap.Error(err))
	}
	return nil
}
