package services

import (
	"context"
	"errors"
	"math"
	"time"

	"payment-service/errs"
	"payment-service/kafka"
	"payment-service/models"
	"payment-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentService owns the payment lifecycle: it opens payments from
// order.created, applies gateway outcomes, and issues refunds. All
// status writes go through the repository's transition guard.
type PaymentService struct {
	repo      repository.PaymentRepository
	gateway   PaymentGateway
	publisher kafka.EventPublisher
	// feeRate is the platform's cut; amount_for_merchant is computed
	// here, once, and nowhere else.
	feeRate float64
	logger  *zap.Logger
}

func NewPaymentService(repo repository.PaymentRepository, gateway PaymentGateway, publisher kafka.EventPublisher, feeRate float64, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		feeRate:   feeRate,
		logger:    logger,
	}
}

// AmountForMerchant returns the fee-adjusted merchant payout for an
// order total.
func (s *PaymentService) AmountForMerchant(amount int64) int64 {
	fee := int64(math.Round(float64(amount) * s.feeRate))
	return amount - fee
}

// HandleOrderCreated opens a payment for a new order and, for card
// orders, drives the gateway charge. Redelivered events are a no-op
// once the payment row exists.
func (s *PaymentService) HandleOrderCreated(ctx context.Context, evt models.OrderCreatedEvent) error {
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return kafka.Permanent(err)
	}
	payerID, err := uuid.Parse(evt.PayerID)
	if err != nil {
		return kafka.Permanent(err)
	}

	if _, err := s.repo.GetPaymentByOrderID(ctx, orderID); err == nil {
		s.logger.Info("Payment already exists for order; skipping",
			zap.String("order_id", evt.OrderID))
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	payment := &models.Payment{
		ID:       uuid.New(),
		OrderID:  orderID,
		PayerID:  payerID,
		Amount:   evt.Amount,
		Currency: evt.Currency,
		Method:   evt.Method,
		Status:   models.PaymentPending,
		Metadata: models.PaymentMetadata{
			RestaurantID:      evt.RestaurantID,
			AmountForMerchant: s.AmountForMerchant(evt.Amount),
		},
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return err
	}
	s.logger.Info("Payment opened",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", evt.OrderID),
		zap.Int64("amount", evt.Amount),
		zap.Int64("amount_for_merchant", payment.Metadata.AmountForMerchant),
	)

	if evt.Method != "card" {
		// Non-card methods (cash on delivery) settle outside the
		// gateway; the order service marks them paid on delivery.
		return nil
	}

	if err := s.repo.TransitionStatus(ctx, payment.ID, models.PaymentProcessing, nil); err != nil {
		return err
	}

	gatewayTxID, err := s.gateway.CreateCharge(ctx, ChargeRequest{
		Amount:    evt.Amount,
		Currency:  evt.Currency,
		OrderID:   evt.OrderID,
		PaymentID: payment.ID.String(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Outcome unknown; the webhook will resolve it.
			s.logger.Warn("Gateway charge timed out; leaving payment processing",
				zap.String("payment_id", payment.ID.String()),
				zap.String("order_id", evt.OrderID),
			)
			return nil
		}
		reason := err.Error()
		if terr := s.repo.TransitionStatus(ctx, payment.ID, models.PaymentFailed, map[string]interface{}{
			"failure_reason": reason,
		}); terr != nil {
			return terr
		}
		s.publishEvent(ctx, models.PaymentEvent{
			Type:      models.EventPaymentFailed,
			PaymentID: payment.ID.String(),
			OrderID:   evt.OrderID,
			Reason:    reason,
		})
		s.logger.Warn("Gateway charge failed",
			zap.String("payment_id", payment.ID.String()),
			zap.String("order_id", evt.OrderID),
			zap.String("reason", reason),
		)
		return nil
	}

	return s.repo.TransitionStatus(ctx, payment.ID, models.PaymentProcessing, map[string]interface{}{
		"gateway_transaction_id": gatewayTxID,
	})
}

// locate finds a payment by gateway transaction id, falling back to the
// metadata-embedded payment id.
func (s *PaymentService) locate(ctx context.Context, gatewayTxID, paymentID string) (*models.Payment, error) {
	if gatewayTxID != "" {
		if p, err := s.repo.GetPaymentByGatewayID(ctx, gatewayTxID); err == nil {
			return p, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if paymentID != "" {
		id, err := uuid.Parse(paymentID)
		if err != nil {
			return nil, gorm.ErrRecordNotFound
		}
		return s.repo.GetPaymentByID(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

// ApplyGatewaySuccess finalizes a payment after a verified "charge
// succeeded" callback. Replays are cheap: an already-completed payment
// only re-publishes its event while downstream crediting has not
// happened yet.
func (s *PaymentService) ApplyGatewaySuccess(ctx context.Context, gatewayTxID, paymentID string) error {
	payment, err := s.locate(ctx, gatewayTxID, paymentID)
	if err != nil {
		s.logger.Warn("No payment for gateway callback",
			zap.String("gateway_transaction_id", gatewayTxID),
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return nil
	}

	if payment.Status == models.PaymentCompleted {
		if !payment.Metadata.Credited {
			s.publishEvent(ctx, models.PaymentEvent{
				Type:          models.EventPaymentCompleted,
				PaymentID:     payment.ID.String(),
				OrderID:       payment.OrderID.String(),
				TransactionID: gatewayTxID,
			})
		}
		return nil
	}

	now := time.Now()
	updates := map[string]interface{}{"processed_at": now}
	if payment.GatewayTransactionID == nil && gatewayTxID != "" {
		updates["gateway_transaction_id"] = gatewayTxID
	}
	if err := s.repo.TransitionStatus(ctx, payment.ID, models.PaymentCompleted, updates); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			s.logger.Warn("Rejected gateway success on terminal payment",
				zap.String("payment_id", payment.ID.String()),
				zap.String("status", string(payment.Status)),
			)
			return nil
		}
		return err
	}

	s.publishEvent(ctx, models.PaymentEvent{
		Type:          models.EventPaymentCompleted,
		PaymentID:     payment.ID.String(),
		OrderID:       payment.OrderID.String(),
		TransactionID: gatewayTxID,
	})
	s.logger.Info("Payment completed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", payment.OrderID.String()),
	)
	return nil
}

// ApplyGatewayFailure records a gateway-reported charge failure.
func (s *PaymentService) ApplyGatewayFailure(ctx context.Context, gatewayTxID, paymentID, reason string) error {
	payment, err := s.locate(ctx, gatewayTxID, paymentID)
	if err != nil {
		s.logger.Warn("No payment for gateway failure callback",
			zap.String("gateway_transaction_id", gatewayTxID),
			zap.Error(err),
		)
		return nil
	}
	if payment.Status == models.PaymentFailed {
		return nil
	}

	if err := s.repo.TransitionStatus(ctx, payment.ID, models.PaymentFailed, map[string]interface{}{
		"failure_reason": reason,
	}); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			s.logger.Warn("Rejected gateway failure on terminal payment",
				zap.String("payment_id", payment.ID.String()),
				zap.String("status", string(payment.Status)),
			)
			return nil
		}
		return err
	}

	s.publishEvent(ctx, models.PaymentEvent{
		Type:      models.EventPaymentFailed,
		PaymentID: payment.ID.String(),
		OrderID:   payment.OrderID.String(),
		Reason:    reason,
	})
	return nil
}

// Refund refunds amount against a completed payment. amount == 0 means
// a full refund. Used by the manual endpoint and refund automation.
func (s *PaymentService) Refund(ctx context.Context, paymentID uuid.UUID, amount int64, reason string) error {
	payment, err := s.repo.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrNotFound
		}
		return err
	}
	return s.refundPayment(ctx, payment, amount, reason)
}

// RefundForOrder is the refund-automation entry point: a missing or
// non-completed payment is a no-op, a gateway failure propagates so the
// message is retried.
func (s *PaymentService) RefundForOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	payment, err := s.repo.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("No payment for cancelled order; nothing to refund",
				zap.String("order_id", orderID.String()))
			return nil
		}
		return err
	}
	if payment.Status != models.PaymentCompleted {
		s.logger.Info("Payment not refundable; skipping",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(payment.Status)),
		)
		return nil
	}
	return s.refundPayment(ctx, payment, 0, reason)
}

func (s *PaymentService) refundPayment(ctx context.Context, payment *models.Payment, amount int64, reason string) error {
	if payment.Status != models.PaymentCompleted {
		return errs.ErrRefundNotAllowed
	}
	if amount == 0 {
		amount = payment.Amount
	}
	if amount > payment.Amount {
		return errs.ErrRefundTooLarge
	}
	if payment.GatewayTransactionID == nil {
		return errs.ErrRefundNotAllowed
	}

	refundTxID, err := s.gateway.Refund(ctx, *payment.GatewayTransactionID, amount)
	if err != nil {
		s.logger.Error("Gateway refund failed",
			zap.String("payment_id", payment.ID.String()),
			zap.String("order_id", payment.OrderID.String()),
			zap.Error(err),
		)
		return err
	}

	now := time.Now()
	if err := s.repo.TransitionStatus(ctx, payment.ID, models.PaymentRefunded, map[string]interface{}{
		"refund_amount":         amount,
		"refund_transaction_id": refundTxID,
		"refunded_at":           now,
	}); err != nil {
		return err
	}

	s.publishEvent(ctx, models.PaymentEvent{
		Type:         models.EventPaymentRefunded,
		PaymentID:    payment.ID.String(),
		OrderID:      payment.OrderID.String(),
		RefundAmount: amount,
		Reason:       reason,
	})
	s.logger.Info("Payment refunded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", payment.OrderID.String()),
		zap.Int64("refund_amount", amount),
	)
	return nil
}

// GetPaymentForOrder returns the payment row for an order.
func (s *PaymentService) GetPaymentForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.GetPaymentByOrderID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrNotFound
	}
	return payment, err
}

// publishEvent is best-effort: the financial fact is already persisted,
// so a publish failure is logged rather than unwinding the state change.
func (s *PaymentService) publishEvent(ctx context.Context, event models.PaymentEvent) {
	event.Timestamp = time.Now().UTC()
	if err := s.publisher.PublishPaymentEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish payment event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
