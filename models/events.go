package models

import (
	"fmt"
	"time"
)

// Fixed event schemas, one per routing key. Each consumer validates its
// payload before any business logic runs; a message that fails
// validation is discarded, not retried.

// OrderCreatedEvent is published by the order service when an order is
// placed. Consumed by the payment orchestrator.
type OrderCreatedEvent struct {
	OrderID      string `json:"order_id"`
	PayerID      string `json:"payer_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Method       string `json:"method"`
	RestaurantID string `json:"restaurant_id"`
}

func (e *OrderCreatedEvent) Validate() error {
	if e.OrderID == "" || e.PayerID == "" {
		return fmt.Errorf("order.created missing order_id or payer_id")
	}
	if e.Amount <= 0 {
		return fmt.Errorf("order.created non-positive amount %d for order %s", e.Amount, e.OrderID)
	}
	if e.Currency == "" || e.Method == "" {
		return fmt.Errorf("order.created missing currency or method for order %s", e.OrderID)
	}
	if e.RestaurantID == "" {
		return fmt.Errorf("order.created missing restaurant_id for order %s", e.OrderID)
	}
	return nil
}

// OrderCompletedEvent is published by the order service when an order
// reaches its terminal happy state. Consumed by the settlement consumer.
type OrderCompletedEvent struct {
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	RestaurantID      string `json:"restaurant_id"`
	AmountForMerchant int64  `json:"amount_for_merchant"`
}

func (e *OrderCompletedEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("order.completed missing order_id")
	}
	if e.RestaurantID == "" {
		return fmt.Errorf("order.completed missing restaurant_id for order %s", e.OrderID)
	}
	if e.AmountForMerchant <= 0 {
		return fmt.Errorf("order.completed non-positive amount_for_merchant %d for order %s", e.AmountForMerchant, e.OrderID)
	}
	return nil
}

// Paid reports whether the payment-lifecycle half of the dual-condition
// gate is satisfied. Order status alone is never trusted.
func (e *OrderCompletedEvent) Paid() bool {
	return e.PaymentStatus == "paid" || e.PaymentStatus == string(PaymentCompleted)
}

// OrderCancelledEvent is published by the order service on cancellation.
// Consumed by the refund automation consumer.
type OrderCancelledEvent struct {
	OrderID        string `json:"order_id"`
	RefundRequired bool   `json:"refund_required"`
	Reason         string `json:"reason"`
	CancelledBy    string `json:"cancelled_by"` // "customer" or "merchant"
}

func (e *OrderCancelledEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("order.cancelled missing order_id")
	}
	return nil
}

// GatewayEvent is the durable copy of a verified gateway callback. The
// webhook handler publishes it to the gateway events topic before the
// gateway gets its 200, so a crash after the ack never loses the charge
// outcome.
type GatewayEvent struct {
	Type                 string `json:"type"`
	GatewayTransactionID string `json:"gateway_transaction_id"`
	PaymentID            string `json:"payment_id,omitempty"`
	Reason               string `json:"reason,omitempty"`
}

func (e *GatewayEvent) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("gateway event missing type")
	}
	if e.GatewayTransactionID == "" && e.PaymentID == "" {
		return fmt.Errorf("gateway event has no payment reference")
	}
	return nil
}

// Payment event types, mirrored in the topic names.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
)

// PaymentEvent is published on payment lifecycle changes and consumed
// by the order service.
type PaymentEvent struct {
	Type          string    `json:"type"`
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	RefundAmount  int64     `json:"refund_amount,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
