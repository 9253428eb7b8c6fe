package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus is the lifecycle state of a payment. Transitions are
// only valid per CanTransition; ad-hoc status writes are not allowed.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentFailed},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
	PaymentCompleted:  {PaymentRefunded},
}

// CanTransition reports whether from → to is a legal payment transition.
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentMetadata carries merchant attribution and settlement markers.
// AmountForMerchant is computed exactly once, when the payment is
// opened from order.created.
type PaymentMetadata struct {
	RestaurantID      string `json:"restaurant_id,omitempty"`
	AmountForMerchant int64  `json:"amount_for_merchant,omitempty"`
	Credited          bool   `json:"credited,omitempty"`
}

type Payment struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey" json:"payment_id"`
	OrderID              uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	PayerID              uuid.UUID       `gorm:"type:uuid;index;not null" json:"payer_id"`
	Amount               int64           `gorm:"not null" json:"amount"` // minor currency units
	Currency             string          `gorm:"type:varchar(10);not null" json:"currency"`
	Method               string          `gorm:"type:varchar(20);not null" json:"method"`
	GatewayTransactionID *string         `gorm:"uniqueIndex" json:"gateway_transaction_id,omitempty"`
	Status               PaymentStatus   `gorm:"type:varchar(20);not null" json:"status"`
	FailureReason        *string         `gorm:"type:varchar(512)" json:"failure_reason,omitempty"`
	RefundAmount         int64           `json:"refund_amount"`
	RefundTransactionID  *string         `json:"refund_transaction_id,omitempty"`
	RefundedAt           *time.Time      `json:"refunded_at,omitempty"`
	ProcessedAt          *time.Time      `json:"processed_at,omitempty"`
	Metadata             PaymentMetadata `gorm:"serializer:json" json:"metadata"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt  `gorm:"index" json:"-"`
}
