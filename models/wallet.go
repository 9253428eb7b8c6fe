package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet holds a merchant's balance. Balance = TotalEarned − TotalWithdrawn
// is maintained by construction: every mutation adjusts both sides in
// the same transaction.
type Wallet struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RestaurantID   uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"restaurant_id"`
	Balance        int64          `gorm:"not null;default:0" json:"balance"`
	TotalEarned    int64          `gorm:"not null;default:0" json:"total_earned"`
	TotalWithdrawn int64          `gorm:"not null;default:0" json:"total_withdrawn"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// Transaction types.
const (
	TransactionTypeEarn     = "EARN"
	TransactionTypeWithdraw = "WITHDRAW"
)

// Transaction statuses.
const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// WalletTransaction is an append-only ledger row. Rows are never deleted;
// only Status moves (PENDING → COMPLETED/FAILED for withdrawals).
// At most one COMPLETED EARN row exists per order — the settlement
// idempotency anchor, backed by a partial unique index so concurrent
// credits cannot both commit.
type WalletTransaction struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WalletID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"wallet_id"`
	OrderID         *uuid.UUID `gorm:"type:uuid;index;uniqueIndex:uniq_completed_earn_per_order,where:type = 'EARN' AND status = 'COMPLETED'" json:"order_id,omitempty"`
	PayoutRequestID *uuid.UUID `gorm:"type:uuid;index" json:"payout_request_id,omitempty"`
	Type            string     `gorm:"type:varchar(10);not null" json:"type"`
	Amount          int64      `gorm:"not null" json:"amount"` // signed: EARN > 0, WITHDRAW < 0
	Status          string     `gorm:"type:varchar(10);not null" json:"status"`
	Description     string     `gorm:"type:varchar(512)" json:"description"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PayoutStatus is the lifecycle state of a payout request.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
	PayoutFailed    PayoutStatus = "failed"
)

// BankInfo is the merchant's payout destination.
type BankInfo struct {
	BankName      string `json:"bank_name" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
	AccountHolder string `json:"account_holder" binding:"required"`
}

// PayoutRequest is a merchant withdrawal held for admin review. The
// wallet balance is not debited at creation — only on approval — so
// rejection needs no compensating credit.
type PayoutRequest struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	WalletID    uuid.UUID    `gorm:"type:uuid;index;not null" json:"wallet_id"`
	Amount      int64        `gorm:"not null" json:"amount"`
	BankInfo    BankInfo     `gorm:"serializer:json" json:"bank_info"`
	Status      PayoutStatus `gorm:"type:varchar(20);not null" json:"status"`
	Note        string       `gorm:"type:varchar(512)" json:"note"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}
