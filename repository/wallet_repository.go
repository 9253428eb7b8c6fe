package repository

import (
	"context"
	"errors"
	"time"

	"payment-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrPayoutNotPending    = errors.New("payout request is not pending")
	// ErrDuplicateEarn signals the settlement idempotency anchor fired:
	// a COMPLETED EARN row already exists for the order.
	ErrDuplicateEarn = errors.New("order already credited")
)

type WalletRepository interface {
	GetWalletByRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletTransaction, error)
	HasCompletedEarn(ctx context.Context, orderID uuid.UUID) (bool, error)
	// CreditEarning atomically finds-or-creates the merchant wallet,
	// increments balance and total_earned, and appends the COMPLETED
	// EARN ledger row. The idempotency anchor is re-checked inside the
	// transaction; duplicates fail with ErrDuplicateEarn and write
	// nothing.
	CreditEarning(ctx context.Context, restaurantID, orderID uuid.UUID, amount int64, description string) error
	// CreatePayout records a withdrawal request and its PENDING ledger
	// row without touching the wallet balance.
	CreatePayout(ctx context.Context, restaurantID uuid.UUID, amount int64, bankInfo models.BankInfo, note string) (*models.PayoutRequest, error)
	GetPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error)
	ListPayouts(ctx context.Context, walletID *uuid.UUID, status models.PayoutStatus) ([]models.PayoutRequest, error)
	// ApprovePayout debits the wallet, bumps total_withdrawn, and marks
	// both the request and its ledger row COMPLETED in one transaction.
	ApprovePayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error)
	// RejectPayout marks the request and ledger row FAILED. The balance
	// was never debited, so nothing is credited back.
	RejectPayout(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error)
}

type gormWalletRepo struct {
	db *gorm.DB
}

func NewGormWalletRepo(db *gorm.DB) WalletRepository {
	return &gormWalletRepo{db: db}
}

func (r *gormWalletRepo) GetWalletByRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *gormWalletRepo) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var txns []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *gormWalletRepo) HasCompletedEarn(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("order_id = ? AND type = ? AND status = ?", orderID, models.TransactionTypeEarn, models.TransactionStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

func (r *gormWalletRepo) CreditEarning(ctx context.Context, restaurantID, orderID uuid.UUID, amount int64, description string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.WalletTransaction{}).
			Where("order_id = ? AND type = ? AND status = ?", orderID, models.TransactionTypeEarn, models.TransactionStatusCompleted).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEarn
		}

		var wallet models.Wallet
		err := tx.Where("restaurant_id = ?", restaurantID).First(&wallet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			wallet = models.Wallet{ID: uuid.New(), RestaurantID: restaurantID}
			if err := tx.Create(&wallet).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Model(&wallet).Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", amount),
			"total_earned": gorm.Expr("total_earned + ?", amount),
			"updated_at":   time.Now(),
		}).Error; err != nil {
			return err
		}

		earn := models.WalletTransaction{
			ID:          uuid.New(),
			WalletID:    wallet.ID,
			OrderID:     &orderID,
			Type:        models.TransactionTypeEarn,
			Amount:      amount,
			Status:      models.TransactionStatusCompleted,
			Description: description,
		}
		if err := tx.Create(&earn).Error; err != nil {
			// A concurrent credit for the same order won the race; the
			// partial unique index rejects the second row and the whole
			// transaction, including the balance increment, rolls back.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEarn
			}
			return err
		}
		return nil
	})
}

func (r *gormWalletRepo) CreatePayout(ctx context.Context, restaurantID uuid.UUID, amount int64, bankInfo models.BankInfo, note string) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		err := tx.Where("restaurant_id = ?", restaurantID).First(&wallet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWalletNotFound
		}
		if err != nil {
			return err
		}
		if wallet.Balance < amount {
			return ErrInsufficientBalance
		}

		payout = models.PayoutRequest{
			ID:       uuid.New(),
			WalletID: wallet.ID,
			Amount:   amount,
			BankInfo: bankInfo,
			Status:   models.PayoutPending,
			Note:     note,
		}
		if err := tx.Create(&payout).Error; err != nil {
			return err
		}

		// Balance is deliberately untouched here; the debit happens on
		// admin approval.
		withdraw := models.WalletTransaction{
			ID:              uuid.New(),
			WalletID:        wallet.ID,
			PayoutRequestID: &payout.ID,
			Type:            models.TransactionTypeWithdraw,
			Amount:          -amount,
			Status:          models.TransactionStatusPending,
			Description:     "Withdrawal request",
		}
		return tx.Create(&withdraw).Error
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *gormWalletRepo) GetPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	if err := r.db.WithContext(ctx).Where("id = ?", payoutID).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *gormWalletRepo) ListPayouts(ctx context.Context, walletID *uuid.UUID, status models.PayoutStatus) ([]models.PayoutRequest, error) {
	q := r.db.WithContext(ctx).Model(&models.PayoutRequest{}).Order("created_at DESC")
	if walletID != nil {
		q = q.Where("wallet_id = ?", *walletID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var payouts []models.PayoutRequest
	err := q.Find(&payouts).Error
	return payouts, err
}

func (r *gormWalletRepo) ApprovePayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", payoutID).First(&payout).Error; err != nil {
			return err
		}
		if payout.Status != models.PayoutPending {
			return ErrPayoutNotPending
		}

		now := time.Now()
		// Conditional claim: a concurrent approval or rejection that won
		// the race leaves zero rows for this update.
		claim := tx.Model(&models.PayoutRequest{}).
			Where("id = ? AND status = ?", payout.ID, models.PayoutPending).
			Updates(map[string]interface{}{
				"status":       models.PayoutCompleted,
				"processed_at": now,
			})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return ErrPayoutNotPending
		}

		// Conditional debit: refuses to drive the balance negative when
		// another approval drained it after this request was created.
		debit := tx.Model(&models.Wallet{}).
			Where("id = ? AND balance >= ?", payout.WalletID, payout.Amount).
			Updates(map[string]interface{}{
				"balance":         gorm.Expr("balance - ?", payout.Amount),
				"total_withdrawn": gorm.Expr("total_withdrawn + ?", payout.Amount),
				"updated_at":      now,
			})
		if debit.Error != nil {
			return debit.Error
		}
		if debit.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		if err := tx.Model(&models.WalletTransaction{}).
			Where("payout_request_id = ?", payout.ID).
			Update("status", models.TransactionStatusCompleted).Error; err != nil {
			return err
		}
		payout.Status = models.PayoutCompleted
		payout.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *gormWalletRepo) RejectPayout(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", payoutID).First(&payout).Error; err != nil {
			return err
		}
		if payout.Status != models.PayoutPending {
			return ErrPayoutNotPending
		}
		now := time.Now()
		claim := tx.Model(&models.PayoutRequest{}).
			Where("id = ? AND status = ?", payout.ID, models.PayoutPending).
			Updates(map[string]interface{}{
				"status":       models.PayoutFailed,
				"note":         reason,
				"processed_at": now,
			})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return ErrPayoutNotPending
		}
		if err := tx.Model(&models.WalletTransaction{}).
			Where("payout_request_id = ?", payout.ID).
			Update("status", models.TransactionStatusFailed).Error; err != nil {
			return err
		}
		payout.Status = models.PayoutFailed
		payout.Note = reason
		payout.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payout, nil
}
