package repository

import (
	"context"
	"errors"
	"time"

	"payment-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidTransition is returned when a status write would violate
// the payment state machine.
var ErrInvalidTransition = errors.New("invalid payment status transition")

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	GetPaymentByGatewayID(ctx context.Context, gatewayTxID string) (*models.Payment, error)
	// TransitionStatus moves a payment to the given status, applying the
	// extra column updates in the same write. The transition is checked
	// against the state machine; illegal moves fail with
	// ErrInvalidTransition and write nothing.
	TransitionStatus(ctx context.Context, paymentID uuid.UUID, to models.PaymentStatus, updates map[string]interface{}) error
	// MarkCredited flips the credited metadata flag. Best-effort helper
	// used after settlement commits.
	MarkCredited(ctx context.Context, orderID uuid.UUID) error
}

type gormPaymentRepo struct {
	db *gorm.DB
}

func NewGormPaymentRepo(db *gorm.DB) PaymentRepository {
	return &gormPaymentRepo{db: db}
}

func (r *gormPaymentRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *gormPaymentRepo) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) GetPaymentByGatewayID(ctx context.Context, gatewayTxID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("gateway_transaction_id = ?", gatewayTxID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *gormPaymentRepo) TransitionStatus(ctx context.Context, paymentID uuid.UUID, to models.PaymentStatus, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Where("id = ?", paymentID).First(&payment).Error; err != nil {
			return err
		}
		if !models.CanTransition(payment.Status, to) {
			return ErrInvalidTransition
		}
		if updates == nil {
			updates = map[string]interface{}{}
		}
		updates["status"] = to
		updates["updated_at"] = time.Now()
		return tx.Model(&payment).Updates(updates).Error
	})
}

func (r *gormPaymentRepo) MarkCredited(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Where("order_id = ?", orderID).First(&payment).Error; err != nil {
			return err
		}
		payment.Metadata.Credited = true
		return tx.Model(&payment).Update("metadata", payment.Metadata).Error
	})
}
