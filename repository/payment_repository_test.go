package repository

import (
	"context"
	"testing"

	"payment-service/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPayment(t *testing.T, repo PaymentRepository, status models.PaymentStatus) *models.Payment {
	t.Helper()
	payment := &models.Payment{
		ID:       uuid.New(),
		OrderID:  uuid.New(),
		PayerID:  uuid.New(),
		Amount:   100000,
		Currency: "inr",
		Method:   "card",
		Status:   status,
	}
	require.NoError(t, repo.CreatePayment(context.Background(), payment))
	return payment
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("valid transition applies updates", func(t *testing.T) {
		repo := NewGormPaymentRepo(newTestDB(t))
		payment := seedPayment(t, repo, models.PaymentPending)

		err := repo.TransitionStatus(ctx, payment.ID, models.PaymentProcessing, map[string]interface{}{
			"gateway_transaction_id": "pi_123",
		})

		require.NoError(t, err)
		fresh, err := repo.GetPaymentByID(ctx, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentProcessing, fresh.Status)
		require.NotNil(t, fresh.GatewayTransactionID)
		assert.Equal(t, "pi_123", *fresh.GatewayTransactionID)
	})

	t.Run("invalid transition writes nothing", func(t *testing.T) {
		repo := NewGormPaymentRepo(newTestDB(t))
		payment := seedPayment(t, repo, models.PaymentPending)

		err := repo.TransitionStatus(ctx, payment.ID, models.PaymentRefunded, map[string]interface{}{
			"refund_amount": int64(100000),
		})

		assert.ErrorIs(t, err, ErrInvalidTransition)
		fresh, _ := repo.GetPaymentByID(ctx, payment.ID)
		assert.Equal(t, models.PaymentPending, fresh.Status)
		assert.Equal(t, int64(0), fresh.RefundAmount)
	})
}

func TestGetPaymentByGatewayID(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPaymentRepo(newTestDB(t))
	payment := seedPayment(t, repo, models.PaymentPending)
	require.NoError(t, repo.TransitionStatus(ctx, payment.ID, models.PaymentProcessing, map[string]interface{}{
		"gateway_transaction_id": "pi_abc",
	}))

	found, err := repo.GetPaymentByGatewayID(ctx, "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, found.ID)
}

func TestMarkCredited(t *testing.T) {
	ctx := context.Background()
	repo := NewGormPaymentRepo(newTestDB(t))
	payment := seedPayment(t, repo, models.PaymentPending)

	require.NoError(t, repo.MarkCredited(ctx, payment.OrderID))

	fresh, err := repo.GetPaymentByOrderID(ctx, payment.OrderID)
	require.NoError(t, err)
	assert.True(t, fresh.Metadata.Credited)
}
