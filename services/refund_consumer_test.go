package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"payment-service/kafka"
	"payment-service/models"
	"payment-service/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type refundFixture struct {
	consumer  *RefundConsumer
	payments  repository.PaymentRepository
	gateway   *MockGateway
	publisher *recordingPublisher
}

func newRefundFixture(t *testing.T) refundFixture {
	repo := repository.NewGormPaymentRepo(newTestDB(t))
	gateway := new(MockGateway)
	publisher := &recordingPublisher{}
	svc := NewPaymentService(repo, gateway, publisher, 0.10, testLogger())
	return refundFixture{
		consumer:  NewRefundConsumer(svc, testLogger()),
		payments:  repo,
		gateway:   gateway,
		publisher: publisher,
	}
}

func (f refundFixture) seedCompletedPayment(t *testing.T, orderID uuid.UUID) *models.Payment {
	t.Helper()
	gatewayTxID := "pi_" + orderID.String()[:8]
	payment := &models.Payment{
		ID:                   uuid.New(),
		OrderID:              orderID,
		PayerID:              uuid.New(),
		Amount:               100000,
		Currency:             "inr",
		Method:               "card",
		GatewayTransactionID: &gatewayTxID,
		Status:               models.PaymentCompleted,
	}
	require.NoError(t, f.payments.CreatePayment(context.Background(), payment))
	return payment
}

func cancelledEvent(orderID uuid.UUID, refundRequired bool) []byte {
	payload, _ := json.Marshal(models.OrderCancelledEvent{
		OrderID:        orderID.String(),
		RefundRequired: refundRequired,
		Reason:         "restaurant closed",
		CancelledBy:    "merchant",
	})
	return payload
}

func TestRefundConsumer(t *testing.T) {
	ctx := context.Background()

	t.Run("cancellation after capture refunds the full amount once", func(t *testing.T) {
		// Arrange
		f := newRefundFixture(t)
		orderID := uuid.New()
		payment := f.seedCompletedPayment(t, orderID)
		f.gateway.On("Refund", mock.Anything, *payment.GatewayTransactionID, int64(100000)).Return("re_1", nil).Once()

		// Act
		err := f.consumer.Handle(ctx, cancelledEvent(orderID, true))

		// Assert
		require.NoError(t, err)
		fresh, _ := f.payments.GetPaymentByOrderID(ctx, orderID)
		assert.Equal(t, models.PaymentRefunded, fresh.Status)
		assert.Equal(t, int64(100000), fresh.RefundAmount)
		assert.Len(t, f.publisher.published(models.EventPaymentRefunded), 1)

		// Redelivery: payment already refunded, nothing to reverse.
		require.NoError(t, f.consumer.Handle(ctx, cancelledEvent(orderID, true)))
		f.gateway.AssertNumberOfCalls(t, "Refund", 1)
	})

	t.Run("refund not required discards the event", func(t *testing.T) {
		f := newRefundFixture(t)
		orderID := uuid.New()
		f.seedCompletedPayment(t, orderID)

		require.NoError(t, f.consumer.Handle(ctx, cancelledEvent(orderID, false)))

		f.gateway.AssertNotCalled(t, "Refund")
	})

	t.Run("missing payment is nothing to reverse", func(t *testing.T) {
		f := newRefundFixture(t)
		require.NoError(t, f.consumer.Handle(ctx, cancelledEvent(uuid.New(), true)))
		f.gateway.AssertNotCalled(t, "Refund")
	})

	t.Run("uncompleted payment is not refunded", func(t *testing.T) {
		// Arrange
		f := newRefundFixture(t)
		orderID := uuid.New()
		payment := &models.Payment{
			ID:       uuid.New(),
			OrderID:  orderID,
			PayerID:  uuid.New(),
			Amount:   100000,
			Currency: "inr",
			Method:   "card",
			Status:   models.PaymentProcessing,
		}
		require.NoError(t, f.payments.CreatePayment(ctx, payment))

		// Act + Assert
		require.NoError(t, f.consumer.Handle(ctx, cancelledEvent(orderID, true)))
		f.gateway.AssertNotCalled(t, "Refund")
	})

	t.Run("gateway failure propagates for redelivery", func(t *testing.T) {
		// Arrange
		f := newRefundFixture(t)
		orderID := uuid.New()
		payment := f.seedCompletedPayment(t, orderID)
		f.gateway.On("Refund", mock.Anything, *payment.GatewayTransactionID, int64(100000)).
			Return("", errors.New("gateway unavailable")).Once()

		// Act
		err := f.consumer.Handle(ctx, cancelledEvent(orderID, true))

		// Assert: transient error, message must be redelivered
		require.Error(t, err)
		var perm *kafka.PermanentError
		assert.False(t, errors.As(err, &perm))
		fresh, _ := f.payments.GetPaymentByOrderID(ctx, orderID)
		assert.Equal(t, models.PaymentCompleted, fresh.Status)
	})

	t.Run("malformed payload is a permanent failure", func(t *testing.T) {
		f := newRefundFixture(t)
		err := f.consumer.Handle(ctx, []byte("oops"))
		var perm *kafka.PermanentError
		assert.ErrorAs(t, err, &perm)
	})
}
