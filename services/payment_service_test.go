package services

import (
	"context"
	"errors"
	"testing"

	"payment-service/errs"
	"payment-service/models"
	"payment-service/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPaymentFixture(t *testing.T) (*PaymentService, repository.PaymentRepository, *MockGateway, *recordingPublisher) {
	repo := repository.NewGormPaymentRepo(newTestDB(t))
	gateway := new(MockGateway)
	publisher := &recordingPublisher{}
	svc := NewPaymentService(repo, gateway, publisher, 0.10, testLogger())
	return svc, repo, gateway, publisher
}

func cardOrderEvent() models.OrderCreatedEvent {
	return models.OrderCreatedEvent{
		OrderID:      uuid.NewString(),
		PayerID:      uuid.NewString(),
		Amount:       100000,
		Currency:     "inr",
		Method:       "card",
		RestaurantID: uuid.NewString(),
	}
}

func TestAmountForMerchant(t *testing.T) {
	svc, _, _, _ := newPaymentFixture(t)
	assert.Equal(t, int64(90000), svc.AmountForMerchant(100000))
	assert.Equal(t, int64(90), svc.AmountForMerchant(100))
	assert.Equal(t, int64(1), svc.AmountForMerchant(1)) // fee rounds to zero
}

func TestHandleOrderCreated(t *testing.T) {
	ctx := context.Background()

	t.Run("card order opens payment and stores gateway id", func(t *testing.T) {
		// Arrange
		svc, repo, gateway, _ := newPaymentFixture(t)
		evt := cardOrderEvent()
		gateway.On("CreateCharge", mock.Anything, mock.MatchedBy(func(req ChargeRequest) bool {
			return req.Amount == 100000 && req.OrderID == evt.OrderID
		})).Return("pi_123", nil).Once()

		// Act
		err := svc.HandleOrderCreated(ctx, evt)

		// Assert
		require.NoError(t, err)
		payment, err := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))
		require.NoError(t, err)
		assert.Equal(t, models.PaymentProcessing, payment.Status)
		require.NotNil(t, payment.GatewayTransactionID)
		assert.Equal(t, "pi_123", *payment.GatewayTransactionID)
		assert.Equal(t, evt.RestaurantID, payment.Metadata.RestaurantID)
		assert.Equal(t, int64(90000), payment.Metadata.AmountForMerchant)
		gateway.AssertExpectations(t)
	})

	t.Run("redelivered event is a no-op", func(t *testing.T) {
		// Arrange
		svc, _, gateway, _ := newPaymentFixture(t)
		evt := cardOrderEvent()
		gateway.On("CreateCharge", mock.Anything, mock.Anything).Return("pi_123", nil).Once()
		require.NoError(t, svc.HandleOrderCreated(ctx, evt))

		// Act
		err := svc.HandleOrderCreated(ctx, evt)

		// Assert: no second charge attempted
		require.NoError(t, err)
		gateway.AssertNumberOfCalls(t, "CreateCharge", 1)
	})

	t.Run("gateway error fails the payment and publishes payment.failed", func(t *testing.T) {
		// Arrange
		svc, repo, gateway, publisher := newPaymentFixture(t)
		evt := cardOrderEvent()
		gateway.On("CreateCharge", mock.Anything, mock.Anything).Return("", errors.New("card network unavailable")).Once()

		// Act
		err := svc.HandleOrderCreated(ctx, evt)

		// Assert
		require.NoError(t, err)
		payment, _ := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))
		assert.Equal(t, models.PaymentFailed, payment.Status)
		require.NotNil(t, payment.FailureReason)
		assert.Equal(t, "card network unavailable", *payment.FailureReason)
		assert.Len(t, publisher.published(models.EventPaymentFailed), 1)
	})

	t.Run("gateway timeout leaves the payment processing", func(t *testing.T) {
		// Arrange
		svc, repo, gateway, publisher := newPaymentFixture(t)
		evt := cardOrderEvent()
		gateway.On("CreateCharge", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Once()

		// Act
		err := svc.HandleOrderCreated(ctx, evt)

		// Assert: outcome left to the webhook
		require.NoError(t, err)
		payment, _ := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))
		assert.Equal(t, models.PaymentProcessing, payment.Status)
		assert.Empty(t, publisher.events)
	})

	t.Run("non-card order stays pending without a gateway call", func(t *testing.T) {
		svc, repo, gateway, _ := newPaymentFixture(t)
		evt := cardOrderEvent()
		evt.Method = "cash"

		require.NoError(t, svc.HandleOrderCreated(ctx, evt))

		payment, _ := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))
		assert.Equal(t, models.PaymentPending, payment.Status)
		gateway.AssertNotCalled(t, "CreateCharge")
	})
}

func TestApplyGatewaySuccess(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*PaymentService, repository.PaymentRepository, *recordingPublisher, models.OrderCreatedEvent) {
		svc, repo, gateway, publisher := newPaymentFixture(t)
		evt := cardOrderEvent()
		gateway.On("CreateCharge", mock.Anything, mock.Anything).Return("pi_123", nil).Once()
		require.NoError(t, svc.HandleOrderCreated(ctx, evt))
		return svc, repo, publisher, evt
	}

	t.Run("completes the payment and publishes payment.completed", func(t *testing.T) {
		svc, repo, publisher, evt := setup(t)

		require.NoError(t, svc.ApplyGatewaySuccess(ctx, "pi_123", ""))

		payment, _ := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))
		assert.Equal(t, models.PaymentCompleted, payment.Status)
		assert.NotNil(t, payment.ProcessedAt)
		assert.Len(t, publisher.published(models.EventPaymentCompleted), 1)
	})

	t.Run("replay re-publishes only while not credited", func(t *testing.T) {
		svc, repo, publisher, evt := setup(t)
		require.NoError(t, svc.ApplyGatewaySuccess(ctx, "pi_123", ""))

		// Replay before settlement: event re-published for the order
		// service's benefit.
		require.NoError(t, svc.ApplyGatewaySuccess(ctx, "pi_123", ""))
		assert.Len(t, publisher.published(models.EventPaymentCompleted), 2)

		// After crediting, replays are silent.
		orderID := uuid.MustParse(evt.OrderID)
		require.NoError(t, repo.MarkCredited(ctx, orderID))
		require.NoError(t, svc.ApplyGatewaySuccess(ctx, "pi_123", ""))
		assert.Len(t, publisher.published(models.EventPaymentCompleted), 2)
	})

	t.Run("falls back to metadata payment id", func(t *testing.T) {
		svc, repo, _, evt := setup(t)
		payment, _ := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))

		require.NoError(t, svc.ApplyGatewaySuccess(ctx, "", payment.ID.String()))

		fresh, _ := repo.GetPaymentByID(ctx, payment.ID)
		assert.Equal(t, models.PaymentCompleted, fresh.Status)
	})

	t.Run("unknown transaction is acknowledged without effect", func(t *testing.T) {
		svc, _, publisher, _ := setup(t)
		require.NoError(t, svc.ApplyGatewaySuccess(ctx, "pi_unknown", ""))
		assert.Empty(t, publisher.published(models.EventPaymentCompleted))
	})
}

func TestApplyGatewayFailure(t *testing.T) {
	ctx := context.Background()
	svc, repo, gateway, publisher := newPaymentFixture(t)
	evt := cardOrderEvent()
	gateway.On("CreateCharge", mock.Anything, mock.Anything).Return("pi_123", nil).Once()
	require.NoError(t, svc.HandleOrderCreated(ctx, evt))

	require.NoError(t, svc.ApplyGatewayFailure(ctx, "pi_123", "", "card declined"))

	payment, _ := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))
	assert.Equal(t, models.PaymentFailed, payment.Status)
	require.NotNil(t, payment.FailureReason)
	assert.Equal(t, "card declined", *payment.FailureReason)
	assert.Len(t, publisher.published(models.EventPaymentFailed), 1)

	// A failure callback cannot undo a completed payment.
	require.NoError(t, svc.ApplyGatewayFailure(ctx, "pi_123", "", "late decline"))
	payment, _ = repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))
	assert.Equal(t, models.PaymentFailed, payment.Status)
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	completedPayment := func(t *testing.T) (*PaymentService, repository.PaymentRepository, *MockGateway, *recordingPublisher, *models.Payment) {
		svc, repo, gateway, publisher := newPaymentFixture(t)
		evt := cardOrderEvent()
		gateway.On("CreateCharge", mock.Anything, mock.Anything).Return("pi_123", nil).Once()
		require.NoError(t, svc.HandleOrderCreated(ctx, evt))
		require.NoError(t, svc.ApplyGatewaySuccess(ctx, "pi_123", ""))
		payment, err := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))
		require.NoError(t, err)
		return svc, repo, gateway, publisher, payment
	}

	t.Run("full refund moves payment to refunded", func(t *testing.T) {
		svc, repo, gateway, publisher, payment := completedPayment(t)
		gateway.On("Refund", mock.Anything, "pi_123", int64(100000)).Return("re_1", nil).Once()

		require.NoError(t, svc.Refund(ctx, payment.ID, 0, "order cancelled"))

		fresh, _ := repo.GetPaymentByID(ctx, payment.ID)
		assert.Equal(t, models.PaymentRefunded, fresh.Status)
		assert.Equal(t, int64(100000), fresh.RefundAmount)
		require.NotNil(t, fresh.RefundTransactionID)
		assert.Equal(t, "re_1", *fresh.RefundTransactionID)
		assert.NotNil(t, fresh.RefundedAt)
		assert.Len(t, publisher.published(models.EventPaymentRefunded), 1)
		gateway.AssertExpectations(t)
	})

	t.Run("refund above the captured amount is rejected", func(t *testing.T) {
		svc, _, gateway, _, payment := completedPayment(t)

		err := svc.Refund(ctx, payment.ID, 100001, "")

		assert.ErrorIs(t, err, errs.ErrRefundTooLarge)
		gateway.AssertNotCalled(t, "Refund")
	})

	t.Run("only completed payments are refundable", func(t *testing.T) {
		svc, repo, gateway, _ := newPaymentFixture(t)
		evt := cardOrderEvent()
		gateway.On("CreateCharge", mock.Anything, mock.Anything).Return("pi_123", nil).Once()
		require.NoError(t, svc.HandleOrderCreated(ctx, evt))
		payment, _ := repo.GetPaymentByOrderID(ctx, uuid.MustParse(evt.OrderID))

		err := svc.Refund(ctx, payment.ID, 0, "")

		assert.ErrorIs(t, err, errs.ErrRefundNotAllowed)
		gateway.AssertNotCalled(t, "Refund")
	})

	t.Run("unknown payment returns not found", func(t *testing.T) {
		svc, _, _, _ := newPaymentFixture(t)
		err := svc.Refund(ctx, uuid.New(), 0, "")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}
