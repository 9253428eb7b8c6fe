package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-service/kafka"
	"payment-service/models"
	"payment-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

type recordedMessage struct {
	topic string
	key   string
	value []byte
}

type recordingBus struct {
	err      error
	messages []recordedMessage
}

func (b *recordingBus) Publish(ctx context.Context, topic, key string, value []byte) error {
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, recordedMessage{topic: topic, key: key, value: value})
	return nil
}

func (b *recordingBus) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	return nil
}

var _ kafka.EventPublisher = (*recordingBus)(nil)

func webhookRouter(bus *recordingBus) *gin.Engine {
	gin.SetMode(gin.TestMode)
	wc := &WebhookController{
		Stripe:    services.NewStripeService("sk_test_key", testWebhookSecret),
		Publisher: bus,
		Topic:     "payments.gateway-events",
		Logger:    zap.NewNop(),
	}
	r := gin.New()
	r.POST("/payments/webhook", wc.StripeWebhook)
	return r
}

func stripeEventPayload(eventType string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":"evt_1","object":"event","api_version":%q,"type":%q,"data":{"object":{"id":"pi_123","object":"payment_intent","metadata":{"payment_id":"pay_1","order_id":"ord_1"}}}}`,
		stripe.APIVersion, eventType,
	))
}

func signPayload(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestStripeWebhook(t *testing.T) {
	t.Run("verified success event is published before the ack", func(t *testing.T) {
		// Arrange
		bus := &recordingBus{}
		router := webhookRouter(bus)
		payload := stripeEventPayload("payment_intent.succeeded")

		// Act
		recorder := postWebhook(router, payload, signPayload(testWebhookSecret, payload))

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)
		require.Len(t, bus.messages, 1)
		assert.Equal(t, "payments.gateway-events", bus.messages[0].topic)
		assert.Equal(t, "pi_123", bus.messages[0].key)

		var evt models.GatewayEvent
		require.NoError(t, json.Unmarshal(bus.messages[0].value, &evt))
		assert.Equal(t, "payment_intent.succeeded", evt.Type)
		assert.Equal(t, "pi_123", evt.GatewayTransactionID)
		assert.Equal(t, "pay_1", evt.PaymentID)
	})

	t.Run("bad signature is rejected with no side effects", func(t *testing.T) {
		bus := &recordingBus{}
		router := webhookRouter(bus)
		payload := stripeEventPayload("payment_intent.succeeded")

		recorder := postWebhook(router, payload, signPayload("whsec_wrong_secret", payload))

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Empty(t, bus.messages)
	})

	t.Run("publish failure withholds the ack so the gateway retries", func(t *testing.T) {
		bus := &recordingBus{err: errors.New("broker unavailable")}
		router := webhookRouter(bus)
		payload := stripeEventPayload("payment_intent.succeeded")

		recorder := postWebhook(router, payload, signPayload(testWebhookSecret, payload))

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})

	t.Run("irrelevant event type is acknowledged without a publish", func(t *testing.T) {
		bus := &recordingBus{}
		router := webhookRouter(bus)
		payload := stripeEventPayload("charge.updated")

		recorder := postWebhook(router, payload, signPayload(testWebhookSecret, payload))

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Empty(t, bus.messages)
	})

	t.Run("failed event carries the gateway reason", func(t *testing.T) {
		bus := &recordingBus{}
		router := webhookRouter(bus)
		payload := []byte(fmt.Sprintf(
			`{"id":"evt_2","object":"event","api_version":%q,"type":"payment_intent.payment_failed","data":{"object":{"id":"pi_456","object":"payment_intent","metadata":{"payment_id":"pay_2"},"last_payment_error":{"message":"card declined"}}}}`,
			stripe.APIVersion,
		))

		recorder := postWebhook(router, payload, signPayload(testWebhookSecret, payload))

		assert.Equal(t, http.StatusOK, recorder.Code)
		require.Len(t, bus.messages, 1)
		var evt models.GatewayEvent
		require.NoError(t, json.Unmarshal(bus.messages[0].value, &evt))
		assert.Equal(t, "payment_intent.payment_failed", evt.Type)
		assert.Equal(t, "card declined", evt.Reason)
	})
}
