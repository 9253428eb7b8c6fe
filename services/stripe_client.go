package services

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/refund"
	"github.com/stripe/stripe-go/v80/webhook"
)

// gatewayTimeout bounds every outbound gateway call. On timeout the
// payment is left in processing and the webhook resolves the outcome.
const gatewayTimeout = 15 * time.Second

// ChargeRequest is the input for opening a gateway charge.
type ChargeRequest struct {
	Amount    int64
	Currency  string
	OrderID   string
	PaymentID string
}

// PaymentGateway abstracts the card processor so consumers and tests
// don't touch Stripe directly.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (string, error)
	Refund(ctx context.Context, gatewayTxID string, amount int64) (string, error)
}

type StripeService struct {
	SecretKey  string
	WebhookKey string
}

func NewStripeService(secretKey, webhookKey string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey}
}

// CreateCharge opens a PaymentIntent carrying the order and payment ids
// in metadata so webhook events can be correlated back.
func (s *StripeService) CreateCharge(ctx context.Context, req ChargeRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
			Metadata: map[string]string{
				"order_id":   req.OrderID,
				"payment_id": req.PaymentID,
			},
		},
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
	}
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Refund issues a refund against a PaymentIntent.
func (s *StripeService) Refund(ctx context.Context, gatewayTxID string, amount int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout)
	defer cancel()

	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(gatewayTxID),
		Amount:        stripe.Int64(amount),
	}
	ref, err := refund.New(params)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header against the
// configured webhook secret and returns the decoded event.
func (s *StripeService) ParseWebhook(r *http.Request) (stripe.Event, error) {
	var event stripe.Event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return event, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))
	sigHeader := r.Header.Get("Stripe-Signature")
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
}
