package kafka

import (
	"context"
	"encoding/json"
	"time"

	"payment-service/models"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher is what services depend on; it is satisfied by
// Producer and mocked in tests.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error
}

// Producer writes JSON events, one topic per routing key, keyed by
// order id so per-order ordering is preserved within a partition.
type Producer struct {
	writer *kafkago.Writer
	logger *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	logger.Info("Kafka producer initialized", zap.Strings("brokers", brokers))
	return &Producer{writer: w, logger: logger}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// PublishPaymentEvent publishes a payment lifecycle event to the topic
// named after its type (payment.completed, payment.failed, payment.refunded).
func (p *Producer) PublishPaymentEvent(ctx context.Context, event models.PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, event.Type, event.OrderID, data); err != nil {
		return err
	}
	p.logger.Info("Payment event published",
		zap.String("type", event.Type),
		zap.String("order_id", event.OrderID),
		zap.String("payment_id", event.PaymentID),
	)
	return nil
}

func (p *Producer) Close() error {
	p.logger.Info("Closing Kafka producer")
	return p.writer.Close()
}
