package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// HandlerFunc processes one message. Returning nil acknowledges the
// message. A transient error triggers bounded in-process redelivery; a
// PermanentError (or exhausted retries) routes the message to the DLQ
// topic and then acknowledges it.
type HandlerFunc func(ctx context.Context, value []byte) error

// PermanentError marks a failure that retrying cannot fix (malformed
// payload, data-quality violations). The message goes straight to the
// DLQ.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	DLQTopic    string
	MaxAttempts int
}

// Consumer is a single-goroutine loop over one topic. Messages are
// fetched and only committed after the handler succeeds, so a crash
// mid-handler redelivers the message.
type Consumer struct {
	reader      *kafkago.Reader
	dlq         EventPublisher
	dlqTopic    string
	maxAttempts int
	topic       string
	handler     HandlerFunc
	logger      *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, dlq EventPublisher, handler HandlerFunc, logger *zap.Logger) *Consumer {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	logger.Info("Consumer initialized",
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
		zap.Strings("brokers", cfg.Brokers),
	)
	return &Consumer{
		reader:      r,
		dlq:         dlq,
		dlqTopic:    cfg.DLQTopic,
		maxAttempts: maxAttempts,
		topic:       cfg.Topic,
		handler:     handler,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("Consumer started", zap.String("topic", c.topic))
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("Consumer stopping", zap.String("topic", c.topic))
				return
			}
			c.logger.Warn("Fetch error", zap.String("topic", c.topic), zap.Error(err))
			continue
		}

		if err := c.process(ctx, m.Value); err != nil {
			if dlqErr := c.deadLetter(ctx, m, err); dlqErr != nil {
				// No durable copy of the failure; leave the offset
				// uncommitted so the broker redelivers.
				continue
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("Commit failed; message will be redelivered",
				zap.String("topic", c.topic),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

// process retries transient failures with backoff up to maxAttempts.
// It returns nil once handled, or the final error when the message
// should be dead-lettered.
func (c *Consumer) process(ctx context.Context, value []byte) error {
	backoff := time.Second
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, value)
		if err == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			c.logger.Warn("Permanent handler failure; dead-lettering",
				zap.String("topic", c.topic),
				zap.Error(perm.Err),
			)
			return err
		}
		if attempt >= c.maxAttempts {
			c.logger.Error("Retries exhausted; dead-lettering",
				zap.String("topic", c.topic),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return err
		}
		c.logger.Warn("Transient handler failure",
			zap.String("topic", c.topic),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// deadLetter publishes a failed message to the DLQ topic. A non-nil
// return means no durable copy exists and the message must not be
// committed.
func (c *Consumer) deadLetter(ctx context.Context, m kafkago.Message, cause error) error {
	if c.dlq == nil || c.dlqTopic == "" {
		c.logger.Error("No DLQ configured; dropping failed message",
			zap.String("topic", c.topic),
			zap.Int64("offset", m.Offset),
			zap.NamedError("cause", cause),
		)
		return nil
	}
	if err := c.dlq.Publish(ctx, c.dlqTopic, c.topic, m.Value); err != nil {
		c.logger.Error("Failed to publish to DLQ; message will be redelivered",
			zap.String("topic", c.topic),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return err
	}
	c.logger.Warn("Message routed to DLQ",
		zap.String("source_topic", c.topic),
		zap.String("dlq_topic", c.dlqTopic),
		zap.NamedError("cause", cause),
	)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
