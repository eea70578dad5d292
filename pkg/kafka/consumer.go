// Package kafka carries JSON events over segmentio/kafka-go. Producers tag
// each message with its event type; consumers may subscribe to one type and
// commit everything else unseen.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// Message is what a Handler sees of a consumed record.
type Message struct {
	Type      string
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
}

// Handler processes one message. A returned error is retried; once the
// retries run out the message is left uncommitted and the consumer moves on.
type Handler func(ctx context.Context, msg Message) error

type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	// only, when set, restricts the handler to messages of that type.
	only   string
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewConsumer joins cfg.ConsumerGroup on topic. eventType may be empty to
// receive every message.
func NewConsumer(cfg config.KafkaConfig, topic, eventType string, handler Handler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    1 << 20,
			StartOffset: kafka.LastOffset,
		}),
		handler: handler,
		only:    eventType,
		retry:   resilience.RetryConfig{MaxAttempts: 3},
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "event_type", c.only)
	defer c.reader.Close()
	for {
		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		msg := toMessage(raw)
		if c.only != "" && msg.Type != c.only {
			c.commit(ctx, raw)
			continue
		}

		err = resilience.Retry(ctx, "kafka-handler", c.retry, func() error {
			return c.handler(ctx, msg)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("handler failed, skipping message",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		c.commit(ctx, raw)
	}
}

func (c *Consumer) commit(ctx context.Context, raw kafka.Message) {
	if err := c.reader.CommitMessages(ctx, raw); err != nil {
		c.logger.Error("commit failed", "partition", raw.Partition, "offset", raw.Offset, "error", err)
	}
}

func toMessage(raw kafka.Message) Message {
	msg := Message{
		Key:       raw.Key,
		Value:     raw.Value,
		Partition: raw.Partition,
		Offset:    raw.Offset,
	}
	for _, h := range raw.Headers {
		if h.Key == TypeHeader {
			msg.Type = string(h.Value)
		}
	}
	return msg
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding kafka message: %w", err)
	}
	return v, nil
}
