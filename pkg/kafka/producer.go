package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Search-Rank-Tracker/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// TypeHeader names the message header carrying Event.Type.
const TypeHeader = "event-type"

// Event is one message to publish. Key picks the partition, so events that
// must stay ordered share a key. Value is encoded as JSON.
type Event struct {
	Type  string
	Key   string
	Value any
}

// Producer writes events to one topic. Each Publish blocks until every
// in-sync replica has the message.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              1,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           10 * time.Second,
			MaxAttempts:            3,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  time.Now(),
	}
	if event.Type != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: TypeHeader, Value: []byte(event.Type)})
	}

	log := logger.FromContext(ctx).With("component", "kafka-producer", "topic", p.topic)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error("publish failed", "type", event.Type, "key", event.Key, "error", err)
		return fmt.Errorf("publishing %s event to %s: %w", event.Type, p.topic, err)
	}
	log.Debug("event published", "type", event.Type, "key", event.Key, "bytes", len(value))
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}
