package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event is the notification record published for out-of-band consumers
// (chat bridges, digest mailers, dashboards).
type Event struct {
	Kind        string    `json:"kind"`
	RequestID   uuid.UUID `json:"requestId"`
	RecipientID int64     `json:"recipientId"`
	Status      string    `json:"status"`
	ActorID     int64     `json:"actorId"`
	Comment     string    `json:"comment,omitempty"`
}

// EventProducerConfig configures the Kafka notification producer.
type EventProducerConfig struct {
	Brokers []string
	// Topic defaults to "approval.notifications".
	Topic string
	// WriteTimeout defaults to 10s if zero.
	WriteTimeout time.Duration
}

// EventProducer publishes notification events, keyed by request id.
type EventProducer struct {
	writer *kafka.Writer
}

func NewEventProducer(cfg EventProducerConfig) (*EventProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "approval.notifications"
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})
	return &EventProducer{writer: w}, nil
}

func (p *EventProducer) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RequestID.String()),
		Value: value,
		Time:  time.Now().UTC(),
	})
}

func (p *EventProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
