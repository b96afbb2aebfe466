package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// Service publishes delivery-outcome events to Kafka. The stream is
// write-only from the bot's point of view; downstream consumers are
// outside this repository.
type Service struct {
	producer *kafka.Writer
}

func New(brokers []string, topic string) *Service {
	producer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Service{producer: producer}
}

func (s *Service) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	err = s.producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(event.RecordID, 10)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish audit event: %w", err)
	}
	return nil
}

func (s *Service) Close() error {
	if err := s.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}

// Nop is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
