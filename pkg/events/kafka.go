package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaClient mirrors committed room events to a Kafka topic so consumers
// outside the process (analytics, history) can follow along. In-process
// fan-out to connected clients goes through the broadcast hub, not Kafka.
type KafkaClient struct {
	writer *kafka.Writer
}

func NewKafkaClient(brokers []string, topic string) *KafkaClient {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &KafkaClient{writer: writer}
}

// PublishEvent writes the event keyed by room code, so per-room ordering is
// preserved within a partition.
func (k *KafkaClient) PublishEvent(ctx context.Context, event Event) error {
	messageJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RoomCode),
		Value: messageJSON,
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (k *KafkaClient) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}
