// Package kafkaqueue carries task-created notifications over Kafka. The
// topic names are the event type identifiers, so the publisher and the
// in-memory emitter are interchangeable behind events.Publisher.
package kafkaqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/gastroview/model-service/internal/events"
)

// Publisher writes task-created events to their type's topic.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka-backed events.Publisher.
func NewPublisher(brokers []string, clientID string, logger *slog.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		Transport: &kafka.Transport{
			ClientID: clientID,
		},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{
		writer: writer,
		logger: logger.With("component", "kafka_publisher"),
	}
}

var _ events.Publisher = (*Publisher)(nil)

// Publish writes the event to the topic named by its type. The message key
// is the task id so retries of the same task stay on one partition.
func (p *Publisher) Publish(ctx context.Context, event *events.TaskCreatedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode task created event: %w", err)
	}

	message := kafka.Message{
		Topic: event.Type,
		Key:   []byte(strconv.FormatInt(event.TaskID, 10)),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		p.logger.Error("failed to publish task created event",
			"event_id", event.ID,
			"topic", event.Type,
			"task_id", event.TaskID,
			"error", err)
		return fmt.Errorf("failed to publish to %s: %w", event.Type, err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
