package kafkaqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gastroview/model-service/internal/platform/logger"
)

// MessageHandler processes one message's payload. A returned error is
// logged and the message is committed anyway: the queue is a trigger, not
// the source of truth, and a wedged task is recovered by the reclamation
// sweep rather than by redelivery storms.
type MessageHandler func(ctx context.Context, payload []byte) error

// Fetch errors back off exponentially between these bounds so a broker
// outage never turns into a permanently dead topic.
const (
	fetchRetryBase = time.Second
	fetchRetryMax  = 30 * time.Second
)

// topicReader is the slice of kafka.Reader the fetch loop needs.
type topicReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a set of topics within one consumer group and dispatches
// messages to per-topic handlers through a bounded worker pool.
type Consumer struct {
	brokers     []string
	groupID     string
	workerCount int
	handlers    map[string]MessageHandler
	logger      *slog.Logger
}

// NewConsumer creates a Consumer. workerCount bounds concurrent handler
// executions across all topics.
func NewConsumer(brokers []string, groupID string, workerCount int, logger *slog.Logger) *Consumer {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Consumer{
		brokers:     brokers,
		groupID:     groupID,
		workerCount: workerCount,
		handlers:    make(map[string]MessageHandler),
		logger:      logger.With("component", "kafka_consumer"),
	}
}

// RegisterHandler binds a topic to its handler. Must be called before Run.
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.handlers[topic] = handler
}

type job struct {
	reader  topicReader
	message kafka.Message
	handler MessageHandler
}

// Run consumes until ctx is cancelled. One fetch loop per topic feeds a
// shared worker pool; each worker handles the message and then commits it,
// giving at-least-once processing.
func (c *Consumer) Run(ctx context.Context) error {
	jobs := make(chan job)

	var workers sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		workers.Add(1)
		go func(workerID int) {
			defer workers.Done()
			for j := range jobs {
				c.handle(ctx, workerID, j)
			}
		}(i)
	}

	var fetchers sync.WaitGroup
	for topic, handler := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers: c.brokers,
			GroupID: c.groupID,
			Topic:   topic,
		})

		fetchers.Add(1)
		go func(topic string, reader topicReader, handler MessageHandler) {
			defer fetchers.Done()
			defer func() { _ = reader.Close() }()
			c.fetchLoop(ctx, topic, reader, handler, jobs)
		}(topic, reader, handler)
	}

	fetchers.Wait()
	close(jobs)
	workers.Wait()
	return ctx.Err()
}

// fetchLoop pulls messages from one topic until ctx is cancelled. Fetch
// errors are retried with capped exponential backoff: a broker hiccup or
// rebalance must not stop consumption of the topic for the life of the
// process.
func (c *Consumer) fetchLoop(ctx context.Context, topic string, reader topicReader, handler MessageHandler, jobs chan<- job) {
	delay := fetchRetryBase
	for {
		message, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}

			c.logger.Error("failed to fetch message, retrying",
				"topic", topic,
				"retry_in", delay.String(),
				"error", err)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			delay *= 2
			if delay > fetchRetryMax {
				delay = fetchRetryMax
			}
			continue
		}
		delay = fetchRetryBase

		select {
		case jobs <- job{reader: reader, message: message, handler: handler}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) handle(ctx context.Context, workerID int, j job) {
	log := c.logger.With(
		"worker_id", workerID,
		"topic", j.message.Topic,
		"partition", j.message.Partition,
		"offset", j.message.Offset)

	handlerCtx := logger.WithLogger(ctx, log)

	if err := j.handler(handlerCtx, j.message.Value); err != nil {
		log.Error("message handler failed", "error", err)
	}

	if err := j.reader.CommitMessages(ctx, j.message); err != nil {
		log.Error("failed to commit message", "error", err)
	}
}
