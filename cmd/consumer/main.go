// The consumer binary subscribes to the image and task topics and drives
// task creation and dispatch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gastroview/model-service/internal/app"
	"github.com/gastroview/model-service/internal/config"
	"github.com/gastroview/model-service/internal/events"
	"github.com/gastroview/model-service/internal/platform/kafkaqueue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "consumer failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	queueConsumer := kafkaqueue.NewConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.ConsumerGroupID,
		cfg.Task.WorkerCount,
		application.Logger)

	queueConsumer.RegisterHandler(events.TypeImageCreated,
		application.TaskCreator.HandleImageCreated)
	queueConsumer.RegisterHandler(events.TypeDetectionTaskCreated,
		application.TaskDispatcher.HandleDetectionTaskCreated)
	queueConsumer.RegisterHandler(events.TypeClassificationTaskCreated,
		application.TaskDispatcher.HandleClassificationTaskCreated)

	application.Logger.Info("starting queue consumer",
		"group_id", cfg.Kafka.ConsumerGroupID,
		"worker_count", cfg.Task.WorkerCount)

	if err := queueConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
