// The worker binary is the poll-mode processor: one pass over every
// REQUESTED task of both kinds. It backstops the queue path, picking up
// tasks whose created notification was lost.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gastroview/model-service/internal/app"
	"github.com/gastroview/model-service/internal/config"
	"github.com/gastroview/model-service/internal/jobs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker failed: %v\n", err)
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

	return jobs.ProcessRequestedTasks(ctx,
		application.DetectionLifecycle,
		application.ClassificationLifecycle,
		application.DetectWorker,
		application.ClassifyWorker)
}
