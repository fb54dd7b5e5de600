// The sweeper binary reclaims tasks stuck in PROCESSING. With -once it
// runs a single sweep and exits; otherwise it runs on the configured cron
// schedule until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/gastroview/model-service/internal/app"
	"github.com/gastroview/model-service/internal/config"
	"github.com/gastroview/model-service/internal/jobs"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	if err := run(*once); err != nil {
		fmt.Fprintf(os.Stderr, "sweeper failed: %v\n", err)
		os.Exit(1)
	}
}

func run(once bool) error {
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

	sweep := func() error {
		return jobs.ReclaimStaleTasks(ctx,
			application.DetectionLifecycle,
			application.ClassificationLifecycle,
			application.ProcessingTimeout())
	}

	if once {
		return sweep()
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Task.SweepSchedule, func() {
		if err := sweep(); err != nil {
			application.Logger.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", cfg.Task.SweepSchedule, err)
	}

	application.Logger.Info("starting sweeper", "schedule", cfg.Task.SweepSchedule)
	scheduler.Start()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	return nil
}
