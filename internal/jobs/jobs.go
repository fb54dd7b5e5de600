// Package jobs holds the batch entry points shared by the worker and
// sweeper binaries.
package jobs

import (
	"context"
	"time"

	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/service/classify"
	"github.com/gastroview/model-service/internal/service/detect"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
)

// requestedBatchLimit bounds one poll pass. REQUESTED tasks beyond the
// limit are picked up by the next pass.
const requestedBatchLimit = 500

// ProcessRequestedTasks drains REQUESTED tasks of both kinds through the
// dispatch workers. It is the poll-path complement to the queue consumer:
// tasks whose created notification was lost still get processed here.
func ProcessRequestedTasks(
	ctx context.Context,
	detectionLifecycle *taskmgmt.DetectionTaskService,
	classificationLifecycle *taskmgmt.ClassificationTaskService,
	detectWorker *detect.Worker,
	classifyWorker *classify.Worker,
) error {
	log := logger.FromContext(ctx)

	detectionIDs, err := detectionLifecycle.ListRequestedIDs(ctx, requestedBatchLimit)
	if err != nil {
		return err
	}
	log.Info("processing requested detection tasks", "count", len(detectionIDs))
	detectWorker.ProcessMany(ctx, detectionIDs)

	classificationIDs, err := classificationLifecycle.ListRequestedIDs(ctx, requestedBatchLimit)
	if err != nil {
		return err
	}
	log.Info("processing requested classification tasks", "count", len(classificationIDs))
	classifyWorker.ProcessMany(ctx, classificationIDs)

	return nil
}

// ReclaimStaleTasks resets tasks of both kinds that have sat in PROCESSING
// longer than timeout. A failure on one kind does not skip the other.
func ReclaimStaleTasks(
	ctx context.Context,
	detectionLifecycle *taskmgmt.DetectionTaskService,
	classificationLifecycle *taskmgmt.ClassificationTaskService,
	timeout time.Duration,
) error {
	log := logger.FromContext(ctx)

	var firstErr error
	if _, err := detectionLifecycle.ReclaimStale(ctx, timeout); err != nil {
		log.Error("detection task reclamation failed", "error", err)
		firstErr = err
	}
	if _, err := classificationLifecycle.ReclaimStale(ctx, timeout); err != nil {
		log.Error("classification task reclamation failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
