package taskmgmt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/events"
	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/platform/timer"
	"github.com/gastroview/model-service/internal/store"
)

// ProcessFunc performs the actual inference work for a claimed task. It
// runs between the claim transaction and the completion transaction, so it
// must never assume it still holds the row lock. Returning an error leaves
// the task in PROCESSING for the reclamation sweep to retry.
type ProcessFunc func(ctx context.Context, task *domain.DetectionTask) error

// DetectionTaskService owns the detection task lifecycle: creation with
// duplicate suppression, the locked claim/complete transitions, and stale
// task reclamation.
type DetectionTaskService struct {
	db        *sql.DB
	tasks     store.DetectionTaskStore
	publisher events.Publisher
	clock     timer.Timer
	logger    *slog.Logger
}

// NewDetectionTaskService creates a DetectionTaskService.
func NewDetectionTaskService(
	db *sql.DB,
	tasks store.DetectionTaskStore,
	publisher events.Publisher,
	clock timer.Timer,
	log *slog.Logger,
) *DetectionTaskService {
	if clock == nil {
		clock = timer.NewSystemTimer()
	}
	return &DetectionTaskService{
		db:        db,
		tasks:     tasks,
		publisher: publisher,
		clock:     clock,
		logger:    log.With("component", "detection_task_service"),
	}
}

// Create inserts a detection task in REQUESTED state and publishes a
// task-created notification after the row is committed.
//
// Duplicate policy: if the image already has a task in REQUESTED or
// PROCESSING state, Create returns domain.ErrTaskAlreadyActive and inserts
// nothing. The count check and the insert share one transaction to close
// the check-then-insert window.
func (s *DetectionTaskService) Create(ctx context.Context, ofImageID int64) (int64, error) {
	log := logger.FromContext(ctx)

	var taskID int64
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		count, err := tasks.CountActiveOfImage(ctx, ofImageID)
		if err != nil {
			return err
		}
		if count > 0 {
			log.Warn("detection task already active for image",
				"of_image_id", ofImageID,
				"active_count", count)
			return fmt.Errorf("%w: image %d", domain.ErrTaskAlreadyActive, ofImageID)
		}

		taskID, err = tasks.Create(ctx, ofImageID, s.clock.NowMillis(), domain.TaskStatusRequested)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.publishCreated(ctx, taskID)
	return taskID, nil
}

// CreateBatch inserts tasks for every image id inside one transaction, so
// a failure never leaves a partially visible batch. Images that already
// have an active task are skipped, not errors: the batch reports which ids
// it created. Notifications go out only after the commit.
func (s *DetectionTaskService) CreateBatch(ctx context.Context, ofImageIDs []int64) ([]int64, error) {
	log := logger.FromContext(ctx)

	var created []int64
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		requestTime := s.clock.NowMillis()

		for _, imageID := range ofImageIDs {
			count, err := tasks.CountActiveOfImage(ctx, imageID)
			if err != nil {
				return err
			}
			if count > 0 {
				log.Warn("skipping image with active detection task in batch",
					"of_image_id", imageID)
				continue
			}

			taskID, err := tasks.Create(ctx, imageID, requestTime, domain.TaskStatusRequested)
			if err != nil {
				return err
			}
			created = append(created, taskID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, taskID := range created {
		s.publishCreated(ctx, taskID)
	}
	return created, nil
}

// ClaimAndProcess drives one task through its lifecycle: a short claim
// transaction (lock, verify REQUESTED, flip to PROCESSING), the process
// function outside any transaction, then a short completion transaction
// (lock, flip to DONE).
//
// Claiming a task that is already PROCESSING or DONE is an idempotent
// no-op: the second caller logs and returns without invoking processFn.
// The row lock is deliberately not held across processFn: a crash in
// between leaves the task in PROCESSING, where the reclamation sweep
// recovers it.
func (s *DetectionTaskService) ClaimAndProcess(ctx context.Context, taskID int64, processFn ProcessFunc) error {
	log := logger.FromContext(ctx).With("detection_task_id", taskID)
	ctx = logger.WithLogger(ctx, log)

	task, claimed, err := s.claim(ctx, taskID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if err := processFn(ctx, task); err != nil {
		log.Error("detection task processing failed, leaving task for reclamation",
			"error", err)
		return fmt.Errorf("failed to process detection task %d: %w", taskID, err)
	}

	return s.complete(ctx, taskID)
}

// claim transitions REQUESTED -> PROCESSING under the row lock. The bool
// result reports whether this caller won the claim.
func (s *DetectionTaskService) claim(ctx context.Context, taskID int64) (*domain.DetectionTask, bool, error) {
	log := logger.FromContext(ctx)

	var task *domain.DetectionTask
	claimed := false
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		locked, err := tasks.GetWithXLock(ctx, taskID)
		if err != nil {
			if store.IsNotFoundError(err) {
				return fmt.Errorf("%w: detection task %d", domain.ErrTaskNotFound, taskID)
			}
			return err
		}

		switch locked.Status {
		case domain.TaskStatusDone:
			log.Info("detection task already done, nothing to do")
			return nil
		case domain.TaskStatusProcessing:
			log.Info("detection task already being processed, skipping")
			return nil
		}

		locked.Status = domain.TaskStatusProcessing
		if err := tasks.Update(ctx, locked); err != nil {
			return err
		}
		task = locked
		claimed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return task, claimed, nil
}

// complete transitions the task to DONE under the row lock.
func (s *DetectionTaskService) complete(ctx context.Context, taskID int64) error {
	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		locked, err := tasks.GetWithXLock(ctx, taskID)
		if err != nil {
			return err
		}
		if locked.Status == domain.TaskStatusDone {
			return nil
		}
		if !locked.Status.CanTransitionTo(domain.TaskStatusDone) {
			return fmt.Errorf("%w: detection task %d cannot move from %s to done",
				domain.ErrInvalidStatusTransition, taskID, locked.Status)
		}

		locked.Status = domain.TaskStatusDone
		return tasks.Update(ctx, locked)
	})
}

// ReclaimStale resets detection tasks stuck in PROCESSING longer than
// timeout back to REQUESTED and returns how many were reset. The
// threshold guard inside the store makes concurrent sweeps safe.
func (s *DetectionTaskService) ReclaimStale(ctx context.Context, timeout time.Duration) (int64, error) {
	log := logger.FromContext(ctx)

	threshold := s.clock.NowMillis() - timeout.Milliseconds()

	staleIDs, err := s.tasks.FindStaleProcessingIDs(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale detection tasks: %w", err)
	}
	if len(staleIDs) > 0 {
		log.Warn("detection tasks stuck in processing past the timeout",
			"task_ids", staleIDs,
			"update_time_threshold", threshold)
	}

	// The reset re-applies the status and threshold guards, so tasks that
	// finished between the two statements are left alone.
	reset, err := s.tasks.ResetStaleProcessingToRequested(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale detection tasks: %w", err)
	}

	if reset > 0 {
		log.Info("reclaimed stale detection tasks",
			"count", reset,
			"update_time_threshold", threshold)
	}
	return reset, nil
}

// ListRequestedIDs returns ids of tasks currently in REQUESTED state, for
// the poll-mode worker.
func (s *DetectionTaskService) ListRequestedIDs(ctx context.Context, limit int) ([]int64, error) {
	return s.tasks.FindRequestedIDs(ctx, limit)
}

// Count and List expose the filtered listing contract to the RPC surface.
func (s *DetectionTaskService) Count(ctx context.Context, filter store.TaskFilter) (int, error) {
	return s.tasks.CountByFilter(ctx, filter)
}

// List returns tasks matching the filter with deterministic pagination.
func (s *DetectionTaskService) List(
	ctx context.Context,
	offset, limit int,
	filter store.TaskFilter,
	order store.TaskSortOrder,
) ([]*domain.DetectionTask, error) {
	return s.tasks.ListByFilter(ctx, offset, limit, filter, order)
}

// publishCreated emits the task-created notification. Publishing happens
// strictly after commit; a publish failure is logged rather than surfaced
// because the task row is durable and the poll-mode worker will pick it up.
func (s *DetectionTaskService) publishCreated(ctx context.Context, taskID int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewDetectionTaskCreated(taskID)); err != nil {
		s.logger.Error("failed to publish detection task created event",
			"detection_task_id", taskID,
			"error", err)
	}
}

// IsConflict reports whether err is the duplicate-active-task conflict.
func IsConflict(err error) bool {
	return errors.Is(err, domain.ErrTaskAlreadyActive)
}
