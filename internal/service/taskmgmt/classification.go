package taskmgmt

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/events"
	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/platform/timer"
	"github.com/gastroview/model-service/internal/store"
)

// ClassifyFunc performs the inference work for a claimed classification
// task, outside any transaction. The returned result is persisted inside
// the completion transaction, so the DONE flip and the result row commit
// together. A nil result with a nil error completes the task without
// recording anything (the image vanished, say).
type ClassifyFunc func(ctx context.Context, task *domain.ClassificationTask) (*domain.ClassificationResult, error)

// ClassificationTaskService owns the classification task lifecycle.
// Duplicate suppression is scoped per inference axis: an image may hold
// one active task per classification type.
type ClassificationTaskService struct {
	db        *sql.DB
	tasks     store.ClassificationTaskStore
	results   store.ClassificationResultStore
	types     store.ClassificationTypeStore
	publisher events.Publisher
	clock     timer.Timer
	logger    *slog.Logger
}

// NewClassificationTaskService creates a ClassificationTaskService.
func NewClassificationTaskService(
	db *sql.DB,
	tasks store.ClassificationTaskStore,
	results store.ClassificationResultStore,
	types store.ClassificationTypeStore,
	publisher events.Publisher,
	clock timer.Timer,
	log *slog.Logger,
) *ClassificationTaskService {
	if clock == nil {
		clock = timer.NewSystemTimer()
	}
	return &ClassificationTaskService{
		db:        db,
		tasks:     tasks,
		results:   results,
		types:     types,
		publisher: publisher,
		clock:     clock,
		logger:    log.With("component", "classification_task_service"),
	}
}

// Create inserts a classification task in REQUESTED state and publishes a
// task-created notification after commit. It returns
// domain.ErrInvalidClassificationType for an unknown axis and
// domain.ErrTaskAlreadyActive when the image already has an active task
// for this axis.
func (s *ClassificationTaskService) Create(
	ctx context.Context,
	ofImageID int64,
	classificationType domain.ClassificationType,
) (int64, error) {
	log := logger.FromContext(ctx)

	if !classificationType.IsValid() {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidClassificationType, classificationType)
	}

	var taskID int64
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		count, err := tasks.CountActiveOfImage(ctx, ofImageID, classificationType)
		if err != nil {
			return err
		}
		if count > 0 {
			log.Warn("classification task already active for image",
				"of_image_id", ofImageID,
				"classification_type", classificationType.String(),
				"active_count", count)
			return fmt.Errorf("%w: image %d type %s",
				domain.ErrTaskAlreadyActive, ofImageID, classificationType)
		}

		taskID, err = tasks.Create(ctx, ofImageID, classificationType,
			s.clock.NowMillis(), domain.TaskStatusRequested)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.publishCreated(ctx, taskID, classificationType)
	return taskID, nil
}

// CreateBatch inserts tasks for every image id on one axis inside a single
// transaction. Images with an active task on the axis are skipped.
func (s *ClassificationTaskService) CreateBatch(
	ctx context.Context,
	ofImageIDs []int64,
	classificationType domain.ClassificationType,
) ([]int64, error) {
	log := logger.FromContext(ctx)

	if !classificationType.IsValid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidClassificationType, classificationType)
	}

	var created []int64
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)
		requestTime := s.clock.NowMillis()

		for _, imageID := range ofImageIDs {
			count, err := tasks.CountActiveOfImage(ctx, imageID, classificationType)
			if err != nil {
				return err
			}
			if count > 0 {
				log.Warn("skipping image with active classification task in batch",
					"of_image_id", imageID,
					"classification_type", classificationType.String())
				continue
			}

			taskID, err := tasks.Create(ctx, imageID, classificationType,
				requestTime, domain.TaskStatusRequested)
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
		s.publishCreated(ctx, taskID, classificationType)
	}
	return created, nil
}

// ClaimAndProcess drives a classification task through claim, inference
// and completion. Claim and completion are separate short transactions;
// the completion transaction writes the result row and flips the task to
// DONE atomically. Claiming a PROCESSING or DONE task is an idempotent
// no-op.
func (s *ClassificationTaskService) ClaimAndProcess(ctx context.Context, taskID int64, classifyFn ClassifyFunc) error {
	log := logger.FromContext(ctx).With("classification_task_id", taskID)
	ctx = logger.WithLogger(ctx, log)

	task, claimed, err := s.claim(ctx, taskID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	result, err := classifyFn(ctx, task)
	if err != nil {
		log.Error("classification task processing failed, leaving task for reclamation",
			"error", err)
		return fmt.Errorf("failed to process classification task %d: %w", taskID, err)
	}

	return s.complete(ctx, taskID, result)
}

func (s *ClassificationTaskService) claim(ctx context.Context, taskID int64) (*domain.ClassificationTask, bool, error) {
	log := logger.FromContext(ctx)

	var task *domain.ClassificationTask
	claimed := false
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		tasks := s.tasks.WithTx(tx)

		locked, err := tasks.GetWithXLock(ctx, taskID)
		if err != nil {
			if store.IsNotFoundError(err) {
				return fmt.Errorf("%w: classification task %d", domain.ErrTaskNotFound, taskID)
			}
			return err
		}

		switch locked.Status {
		case domain.TaskStatusDone:
			log.Info("classification task already done, nothing to do")
			return nil
		case domain.TaskStatusProcessing:
			log.Info("classification task already being processed, skipping")
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

// complete flips the task to DONE and, when a result is present, records
// it in the same transaction.
func (s *ClassificationTaskService) complete(ctx context.Context, taskID int64, result *domain.ClassificationResult) error {
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
			return fmt.Errorf("%w: classification task %d cannot move from %s to done",
				domain.ErrInvalidStatusTransition, taskID, locked.Status)
		}

		if result != nil {
			results := s.results.WithTx(tx)
			resultID, err := results.Create(ctx, result.OfImageID,
				result.AnatomicalSite, result.LesionType, result.HPStatus,
				locked.RequestTime)
			if err != nil {
				return err
			}
			result.ID = resultID
		}

		locked.Status = domain.TaskStatusDone
		return tasks.Update(ctx, locked)
	})
}

// ReclaimStale resets classification tasks stuck in PROCESSING longer than
// timeout back to REQUESTED and returns how many were reset.
func (s *ClassificationTaskService) ReclaimStale(ctx context.Context, timeout time.Duration) (int64, error) {
	log := logger.FromContext(ctx)

	threshold := s.clock.NowMillis() - timeout.Milliseconds()

	staleIDs, err := s.tasks.FindStaleProcessingIDs(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale classification tasks: %w", err)
	}
	if len(staleIDs) > 0 {
		log.Warn("classification tasks stuck in processing past the timeout",
			"task_ids", staleIDs,
			"update_time_threshold", threshold)
	}

	// The reset re-applies the status and threshold guards, so tasks that
	// finished between the two statements are left alone.
	reset, err := s.tasks.ResetStaleProcessingToRequested(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale classification tasks: %w", err)
	}

	if reset > 0 {
		log.Info("reclaimed stale classification tasks",
			"count", reset,
			"update_time_threshold", threshold)
	}
	return reset, nil
}

// ListRequestedIDs returns ids of tasks currently in REQUESTED state, for
// the poll-mode worker.
func (s *ClassificationTaskService) ListRequestedIDs(ctx context.Context, limit int) ([]int64, error) {
	return s.tasks.FindRequestedIDs(ctx, limit)
}

// Count returns how many tasks match the filter.
func (s *ClassificationTaskService) Count(ctx context.Context, filter store.TaskFilter) (int, error) {
	return s.tasks.CountByFilter(ctx, filter)
}

// List returns tasks matching the filter with deterministic pagination.
func (s *ClassificationTaskService) List(
	ctx context.Context,
	offset, limit int,
	filter store.TaskFilter,
	order store.TaskSortOrder,
) ([]*domain.ClassificationTask, error) {
	return s.tasks.ListByFilter(ctx, offset, limit, filter, order)
}

// ListResultsOfImage returns every classification result recorded for an
// image, newest first.
func (s *ClassificationTaskService) ListResultsOfImage(ctx context.Context, ofImageID int64) ([]*domain.ClassificationResult, error) {
	return s.results.ListOfImage(ctx, ofImageID)
}

// GetType returns one row of the classification-type lookup table.
func (s *ClassificationTaskService) GetType(ctx context.Context, id domain.ClassificationType) (*domain.ClassificationTypeInfo, error) {
	return s.types.GetByID(ctx, id)
}

// ListTypes returns the classification-type lookup table.
func (s *ClassificationTaskService) ListTypes(ctx context.Context) ([]*domain.ClassificationTypeInfo, error) {
	return s.types.List(ctx)
}

func (s *ClassificationTaskService) publishCreated(ctx context.Context, taskID int64, classificationType domain.ClassificationType) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewClassificationTaskCreated(taskID, classificationType)); err != nil {
		s.logger.Error("failed to publish classification task created event",
			"classification_task_id", taskID,
			"classification_type", classificationType.String(),
			"error", err)
	}
}
