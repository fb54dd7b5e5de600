package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/platform/timer"
	"github.com/gastroview/model-service/internal/store"
)

const (
	tabClassificationTask = "model_service_classification_task_tab"

	colClassificationTaskID = "classification_task_id"
)

// ClassificationTaskStore implements store.ClassificationTaskStore using
// PostgreSQL. It mirrors DetectionTaskStore with the classification type
// discriminator added to creation and duplicate counting.
type ClassificationTaskStore struct {
	db    store.DBTX
	clock timer.Timer
}

// NewClassificationTaskStore creates a new ClassificationTaskStore.
func NewClassificationTaskStore(db store.DBTX, clock timer.Timer) *ClassificationTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if clock == nil {
		clock = timer.NewSystemTimer()
	}
	return &ClassificationTaskStore{db: db, clock: clock}
}

var _ store.ClassificationTaskStore = (*ClassificationTaskStore)(nil)

// WithTx returns a store instance bound to the given transaction.
func (s *ClassificationTaskStore) WithTx(tx *sql.Tx) store.ClassificationTaskStore {
	return &ClassificationTaskStore{db: tx, clock: s.clock}
}

// Create inserts a classification task row and returns the store-assigned id.
func (s *ClassificationTaskStore) Create(
	ctx context.Context,
	ofImageID int64,
	classificationType domain.ClassificationType,
	requestTime int64,
	status domain.TaskStatus,
) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO model_service_classification_task_tab
			(of_image_id, classification_type, request_time, update_time, status)
		VALUES ($1, $2, $3, $3, $4)
		RETURNING classification_task_id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query, ofImageID, classificationType, requestTime, status).Scan(&id)
	if err != nil {
		log.Error("failed to create classification task",
			"of_image_id", ofImageID,
			"classification_type", classificationType,
			"error", err)
		return 0, store.NewStoreError("classification_task", "create", "insert failed", MapError(err))
	}

	return id, nil
}

// GetWithXLock reads a classification task row under FOR UPDATE.
func (s *ClassificationTaskStore) GetWithXLock(ctx context.Context, id int64) (*domain.ClassificationTask, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT classification_task_id, of_image_id, classification_type, request_time, update_time, status
		FROM model_service_classification_task_tab
		WHERE classification_task_id = $1
		FOR UPDATE
	`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		log.Error("failed to get classification task with xlock",
			"classification_task_id", id,
			"error", err)
		return nil, store.NewStoreError("classification_task", "get_with_xlock", "query failed", MapError(err))
	}
	defer rows.Close()

	var tasks []*domain.ClassificationTask
	for rows.Next() {
		var t domain.ClassificationTask
		if err := rows.Scan(&t.ID, &t.OfImageID, &t.ClassificationType, &t.RequestTime, &t.UpdateTime, &t.Status); err != nil {
			return nil, store.NewStoreError("classification_task", "get_with_xlock", "scan failed", MapError(err))
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("classification_task", "get_with_xlock", "row iteration failed", MapError(err))
	}

	if len(tasks) == 0 {
		log.Debug("no classification task with id found", "classification_task_id", id)
		return nil, store.ErrClassificationTaskNotFound
	}
	if len(tasks) > 1 {
		log.Error("more than one classification task with id found",
			"classification_task_id", id,
			"row_count", len(tasks))
		return nil, fmt.Errorf("%w: %d classification task rows for id %d",
			store.ErrInvariantViolation, len(tasks), id)
	}

	return tasks[0], nil
}

// CountActiveOfImage counts active tasks for the image on one
// classification axis. Tasks on different axes never conflict.
func (s *ClassificationTaskStore) CountActiveOfImage(
	ctx context.Context,
	ofImageID int64,
	classificationType domain.ClassificationType,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM model_service_classification_task_tab
		WHERE of_image_id = $1 AND classification_type = $2 AND status IN ($3, $4)
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, ofImageID, classificationType,
		domain.TaskStatusRequested, domain.TaskStatusProcessing).Scan(&count)
	if err != nil {
		return 0, store.NewStoreError("classification_task", "count_active", "query failed", MapError(err))
	}
	return count, nil
}

// Update overwrites the row identified by task.ID and refreshes its
// update_time from the store clock.
func (s *ClassificationTaskStore) Update(ctx context.Context, task *domain.ClassificationTask) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE model_service_classification_task_tab
		SET of_image_id = $1, classification_type = $2, request_time = $3, update_time = $4, status = $5
		WHERE classification_task_id = $6
	`

	now := s.clock.NowMillis()
	result, err := s.db.ExecContext(ctx, query,
		task.OfImageID, task.ClassificationType, task.RequestTime, now, task.Status, task.ID)
	if err != nil {
		log.Error("failed to update classification task",
			"classification_task_id", task.ID,
			"error", err)
		return store.NewStoreError("classification_task", "update", "update failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("classification_task", "update", "rows affected failed", MapError(err))
	}
	if rowsAffected == 0 {
		return store.ErrClassificationTaskNotFound
	}

	task.UpdateTime = now
	return nil
}

// CountByFilter counts tasks matching the filter.
func (s *ClassificationTaskStore) CountByFilter(ctx context.Context, filter store.TaskFilter) (int, error) {
	if len(filter.ImageIDs) == 0 || len(filter.ClassificationTypes) == 0 || len(filter.Statuses) == 0 {
		return 0, nil
	}

	var clauses []string
	var args []any
	inClause(&clauses, &args, "of_image_id", filter.ImageIDs)
	inClause(&clauses, &args, "classification_type", filter.ClassificationTypes)
	inClause(&clauses, &args, "status", filter.Statuses)

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s",
		tabClassificationTask, strings.Join(clauses, " AND "))

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, store.NewStoreError("classification_task", "count_by_filter", "query failed", MapError(err))
	}
	return count, nil
}

// ListByFilter lists tasks matching the filter with deterministic ordering.
func (s *ClassificationTaskStore) ListByFilter(
	ctx context.Context,
	offset, limit int,
	filter store.TaskFilter,
	order store.TaskSortOrder,
) ([]*domain.ClassificationTask, error) {
	if len(filter.ImageIDs) == 0 || len(filter.ClassificationTypes) == 0 || len(filter.Statuses) == 0 {
		return nil, nil
	}

	var clauses []string
	var args []any
	inClause(&clauses, &args, "of_image_id", filter.ImageIDs)
	inClause(&clauses, &args, "classification_type", filter.ClassificationTypes)
	inClause(&clauses, &args, "status", filter.Statuses)

	args = append(args, limit)
	limitArg := len(args)
	args = append(args, offset)
	offsetArg := len(args)

	query := fmt.Sprintf(`
		SELECT classification_task_id, of_image_id, classification_type, request_time, update_time, status
		FROM %s
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		tabClassificationTask,
		strings.Join(clauses, " AND "),
		orderClause(order, colClassificationTaskID),
		limitArg, offsetArg)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("classification_task", "list_by_filter", "query failed", MapError(err))
	}
	defer rows.Close()

	var tasks []*domain.ClassificationTask
	for rows.Next() {
		var t domain.ClassificationTask
		if err := rows.Scan(&t.ID, &t.OfImageID, &t.ClassificationType, &t.RequestTime, &t.UpdateTime, &t.Status); err != nil {
			return nil, store.NewStoreError("classification_task", "list_by_filter", "scan failed", MapError(err))
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("classification_task", "list_by_filter", "row iteration failed", MapError(err))
	}

	return tasks, nil
}

// FindRequestedIDs returns up to limit ids of REQUESTED tasks, oldest id
// first.
func (s *ClassificationTaskStore) FindRequestedIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT classification_task_id
		FROM model_service_classification_task_tab
		WHERE status = $1
		ORDER BY classification_task_id ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusRequested, limit)
	if err != nil {
		return nil, store.NewStoreError("classification_task", "find_requested", "query failed", MapError(err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("classification_task", "find_requested", "scan failed", MapError(err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("classification_task", "find_requested", "row iteration failed", MapError(err))
	}

	return ids, nil
}

// FindStaleProcessingIDs returns ids of PROCESSING tasks older than the
// threshold.
func (s *ClassificationTaskStore) FindStaleProcessingIDs(ctx context.Context, updateTimeThreshold int64) ([]int64, error) {
	query := `
		SELECT classification_task_id
		FROM model_service_classification_task_tab
		WHERE status = $1 AND update_time < $2
		ORDER BY classification_task_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusProcessing, updateTimeThreshold)
	if err != nil {
		return nil, store.NewStoreError("classification_task", "find_stale", "query failed", MapError(err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("classification_task", "find_stale", "scan failed", MapError(err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("classification_task", "find_stale", "row iteration failed", MapError(err))
	}

	return ids, nil
}

// ResetStaleProcessingToRequested bulk-resets stale PROCESSING tasks back
// to REQUESTED.
func (s *ClassificationTaskStore) ResetStaleProcessingToRequested(ctx context.Context, updateTimeThreshold int64) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE model_service_classification_task_tab
		SET status = $1, update_time = $2
		WHERE status = $3 AND update_time < $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusRequested, s.clock.NowMillis(),
		domain.TaskStatusProcessing, updateTimeThreshold)
	if err != nil {
		log.Error("failed to reset stale processing classification tasks",
			"update_time_threshold", updateTimeThreshold,
			"error", err)
		return 0, store.NewStoreError("classification_task", "reset_stale", "update failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError("classification_task", "reset_stale", "rows affected failed", MapError(err))
	}

	return rowsAffected, nil
}
