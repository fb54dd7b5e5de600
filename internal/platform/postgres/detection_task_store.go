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

// Table and column names kept wire-compatible with the original schema.
const (
	tabDetectionTask = "model_service_detection_task_tab"

	colDetectionTaskID = "detection_task_id"
)

// DetectionTaskStore implements store.DetectionTaskStore using PostgreSQL.
type DetectionTaskStore struct {
	db    store.DBTX
	clock timer.Timer
}

// NewDetectionTaskStore creates a new DetectionTaskStore. The clock is used
// to stamp update_time on every write.
func NewDetectionTaskStore(db store.DBTX, clock timer.Timer) *DetectionTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if clock == nil {
		clock = timer.NewSystemTimer()
	}
	return &DetectionTaskStore{db: db, clock: clock}
}

// Ensure DetectionTaskStore implements store.DetectionTaskStore
var _ store.DetectionTaskStore = (*DetectionTaskStore)(nil)

// WithTx returns a store instance bound to the given transaction.
func (s *DetectionTaskStore) WithTx(tx *sql.Tx) store.DetectionTaskStore {
	return &DetectionTaskStore{db: tx, clock: s.clock}
}

// Create inserts a detection task row and returns the store-assigned id.
// update_time starts equal to requestTime so a task is never stale at birth.
func (s *DetectionTaskStore) Create(
	ctx context.Context,
	ofImageID int64,
	requestTime int64,
	status domain.TaskStatus,
) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO model_service_detection_task_tab (of_image_id, request_time, update_time, status)
		VALUES ($1, $2, $2, $3)
		RETURNING detection_task_id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query, ofImageID, requestTime, status).Scan(&id)
	if err != nil {
		log.Error("failed to create detection task",
			"of_image_id", ofImageID,
			"error", err)
		return 0, store.NewStoreError("detection_task", "create", "insert failed", MapError(err))
	}

	return id, nil
}

// GetWithXLock reads a detection task row under FOR UPDATE. It must be
// called on a transaction-bound instance; the lock is released when the
// owning transaction commits or rolls back.
func (s *DetectionTaskStore) GetWithXLock(ctx context.Context, id int64) (*domain.DetectionTask, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT detection_task_id, of_image_id, request_time, update_time, status
		FROM model_service_detection_task_tab
		WHERE detection_task_id = $1
		FOR UPDATE
	`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		log.Error("failed to get detection task with xlock",
			"detection_task_id", id,
			"error", err)
		return nil, store.NewStoreError("detection_task", "get_with_xlock", "query failed", MapError(err))
	}
	defer rows.Close()

	var tasks []*domain.DetectionTask
	for rows.Next() {
		var t domain.DetectionTask
		if err := rows.Scan(&t.ID, &t.OfImageID, &t.RequestTime, &t.UpdateTime, &t.Status); err != nil {
			return nil, store.NewStoreError("detection_task", "get_with_xlock", "scan failed", MapError(err))
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("detection_task", "get_with_xlock", "row iteration failed", MapError(err))
	}

	if len(tasks) == 0 {
		log.Debug("no detection task with id found", "detection_task_id", id)
		return nil, store.ErrDetectionTaskNotFound
	}
	if len(tasks) > 1 {
		log.Error("more than one detection task with id found",
			"detection_task_id", id,
			"row_count", len(tasks))
		return nil, fmt.Errorf("%w: %d detection task rows for id %d",
			store.ErrInvariantViolation, len(tasks), id)
	}

	return tasks[0], nil
}

// CountActiveOfImage counts tasks for the image in REQUESTED or PROCESSING
// state. The creation-time duplicate check runs through this.
func (s *DetectionTaskStore) CountActiveOfImage(ctx context.Context, ofImageID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM model_service_detection_task_tab
		WHERE of_image_id = $1 AND status IN ($2, $3)
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, ofImageID,
		domain.TaskStatusRequested, domain.TaskStatusProcessing).Scan(&count)
	if err != nil {
		return 0, store.NewStoreError("detection_task", "count_active", "query failed", MapError(err))
	}
	return count, nil
}

// Update overwrites the row identified by task.ID and refreshes its
// update_time from the store clock.
func (s *DetectionTaskStore) Update(ctx context.Context, task *domain.DetectionTask) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE model_service_detection_task_tab
		SET of_image_id = $1, request_time = $2, update_time = $3, status = $4
		WHERE detection_task_id = $5
	`

	now := s.clock.NowMillis()
	result, err := s.db.ExecContext(ctx, query,
		task.OfImageID, task.RequestTime, now, task.Status, task.ID)
	if err != nil {
		log.Error("failed to update detection task",
			"detection_task_id", task.ID,
			"error", err)
		return store.NewStoreError("detection_task", "update", "update failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("detection_task", "update", "rows affected failed", MapError(err))
	}
	if rowsAffected == 0 {
		return store.ErrDetectionTaskNotFound
	}

	task.UpdateTime = now
	return nil
}

// CountByFilter counts tasks matching the filter. An empty slice in any
// filter field matches nothing by contract.
func (s *DetectionTaskStore) CountByFilter(ctx context.Context, filter store.TaskFilter) (int, error) {
	if len(filter.ImageIDs) == 0 || len(filter.Statuses) == 0 {
		return 0, nil
	}

	var clauses []string
	var args []any
	inClause(&clauses, &args, "of_image_id", filter.ImageIDs)
	inClause(&clauses, &args, "status", filter.Statuses)

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s",
		tabDetectionTask, strings.Join(clauses, " AND "))

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, store.NewStoreError("detection_task", "count_by_filter", "query failed", MapError(err))
	}
	return count, nil
}

// ListByFilter lists tasks matching the filter with offset/limit pagination
// and deterministic ordering.
func (s *DetectionTaskStore) ListByFilter(
	ctx context.Context,
	offset, limit int,
	filter store.TaskFilter,
	order store.TaskSortOrder,
) ([]*domain.DetectionTask, error) {
	if len(filter.ImageIDs) == 0 || len(filter.Statuses) == 0 {
		return nil, nil
	}

	var clauses []string
	var args []any
	inClause(&clauses, &args, "of_image_id", filter.ImageIDs)
	inClause(&clauses, &args, "status", filter.Statuses)

	args = append(args, limit)
	limitArg := len(args)
	args = append(args, offset)
	offsetArg := len(args)

	query := fmt.Sprintf(`
		SELECT detection_task_id, of_image_id, request_time, update_time, status
		FROM %s
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		tabDetectionTask,
		strings.Join(clauses, " AND "),
		orderClause(order, colDetectionTaskID),
		limitArg, offsetArg)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("detection_task", "list_by_filter", "query failed", MapError(err))
	}
	defer rows.Close()

	var tasks []*domain.DetectionTask
	for rows.Next() {
		var t domain.DetectionTask
		if err := rows.Scan(&t.ID, &t.OfImageID, &t.RequestTime, &t.UpdateTime, &t.Status); err != nil {
			return nil, store.NewStoreError("detection_task", "list_by_filter", "scan failed", MapError(err))
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("detection_task", "list_by_filter", "row iteration failed", MapError(err))
	}

	return tasks, nil
}

// FindRequestedIDs returns up to limit ids of REQUESTED tasks, oldest id
// first.
func (s *DetectionTaskStore) FindRequestedIDs(ctx context.Context, limit int) ([]int64, error) {
	query := `
		SELECT detection_task_id
		FROM model_service_detection_task_tab
		WHERE status = $1
		ORDER BY detection_task_id ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusRequested, limit)
	if err != nil {
		return nil, store.NewStoreError("detection_task", "find_requested", "query failed", MapError(err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("detection_task", "find_requested", "scan failed", MapError(err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("detection_task", "find_requested", "row iteration failed", MapError(err))
	}

	return ids, nil
}

// FindStaleProcessingIDs returns ids of PROCESSING tasks whose update_time
// is strictly older than the threshold.
func (s *DetectionTaskStore) FindStaleProcessingIDs(ctx context.Context, updateTimeThreshold int64) ([]int64, error) {
	query := `
		SELECT detection_task_id
		FROM model_service_detection_task_tab
		WHERE status = $1 AND update_time < $2
		ORDER BY detection_task_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, domain.TaskStatusProcessing, updateTimeThreshold)
	if err != nil {
		return nil, store.NewStoreError("detection_task", "find_stale", "query failed", MapError(err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("detection_task", "find_stale", "scan failed", MapError(err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("detection_task", "find_stale", "row iteration failed", MapError(err))
	}

	return ids, nil
}

// ResetStaleProcessingToRequested bulk-resets stale PROCESSING tasks back to
// REQUESTED. The status/update_time guard in the WHERE clause makes the
// operation idempotent, so overlapping sweeps are safe.
func (s *DetectionTaskStore) ResetStaleProcessingToRequested(ctx context.Context, updateTimeThreshold int64) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE model_service_detection_task_tab
		SET status = $1, update_time = $2
		WHERE status = $3 AND update_time < $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusRequested, s.clock.NowMillis(),
		domain.TaskStatusProcessing, updateTimeThreshold)
	if err != nil {
		log.Error("failed to reset stale processing detection tasks",
			"update_time_threshold", updateTimeThreshold,
			"error", err)
		return 0, store.NewStoreError("detection_task", "reset_stale", "update failed", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError("detection_task", "reset_stale", "rows affected failed", MapError(err))
	}

	return rowsAffected, nil
}
