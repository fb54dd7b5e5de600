package store

import (
	"context"
	"database/sql"

	"github.com/gastroview/model-service/internal/domain"
)

// TaskSortOrder selects the ordering of task list queries. Every order
// breaks ties by id so pagination is deterministic.
type TaskSortOrder int

// Supported sort orders.
const (
	TaskSortOrderIDAscending TaskSortOrder = iota
	TaskSortOrderIDDescending
	TaskSortOrderRequestTimeAscending
	TaskSortOrderRequestTimeDescending
	TaskSortOrderUpdateTimeAscending
	TaskSortOrderUpdateTimeDescending
)

// TaskFilter restricts task list/count queries. Each field is an IN
// predicate and the predicates are conjunctive. An empty slice matches
// nothing: callers that mean "any" must pass the full allowed set rather
// than omit the field.
type TaskFilter struct {
	ImageIDs            []int64
	ClassificationTypes []domain.ClassificationType // ignored by detection task queries
	Statuses            []domain.TaskStatus
}

// DetectionTaskStore persists detection task rows. It exclusively owns
// locking: GetWithXLock must run inside a transaction-bound instance and
// Update refreshes update_time itself so the staleness clock is never the
// caller's responsibility.
type DetectionTaskStore interface {
	// Create inserts a task row and returns the store-assigned id.
	Create(ctx context.Context, ofImageID int64, requestTime int64, status domain.TaskStatus) (int64, error)

	// GetWithXLock reads a task row under FOR UPDATE. It returns
	// ErrDetectionTaskNotFound when no row matches and
	// ErrInvariantViolation when more than one row matches the id.
	GetWithXLock(ctx context.Context, id int64) (*domain.DetectionTask, error)

	// CountActiveOfImage counts tasks for the image whose status is
	// REQUESTED or PROCESSING. Used for duplicate suppression at creation.
	CountActiveOfImage(ctx context.Context, ofImageID int64) (int, error)

	// Update overwrites the row identified by task.ID and refreshes its
	// update_time as a side effect.
	Update(ctx context.Context, task *domain.DetectionTask) error

	// CountByFilter and ListByFilter implement the filtered listing
	// contract. ListByFilter paginates with offset/limit.
	CountByFilter(ctx context.Context, filter TaskFilter) (int, error)
	ListByFilter(ctx context.Context, offset, limit int, filter TaskFilter, order TaskSortOrder) ([]*domain.DetectionTask, error)

	// FindRequestedIDs returns up to limit ids of REQUESTED tasks, oldest
	// id first. The poll-mode worker drains tasks through this.
	FindRequestedIDs(ctx context.Context, limit int) ([]int64, error)

	// FindStaleProcessingIDs returns the ids of PROCESSING tasks whose
	// update_time is strictly older than the threshold (unix ms).
	FindStaleProcessingIDs(ctx context.Context, updateTimeThreshold int64) ([]int64, error)

	// ResetStaleProcessingToRequested bulk-resets PROCESSING tasks older
	// than the threshold back to REQUESTED, returning how many rows moved.
	// The WHERE-clause guard makes concurrent sweeps safe.
	ResetStaleProcessingToRequested(ctx context.Context, updateTimeThreshold int64) (int64, error)

	// WithTx returns a store instance bound to the given transaction.
	WithTx(tx *sql.Tx) DetectionTaskStore
}

// ClassificationTaskStore persists classification task rows. Contract
// mirrors DetectionTaskStore with the classification type discriminator
// added.
type ClassificationTaskStore interface {
	Create(ctx context.Context, ofImageID int64, classificationType domain.ClassificationType, requestTime int64, status domain.TaskStatus) (int64, error)
	GetWithXLock(ctx context.Context, id int64) (*domain.ClassificationTask, error)

	// CountActiveOfImage scopes duplicate suppression to one inference
	// axis: tasks for different classification types never conflict.
	CountActiveOfImage(ctx context.Context, ofImageID int64, classificationType domain.ClassificationType) (int, error)

	Update(ctx context.Context, task *domain.ClassificationTask) error
	CountByFilter(ctx context.Context, filter TaskFilter) (int, error)
	ListByFilter(ctx context.Context, offset, limit int, filter TaskFilter, order TaskSortOrder) ([]*domain.ClassificationTask, error)
	FindRequestedIDs(ctx context.Context, limit int) ([]int64, error)
	FindStaleProcessingIDs(ctx context.Context, updateTimeThreshold int64) ([]int64, error)
	ResetStaleProcessingToRequested(ctx context.Context, updateTimeThreshold int64) (int64, error)
	WithTx(tx *sql.Tx) ClassificationTaskStore
}
