package store

import (
	"context"
	"database/sql"

	"github.com/gastroview/model-service/internal/domain"
)

// ClassificationResultStore persists classification results. Results are
// append-only: they are written once by the dispatch worker that completed
// the task and never updated.
type ClassificationResultStore interface {
	// Create inserts a result row and returns the store-assigned id.
	// HPStatus may be nil when the axis does not apply.
	Create(ctx context.Context, ofImageID int64, site domain.AnatomicalSite, lesion domain.LesionType, hp *domain.HPStatus, requestTime int64) (int64, error)

	// ListOfImage returns all results recorded for an image, newest first.
	ListOfImage(ctx context.Context, ofImageID int64) ([]*domain.ClassificationResult, error)

	// WithTx returns a store instance bound to the given transaction.
	WithTx(tx *sql.Tx) ClassificationResultStore
}

// ClassificationTypeStore reads the classification-type lookup table.
type ClassificationTypeStore interface {
	// GetByID returns ErrClassificationTypeNotFound when the id is unknown.
	GetByID(ctx context.Context, id domain.ClassificationType) (*domain.ClassificationTypeInfo, error)
	List(ctx context.Context) ([]*domain.ClassificationTypeInfo, error)
}
