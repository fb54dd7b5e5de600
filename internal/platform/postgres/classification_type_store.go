package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/store"
)

// ClassificationTypeStore reads the classification-type lookup table.
type ClassificationTypeStore struct {
	db store.DBTX
}

// NewClassificationTypeStore creates a new ClassificationTypeStore.
func NewClassificationTypeStore(db store.DBTX) *ClassificationTypeStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &ClassificationTypeStore{db: db}
}

var _ store.ClassificationTypeStore = (*ClassificationTypeStore)(nil)

// GetByID returns the classification type row for the id.
func (s *ClassificationTypeStore) GetByID(ctx context.Context, id domain.ClassificationType) (*domain.ClassificationTypeInfo, error) {
	query := `
		SELECT classification_type_id, display_name
		FROM model_service_classification_type_tab
		WHERE classification_type_id = $1
	`

	var info domain.ClassificationTypeInfo
	err := s.db.QueryRowContext(ctx, query, id).Scan(&info.ID, &info.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrClassificationTypeNotFound
		}
		return nil, store.NewStoreError("classification_type", "get_by_id", "query failed", MapError(err))
	}

	return &info, nil
}

// List returns all classification type rows in id order.
func (s *ClassificationTypeStore) List(ctx context.Context) ([]*domain.ClassificationTypeInfo, error) {
	query := `
		SELECT classification_type_id, display_name
		FROM model_service_classification_type_tab
		ORDER BY classification_type_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.NewStoreError("classification_type", "list", "query failed", MapError(err))
	}
	defer rows.Close()

	var infos []*domain.ClassificationTypeInfo
	for rows.Next() {
		var info domain.ClassificationTypeInfo
		if err := rows.Scan(&info.ID, &info.DisplayName); err != nil {
			return nil, store.NewStoreError("classification_type", "list", "scan failed", MapError(err))
		}
		infos = append(infos, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("classification_type", "list", "row iteration failed", MapError(err))
	}

	return infos, nil
}
