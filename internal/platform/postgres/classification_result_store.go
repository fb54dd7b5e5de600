package postgres

import (
	"context"
	"database/sql"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/store"
)

// ClassificationResultStore implements store.ClassificationResultStore
// using PostgreSQL. Rows are append-only.
type ClassificationResultStore struct {
	db store.DBTX
}

// NewClassificationResultStore creates a new ClassificationResultStore.
func NewClassificationResultStore(db store.DBTX) *ClassificationResultStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &ClassificationResultStore{db: db}
}

var _ store.ClassificationResultStore = (*ClassificationResultStore)(nil)

// WithTx returns a store instance bound to the given transaction.
func (s *ClassificationResultStore) WithTx(tx *sql.Tx) store.ClassificationResultStore {
	return &ClassificationResultStore{db: tx}
}

// Create inserts a classification result row and returns its id.
func (s *ClassificationResultStore) Create(
	ctx context.Context,
	ofImageID int64,
	site domain.AnatomicalSite,
	lesion domain.LesionType,
	hp *domain.HPStatus,
	requestTime int64,
) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO model_service_classification_result_tab
			(of_image_id, anatomical_site_type, lesion_type, hp_status, request_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING classification_result_id
	`

	var hpArg sql.NullInt16
	if hp != nil {
		hpArg = sql.NullInt16{Int16: int16(*hp), Valid: true}
	}

	var id int64
	err := s.db.QueryRowContext(ctx, query, ofImageID, site, lesion, hpArg, requestTime).Scan(&id)
	if err != nil {
		log.Error("failed to create classification result",
			"of_image_id", ofImageID,
			"error", err)
		return 0, store.NewStoreError("classification_result", "create", "insert failed", MapError(err))
	}

	return id, nil
}

// ListOfImage returns all results recorded for an image, newest first.
func (s *ClassificationResultStore) ListOfImage(ctx context.Context, ofImageID int64) ([]*domain.ClassificationResult, error) {
	query := `
		SELECT classification_result_id, of_image_id, anatomical_site_type, lesion_type, hp_status, request_time
		FROM model_service_classification_result_tab
		WHERE of_image_id = $1
		ORDER BY classification_result_id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, ofImageID)
	if err != nil {
		return nil, store.NewStoreError("classification_result", "list_of_image", "query failed", MapError(err))
	}
	defer rows.Close()

	var results []*domain.ClassificationResult
	for rows.Next() {
		var r domain.ClassificationResult
		var hp sql.NullInt16
		if err := rows.Scan(&r.ID, &r.OfImageID, &r.AnatomicalSite, &r.LesionType, &hp, &r.RequestTime); err != nil {
			return nil, store.NewStoreError("classification_result", "list_of_image", "scan failed", MapError(err))
		}
		if hp.Valid {
			status := domain.HPStatus(hp.Int16)
			r.HPStatus = &status
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("classification_result", "list_of_image", "row iteration failed", MapError(err))
	}

	return results, nil
}
