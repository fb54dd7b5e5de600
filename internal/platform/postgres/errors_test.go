package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/gastroview/model-service/internal/store"
)

func TestMapError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		err := MapError(sql.ErrNoRows)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("wrapped no rows maps to not found", func(t *testing.T) {
		err := MapError(fmt.Errorf("scan: %w", sql.ErrNoRows))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_of_image_id"})
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("constraint violations map to invalid entity", func(t *testing.T) {
		for _, code := range []string{"23503", "23514", "23502"} {
			err := MapError(&pgconn.PgError{Code: code})
			assert.ErrorIs(t, err, store.ErrInvalidEntity, code)
		}
	})

	t.Run("unknown errors pass through unchanged", func(t *testing.T) {
		original := errors.New("connection reset")
		assert.Equal(t, original, MapError(original))
	})
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}
