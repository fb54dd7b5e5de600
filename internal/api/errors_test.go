package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gastroview/model-service/internal/api"
	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrTaskNotFound, http.StatusNotFound},
		{domain.ErrImageNotFound, http.StatusNotFound},
		{store.ErrDetectionTaskNotFound, http.StatusNotFound},
		{store.ErrClassificationTaskNotFound, http.StatusNotFound},
		{store.ErrClassificationTypeNotFound, http.StatusNotFound},
		{domain.ErrTaskAlreadyActive, http.StatusConflict},
		{domain.ErrInvalidStatusTransition, http.StatusConflict},
		{store.ErrDuplicate, http.StatusConflict},
		{domain.ErrInvalidClassificationType, http.StatusBadRequest},
		{store.ErrInvalidEntity, http.StatusBadRequest},
		{errors.New("anything else"), http.StatusInternalServerError},
		{store.ErrTransactionFailed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, api.MapErrorToStatusCode(tc.err), tc.err.Error())
	}

	// Wrapped errors map the same as their sentinels.
	wrapped := fmt.Errorf("create task: %w", domain.ErrTaskAlreadyActive)
	assert.Equal(t, http.StatusConflict, api.MapErrorToStatusCode(wrapped))
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "A task is already active for this image",
		api.GetSafeErrorMessage(domain.ErrTaskAlreadyActive))
	assert.Equal(t, "Task not found",
		api.GetSafeErrorMessage(fmt.Errorf("claim: %w", domain.ErrTaskNotFound)))
	assert.Equal(t, "An unexpected error occurred",
		api.GetSafeErrorMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "An unexpected error occurred", api.GetSafeErrorMessage(nil))
}
