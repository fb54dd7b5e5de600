// Package api is the HTTP surface of the model service: task creation and
// listing, classification results, and the classification-type lookup.
package api

import (
	"errors"
	"net/http"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrImageNotFound),
		errors.Is(err, store.ErrDetectionTaskNotFound),
		errors.Is(err, store.ErrClassificationTaskNotFound),
		errors.Is(err, store.ErrClassificationTypeNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrTaskAlreadyActive),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, domain.ErrInvalidClassificationType),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, store.ErrDetectionTaskNotFound),
		errors.Is(err, store.ErrClassificationTaskNotFound):
		return "Task not found"

	case errors.Is(err, domain.ErrImageNotFound):
		return "Image not found"

	case errors.Is(err, store.ErrClassificationTypeNotFound):
		return "Classification type not found"

	case errors.Is(err, domain.ErrTaskAlreadyActive):
		return "A task is already active for this image"

	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return "Task is not in a state that allows this operation"

	case errors.Is(err, domain.ErrInvalidClassificationType):
		return "Unknown classification type"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}
