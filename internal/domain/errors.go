// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrTaskAlreadyActive is returned when a task is created for an image
	// that already has a task in REQUESTED or PROCESSING state for the same
	// kind (and classification type, where applicable).
	ErrTaskAlreadyActive = errors.New("an active task already exists for this image")

	// ErrTaskNotFound is returned when a task id does not resolve to a row.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidStatusTransition is returned when a caller attempts a
	// transition the status machine forbids.
	ErrInvalidStatusTransition = errors.New("invalid task status transition")

	// ErrImageNotFound is returned by the image service collaborator when
	// the subject image no longer exists. This is a legitimate branch, not
	// a failure: the task completes as a no-op.
	ErrImageNotFound = errors.New("image not found")

	// ErrUpstreamInference is returned when an external inference backend
	// call fails. Retry happens only through the task being re-requested,
	// never via in-process retry loops.
	ErrUpstreamInference = errors.New("inference backend call failed")

	// ErrInvalidClassificationType is returned when a classification type id
	// does not name a known inference axis.
	ErrInvalidClassificationType = errors.New("invalid classification type")
)
