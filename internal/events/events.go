package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gastroview/model-service/internal/domain"
)

// Event type identifiers. They double as the message-queue topic names so
// the in-memory emitter and the Kafka publisher stay interchangeable.
const (
	TypeDetectionTaskCreated      = "model_service_detection_task_created"
	TypeClassificationTaskCreated = "model_service_classification_task_created"

	// TypeImageCreated is published by the image service, not by this
	// service; the consumer subscribes to it to open tasks for new images.
	TypeImageCreated = "image_service_image_created"
)

// ImageCreatedEvent is the image service's announcement of a new image.
// Only the fields this service consumes are declared.
type ImageCreatedEvent struct {
	ImageID     int64 `json:"image_id"`
	ImageTypeID int64 `json:"image_type_id"`
}

// TaskCreatedEvent announces that a task row has been committed in
// REQUESTED state. Publishers must emit it only after the row is durable;
// consumers assume at-least-once delivery.
type TaskCreatedEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants above.
	Type string `json:"type"`

	// TaskID is the store-assigned id of the created task.
	TaskID int64 `json:"task_id"`

	// ClassificationType is set only for classification task events.
	ClassificationType domain.ClassificationType `json:"classification_type,omitempty"`

	// CreatedAt is the timestamp when the event was created.
	CreatedAt time.Time `json:"created_at"`
}

// NewDetectionTaskCreated builds the event for a committed detection task.
func NewDetectionTaskCreated(taskID int64) *TaskCreatedEvent {
	return &TaskCreatedEvent{
		ID:        uuid.New(),
		Type:      TypeDetectionTaskCreated,
		TaskID:    taskID,
		CreatedAt: time.Now(),
	}
}

// NewClassificationTaskCreated builds the event for a committed
// classification task.
func NewClassificationTaskCreated(taskID int64, classificationType domain.ClassificationType) *TaskCreatedEvent {
	return &TaskCreatedEvent{
		ID:                 uuid.New(),
		Type:               TypeClassificationTaskCreated,
		TaskID:             taskID,
		ClassificationType: classificationType,
		CreatedAt:          time.Now(),
	}
}

// Handler defines an interface for components that can handle events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskCreatedEvent) error
}

// Publisher defines an interface for components that can publish
// task-created notifications. This allows the lifecycle operator to
// announce tasks without knowledge of the transport.
type Publisher interface {
	// Publish delivers the given event. Returns an error if the event
	// cannot be published.
	Publish(ctx context.Context, event *TaskCreatedEvent) error
}
