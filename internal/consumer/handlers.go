// Package consumer binds message-queue topics to the task machinery: new
// images open tasks, task-created notifications drive the dispatch workers.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/events"
	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
)

// DetectionProcessor processes one detection task by id.
type DetectionProcessor interface {
	Process(ctx context.Context, taskID int64) error
}

// ClassificationProcessor processes one classification task by id.
type ClassificationProcessor interface {
	Process(ctx context.Context, taskID int64) error
}

// TaskCreator opens tasks for newly created images.
type TaskCreator struct {
	detection           *taskmgmt.DetectionTaskService
	classification      *taskmgmt.ClassificationTaskService
	triggerDetection    bool
	triggerClassifyAxes []domain.ClassificationType
}

// NewTaskCreator creates a TaskCreator. classifyAxes lists the axes to open
// a classification task for on each new image; empty disables the trigger.
func NewTaskCreator(
	detection *taskmgmt.DetectionTaskService,
	classification *taskmgmt.ClassificationTaskService,
	triggerDetection bool,
	classifyAxes []domain.ClassificationType,
) *TaskCreator {
	return &TaskCreator{
		detection:           detection,
		classification:      classification,
		triggerDetection:    triggerDetection,
		triggerClassifyAxes: classifyAxes,
	}
}

// HandleImageCreated opens tasks for a new image. Redelivered messages hit
// the duplicate-active-task guard and are absorbed here: a conflict means
// the task already exists, which is exactly the desired end state.
func (t *TaskCreator) HandleImageCreated(ctx context.Context, payload []byte) error {
	log := logger.FromContext(ctx)

	var event events.ImageCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode image created event: %w", err)
	}
	if event.ImageID == 0 {
		return fmt.Errorf("image created event carries no image id")
	}

	if t.triggerDetection {
		if _, err := t.detection.Create(ctx, event.ImageID); err != nil {
			if !taskmgmt.IsConflict(err) {
				return fmt.Errorf("failed to open detection task for image %d: %w",
					event.ImageID, err)
			}
			log.Info("detection task already open for image",
				"of_image_id", event.ImageID)
		}
	}

	for _, axis := range t.triggerClassifyAxes {
		if _, err := t.classification.Create(ctx, event.ImageID, axis); err != nil {
			if !taskmgmt.IsConflict(err) {
				return fmt.Errorf("failed to open %s classification task for image %d: %w",
					axis, event.ImageID, err)
			}
			log.Info("classification task already open for image",
				"of_image_id", event.ImageID,
				"classification_type", axis.String())
		}
	}

	return nil
}

// TaskDispatcher routes task-created notifications to dispatch workers.
type TaskDispatcher struct {
	detect   DetectionProcessor
	classify ClassificationProcessor
}

// NewTaskDispatcher creates a TaskDispatcher.
func NewTaskDispatcher(detect DetectionProcessor, classify ClassificationProcessor) *TaskDispatcher {
	return &TaskDispatcher{detect: detect, classify: classify}
}

// HandleDetectionTaskCreated processes a freshly announced detection task.
func (d *TaskDispatcher) HandleDetectionTaskCreated(ctx context.Context, payload []byte) error {
	event, err := decodeTaskCreated(payload)
	if err != nil {
		return err
	}
	return d.detect.Process(ctx, event.TaskID)
}

// HandleClassificationTaskCreated processes a freshly announced
// classification task.
func (d *TaskDispatcher) HandleClassificationTaskCreated(ctx context.Context, payload []byte) error {
	event, err := decodeTaskCreated(payload)
	if err != nil {
		return err
	}
	return d.classify.Process(ctx, event.TaskID)
}

func decodeTaskCreated(payload []byte) (*events.TaskCreatedEvent, error) {
	var event events.TaskCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode task created event: %w", err)
	}
	if event.TaskID == 0 {
		return nil, fmt.Errorf("task created event carries no task id")
	}
	return &event, nil
}
