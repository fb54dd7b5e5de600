package consumer_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastroview/model-service/internal/consumer"
	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/events"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
	"github.com/gastroview/model-service/internal/testutils"
)

type recordingProcessor struct {
	taskIDs []int64
	err     error
}

func (p *recordingProcessor) Process(ctx context.Context, taskID int64) error {
	if p.err != nil {
		return p.err
	}
	p.taskIDs = append(p.taskIDs, taskID)
	return nil
}

func newLifecycles(t *testing.T) (*taskmgmt.DetectionTaskService, *taskmgmt.ClassificationTaskService, *testutils.FakeDetectionTaskStore, *testutils.FakeClassificationTaskStore) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutils.NewFakeClock(1000)
	detectionTasks := testutils.NewFakeDetectionTaskStore(clock)
	classificationTasks := testutils.NewFakeClassificationTaskStore(clock)
	db := testutils.NewFakeDB()
	t.Cleanup(func() { _ = db.Close() })

	detection := taskmgmt.NewDetectionTaskService(db, detectionTasks, nil, clock, log)
	classification := taskmgmt.NewClassificationTaskService(
		db, classificationTasks, testutils.NewFakeClassificationResultStore(),
		&testutils.FakeClassificationTypeStore{}, nil, clock, log)

	return detection, classification, detectionTasks, classificationTasks
}

func TestHandleImageCreated(t *testing.T) {
	ctx := context.Background()

	payload := func(imageID int64) []byte {
		data, err := json.Marshal(events.ImageCreatedEvent{ImageID: imageID, ImageTypeID: 10})
		require.NoError(t, err)
		return data
	}

	t.Run("opens detection and classification tasks", func(t *testing.T) {
		detection, classification, detectionTasks, classificationTasks := newLifecycles(t)
		creator := consumer.NewTaskCreator(detection, classification, true,
			[]domain.ClassificationType{domain.ClassificationTypeAnatomicalSite})

		require.NoError(t, creator.HandleImageCreated(ctx, payload(42)))

		assert.Equal(t, 1, detectionTasks.CountAll())
		assert.Equal(t, 1, classificationTasks.CountAll())
	})

	t.Run("absorbs duplicate-task conflicts on redelivery", func(t *testing.T) {
		detection, classification, detectionTasks, classificationTasks := newLifecycles(t)
		creator := consumer.NewTaskCreator(detection, classification, true,
			[]domain.ClassificationType{domain.ClassificationTypeAnatomicalSite})

		require.NoError(t, creator.HandleImageCreated(ctx, payload(42)))
		require.NoError(t, creator.HandleImageCreated(ctx, payload(42)))

		assert.Equal(t, 1, detectionTasks.CountAll())
		assert.Equal(t, 1, classificationTasks.CountAll())
	})

	t.Run("detection trigger can be disabled", func(t *testing.T) {
		detection, classification, detectionTasks, _ := newLifecycles(t)
		creator := consumer.NewTaskCreator(detection, classification, false, nil)

		require.NoError(t, creator.HandleImageCreated(ctx, payload(42)))
		assert.Zero(t, detectionTasks.CountAll())
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		detection, classification, _, _ := newLifecycles(t)
		creator := consumer.NewTaskCreator(detection, classification, true, nil)

		assert.Error(t, creator.HandleImageCreated(ctx, []byte("{not json")))
		assert.Error(t, creator.HandleImageCreated(ctx, []byte(`{}`)))
	})
}

func TestTaskDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("routes detection task events to the detect processor", func(t *testing.T) {
		detect := &recordingProcessor{}
		classify := &recordingProcessor{}
		dispatcher := consumer.NewTaskDispatcher(detect, classify)

		payload, err := json.Marshal(events.NewDetectionTaskCreated(7))
		require.NoError(t, err)

		require.NoError(t, dispatcher.HandleDetectionTaskCreated(ctx, payload))
		assert.Equal(t, []int64{7}, detect.taskIDs)
		assert.Empty(t, classify.taskIDs)
	})

	t.Run("routes classification task events to the classify processor", func(t *testing.T) {
		detect := &recordingProcessor{}
		classify := &recordingProcessor{}
		dispatcher := consumer.NewTaskDispatcher(detect, classify)

		payload, err := json.Marshal(events.NewClassificationTaskCreated(9, domain.ClassificationTypeLesion))
		require.NoError(t, err)

		require.NoError(t, dispatcher.HandleClassificationTaskCreated(ctx, payload))
		assert.Equal(t, []int64{9}, classify.taskIDs)
		assert.Empty(t, detect.taskIDs)
	})

	t.Run("rejects events without a task id", func(t *testing.T) {
		dispatcher := consumer.NewTaskDispatcher(&recordingProcessor{}, &recordingProcessor{})

		assert.Error(t, dispatcher.HandleDetectionTaskCreated(ctx, []byte(`{"type":"model_service_detection_task_created"}`)))
	})
}
