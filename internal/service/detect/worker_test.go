package detect_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/imageservice"
	"github.com/gastroview/model-service/internal/platform/inference"
	"github.com/gastroview/model-service/internal/service/detect"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
	"github.com/gastroview/model-service/internal/testutils"
)

type fakeImageService struct {
	images         map[int64]*imageservice.Image
	existingLabels []string

	createdRegions map[int64][]imageservice.RegionRequest
}

func newFakeImageService() *fakeImageService {
	return &fakeImageService{
		images:         make(map[int64]*imageservice.Image),
		createdRegions: make(map[int64][]imageservice.RegionRequest),
	}
}

func (f *fakeImageService) GetImage(ctx context.Context, id int64) (*imageservice.Image, error) {
	image, ok := f.images[id]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	return image, nil
}

func (f *fakeImageService) CreateRegions(ctx context.Context, imageID int64, regions []imageservice.RegionRequest) error {
	f.createdRegions[imageID] = append(f.createdRegions[imageID], regions...)
	return nil
}

func (f *fakeImageService) ListRegionLabels(ctx context.Context, imageID int64) ([]string, error) {
	return f.existingLabels, nil
}

type fakeFileStore struct {
	files map[string][]byte
}

func (f *fakeFileStore) GetFile(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type fakeDetectionBackend struct {
	regions []inference.RegionOutput
	err     error
	calls   int
}

func (f *fakeDetectionBackend) Name() string { return "fake_detection" }

func (f *fakeDetectionBackend) BatchDetect(ctx context.Context, images [][]byte) ([]inference.DetectionOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	outputs := make([]inference.DetectionOutput, len(images))
	for i := range outputs {
		outputs[i] = inference.DetectionOutput{Regions: f.regions}
	}
	return outputs, nil
}

type fixture struct {
	worker    *detect.Worker
	lifecycle *taskmgmt.DetectionTaskService
	tasks     *testutils.FakeDetectionTaskStore
	images    *fakeImageService
	backend   *fakeDetectionBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutils.NewFakeClock(1000)
	tasks := testutils.NewFakeDetectionTaskStore(clock)
	db := testutils.NewFakeDB()
	t.Cleanup(func() { _ = db.Close() })

	lifecycle := taskmgmt.NewDetectionTaskService(db, tasks, nil, clock, log)

	images := newFakeImageService()
	files := &fakeFileStore{files: map[string][]byte{"scope-1.jpg": []byte("jpeg-bytes")}}
	backend := &fakeDetectionBackend{}

	router := detect.NewRouter()
	router.Register(backend, []int64{10})

	return &fixture{
		worker:    detect.NewWorker(lifecycle, images, files, router, log),
		lifecycle: lifecycle,
		tasks:     tasks,
		images:    images,
		backend:   backend,
	}
}

func TestWorkerProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("records detected regions and completes the task", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.backend.regions = []inference.RegionOutput{
			{Label: "polyp-1", Score: 0.93, Border: []domain.Vertex{{X: 0.1, Y: 0.2}}},
		}

		taskID, err := f.lifecycle.Create(ctx, 42)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		assert.Equal(t, domain.TaskStatusDone, f.tasks.Get(taskID).Status)
		require.Len(t, f.images.createdRegions[42], 1)
		assert.Equal(t, "polyp-1", f.images.createdRegions[42][0].Label)
	})

	t.Run("vanished image completes without calling the backend", func(t *testing.T) {
		f := newFixture(t)

		taskID, err := f.lifecycle.Create(ctx, 404)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		assert.Equal(t, domain.TaskStatusDone, f.tasks.Get(taskID).Status)
		assert.Zero(t, f.backend.calls)
		assert.Empty(t, f.images.createdRegions)
	})

	t.Run("unrouted image type completes with empty results", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 99, OriginalFileName: "scope-1.jpg"}

		taskID, err := f.lifecycle.Create(ctx, 42)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		assert.Equal(t, domain.TaskStatusDone, f.tasks.Get(taskID).Status)
		assert.Zero(t, f.backend.calls)
	})

	t.Run("already recorded regions are not duplicated on reprocessing", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.images.existingLabels = []string{"polyp-1"}
		f.backend.regions = []inference.RegionOutput{
			{Label: "polyp-1", Score: 0.93},
			{Label: "polyp-2", Score: 0.71},
		}

		taskID, err := f.lifecycle.Create(ctx, 42)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		require.Len(t, f.images.createdRegions[42], 1)
		assert.Equal(t, "polyp-2", f.images.createdRegions[42][0].Label)
	})

	t.Run("backend failure leaves the task in PROCESSING", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.backend.err = domain.ErrUpstreamInference

		taskID, err := f.lifecycle.Create(ctx, 42)
		require.NoError(t, err)

		err = f.worker.Process(ctx, taskID)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUpstreamInference)
		assert.Equal(t, domain.TaskStatusProcessing, f.tasks.Get(taskID).Status)
	})
}

func TestWorkerProcessMany(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	f.images.images[1] = &imageservice.Image{ID: 1, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
	// Image 2 has no file in the object store: its task fails and stays
	// PROCESSING, but the batch continues.
	f.images.images[2] = &imageservice.Image{ID: 2, ImageTypeID: 10, OriginalFileName: "missing.jpg"}
	f.images.images[3] = &imageservice.Image{ID: 3, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}

	var taskIDs []int64
	for _, imageID := range []int64{1, 2, 3} {
		taskID, err := f.lifecycle.Create(ctx, imageID)
		require.NoError(t, err)
		taskIDs = append(taskIDs, taskID)
	}

	f.worker.ProcessMany(ctx, taskIDs)

	assert.Equal(t, domain.TaskStatusDone, f.tasks.Get(taskIDs[0]).Status)
	assert.Equal(t, domain.TaskStatusProcessing, f.tasks.Get(taskIDs[1]).Status)
	assert.Equal(t, domain.TaskStatusDone, f.tasks.Get(taskIDs[2]).Status)
}
