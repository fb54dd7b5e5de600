package classify_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/imageservice"
	"github.com/gastroview/model-service/internal/platform/inference"
	"github.com/gastroview/model-service/internal/service/classify"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
	"github.com/gastroview/model-service/internal/testutils"
)

type fakeImageService struct {
	images    map[int64]*imageservice.Image
	tagGroups []imageservice.ImageTagGroup

	addedTags   []int64
	removedTags []int64
}

func (f *fakeImageService) GetImage(ctx context.Context, id int64) (*imageservice.Image, error) {
	image, ok := f.images[id]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	return image, nil
}

func (f *fakeImageService) GetImageTagGroups(ctx context.Context) ([]imageservice.ImageTagGroup, error) {
	return f.tagGroups, nil
}

func (f *fakeImageService) AddImageTag(ctx context.Context, imageID, imageTagID int64) error {
	f.addedTags = append(f.addedTags, imageTagID)
	return nil
}

func (f *fakeImageService) RemoveImageTag(ctx context.Context, imageID, imageTagID int64) error {
	f.removedTags = append(f.removedTags, imageTagID)
	return nil
}

type fakeFileStore struct{}

func (fakeFileStore) GetFile(ctx context.Context, key string) ([]byte, error) {
	return []byte("jpeg-bytes"), nil
}

type fakeClassificationBackend struct {
	output inference.ClassificationOutput
	err    error
	calls  int
}

func (f *fakeClassificationBackend) Name() string { return "fake_classification" }

func (f *fakeClassificationBackend) Classify(ctx context.Context, image []byte) (*inference.ClassificationOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	output := f.output
	return &output, nil
}

func siteTagGroups() []imageservice.ImageTagGroup {
	return []imageservice.ImageTagGroup{
		{
			ID:          1,
			DisplayName: "AI-Anatomical site",
			Tags: []imageservice.ImageTag{
				{ID: 101, DisplayName: "(AI)Gastric body"},
				{ID: 102, DisplayName: "(AI)Esophagus"},
			},
		},
		{
			ID:          2,
			DisplayName: "Department",
			Tags:        []imageservice.ImageTag{{ID: 201, DisplayName: "Endoscopy"}},
		},
	}
}

type fixture struct {
	worker    *classify.Worker
	lifecycle *taskmgmt.ClassificationTaskService
	tasks     *testutils.FakeClassificationTaskStore
	results   *testutils.FakeClassificationResultStore
	images    *fakeImageService
	backend   *fakeClassificationBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutils.NewFakeClock(1000)
	tasks := testutils.NewFakeClassificationTaskStore(clock)
	results := testutils.NewFakeClassificationResultStore()
	db := testutils.NewFakeDB()
	t.Cleanup(func() { _ = db.Close() })

	lifecycle := taskmgmt.NewClassificationTaskService(
		db, tasks, results, &testutils.FakeClassificationTypeStore{}, nil, clock, log)

	images := &fakeImageService{
		images:    make(map[int64]*imageservice.Image),
		tagGroups: siteTagGroups(),
	}
	backend := &fakeClassificationBackend{}

	router := classify.NewRouter()
	router.Register(backend, []int64{10})

	return &fixture{
		worker:    classify.NewWorker(lifecycle, images, fakeFileStore{}, router, log),
		lifecycle: lifecycle,
		tasks:     tasks,
		results:   results,
		images:    images,
		backend:   backend,
	}
}

func TestClassifyProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the converted result and completes the task", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.backend.output = inference.ClassificationOutput{
			AnatomicalSite: "GASTRIC_BODY",
			LesionType:     "GASTRITIS",
			HPStatus:       "POSITIVE",
		}

		taskID, err := f.lifecycle.Create(ctx, 42, domain.ClassificationTypeLesion)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		assert.Equal(t, domain.TaskStatusDone, f.tasks.Get(taskID).Status)
		require.Len(t, f.results.Results, 1)

		result := f.results.Results[0]
		assert.Equal(t, domain.AnatomicalSiteGastricBody, result.AnatomicalSite)
		assert.Equal(t, domain.LesionTypeGastritis, result.LesionType)
		require.NotNil(t, result.HPStatus)
		assert.Equal(t, domain.HPStatusPositive, *result.HPStatus)

		// Tag maintenance only happens for anatomical-site tasks.
		assert.Empty(t, f.images.addedTags)
		assert.Empty(t, f.images.removedTags)
	})

	t.Run("anatomical site task replaces the AI site tag", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.backend.output = inference.ClassificationOutput{
			AnatomicalSite: "GASTRIC_BODY",
			LesionType:     "NON_LESION",
		}

		taskID, err := f.lifecycle.Create(ctx, 42, domain.ClassificationTypeAnatomicalSite)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		// Every site tag in the group is detached, then the classified
		// one attached, so the add never hits an already-tagged image.
		assert.Equal(t, []int64{101, 102}, f.images.removedTags)
		assert.Equal(t, []int64{101}, f.images.addedTags)
	})

	t.Run("reclassification detaches the site tag before re-adding it", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.backend.output = inference.ClassificationOutput{
			AnatomicalSite: "GASTRIC_BODY",
			LesionType:     "NON_LESION",
		}

		firstID, err := f.lifecycle.Create(ctx, 42, domain.ClassificationTypeAnatomicalSite)
		require.NoError(t, err)
		require.NoError(t, f.worker.Process(ctx, firstID))

		secondID, err := f.lifecycle.Create(ctx, 42, domain.ClassificationTypeAnatomicalSite)
		require.NoError(t, err)
		require.NoError(t, f.worker.Process(ctx, secondID))

		// The second pass removes the tag its first pass attached before
		// attaching it again.
		assert.Equal(t, []int64{101, 102, 101, 102}, f.images.removedTags)
		assert.Equal(t, []int64{101, 101}, f.images.addedTags)
	})

	t.Run("unqualified site clears the AI site tags without adding one", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.backend.output = inference.ClassificationOutput{
			AnatomicalSite: "UNQUALIFIER",
			LesionType:     "NON_LESION",
		}

		taskID, err := f.lifecycle.Create(ctx, 42, domain.ClassificationTypeAnatomicalSite)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		assert.ElementsMatch(t, []int64{101, 102}, f.images.removedTags)
		assert.Empty(t, f.images.addedTags)
	})

	t.Run("unknown wire labels degrade instead of failing the task", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.backend.output = inference.ClassificationOutput{
			AnatomicalSite: "SOMETHING_NEW",
			LesionType:     "SOMETHING_ELSE",
			HPStatus:       "MAYBE",
		}

		taskID, err := f.lifecycle.Create(ctx, 42, domain.ClassificationTypeLesion)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		require.Len(t, f.results.Results, 1)
		result := f.results.Results[0]
		assert.Equal(t, domain.AnatomicalSiteUnqualified, result.AnatomicalSite)
		assert.Equal(t, domain.LesionTypeNonLesion, result.LesionType)
		assert.Nil(t, result.HPStatus)
	})

	t.Run("vanished image completes without calling the backend", func(t *testing.T) {
		f := newFixture(t)

		taskID, err := f.lifecycle.Create(ctx, 404, domain.ClassificationTypeAnatomicalSite)
		require.NoError(t, err)

		require.NoError(t, f.worker.Process(ctx, taskID))

		assert.Equal(t, domain.TaskStatusDone, f.tasks.Get(taskID).Status)
		assert.Zero(t, f.backend.calls)
		assert.Empty(t, f.results.Results)
	})

	t.Run("backend failure leaves the task in PROCESSING", func(t *testing.T) {
		f := newFixture(t)
		f.images.images[42] = &imageservice.Image{ID: 42, ImageTypeID: 10, OriginalFileName: "scope-1.jpg"}
		f.backend.err = domain.ErrUpstreamInference

		taskID, err := f.lifecycle.Create(ctx, 42, domain.ClassificationTypeHP)
		require.NoError(t, err)

		err = f.worker.Process(ctx, taskID)
		require.Error(t, err)
		assert.Equal(t, domain.TaskStatusProcessing, f.tasks.Get(taskID).Status)
	})
}
