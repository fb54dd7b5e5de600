package taskmgmt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
	"github.com/gastroview/model-service/internal/testutils"
)

func newClassificationFixture(t *testing.T, startMillis int64) (
	*taskmgmt.ClassificationTaskService,
	*testutils.FakeClassificationTaskStore,
	*testutils.FakeClassificationResultStore,
	*testutils.FakeClock,
	*capturingPublisher,
) {
	t.Helper()

	clock := testutils.NewFakeClock(startMillis)
	tasks := testutils.NewFakeClassificationTaskStore(clock)
	results := testutils.NewFakeClassificationResultStore()
	publisher := &capturingPublisher{}
	db := testutils.NewFakeDB()
	t.Cleanup(func() { _ = db.Close() })

	svc := taskmgmt.NewClassificationTaskService(
		db, tasks, results, &testutils.FakeClassificationTypeStore{}, publisher, clock, testLogger())
	return svc, tasks, results, clock, publisher
}

func TestClassificationCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects an unknown classification type", func(t *testing.T) {
		svc, tasks, _, _, _ := newClassificationFixture(t, 1000)

		_, err := svc.Create(ctx, 42, domain.ClassificationType(9))
		assert.ErrorIs(t, err, domain.ErrInvalidClassificationType)
		assert.Zero(t, tasks.CountAll())
	})

	t.Run("suppresses duplicates per axis, not across axes", func(t *testing.T) {
		svc, tasks, _, _, _ := newClassificationFixture(t, 1000)

		_, err := svc.Create(ctx, 42, domain.ClassificationTypeAnatomicalSite)
		require.NoError(t, err)

		_, err = svc.Create(ctx, 42, domain.ClassificationTypeAnatomicalSite)
		assert.ErrorIs(t, err, domain.ErrTaskAlreadyActive)

		_, err = svc.Create(ctx, 42, domain.ClassificationTypeLesion)
		require.NoError(t, err)

		assert.Equal(t, 2, tasks.CountAll())
	})
}

func TestClassificationClaimAndProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the result together with the DONE transition", func(t *testing.T) {
		svc, tasks, results, _, _ := newClassificationFixture(t, 1000)

		taskID, err := svc.Create(ctx, 42, domain.ClassificationTypeAnatomicalSite)
		require.NoError(t, err)

		hp := domain.HPStatusPositive
		err = svc.ClaimAndProcess(ctx, taskID, func(ctx context.Context, task *domain.ClassificationTask) (*domain.ClassificationResult, error) {
			return &domain.ClassificationResult{
				OfImageID:      task.OfImageID,
				AnatomicalSite: domain.AnatomicalSiteGastricBody,
				LesionType:     domain.LesionTypeGastritis,
				HPStatus:       &hp,
			}, nil
		})
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusDone, tasks.Get(taskID).Status)
		require.Len(t, results.Results, 1)

		result := results.Results[0]
		assert.Equal(t, int64(42), result.OfImageID)
		assert.Equal(t, domain.AnatomicalSiteGastricBody, result.AnatomicalSite)
		assert.Equal(t, domain.LesionTypeGastritis, result.LesionType)
		require.NotNil(t, result.HPStatus)
		assert.Equal(t, domain.HPStatusPositive, *result.HPStatus)
		assert.Equal(t, int64(1000), result.RequestTime)
	})

	t.Run("nil result completes the task without a result row", func(t *testing.T) {
		svc, tasks, results, _, _ := newClassificationFixture(t, 1000)

		taskID, err := svc.Create(ctx, 42, domain.ClassificationTypeLesion)
		require.NoError(t, err)

		err = svc.ClaimAndProcess(ctx, taskID, func(context.Context, *domain.ClassificationTask) (*domain.ClassificationResult, error) {
			return nil, nil
		})
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusDone, tasks.Get(taskID).Status)
		assert.Empty(t, results.Results)
	})

	t.Run("result write failure rolls back to a reclaimable state", func(t *testing.T) {
		svc, tasks, results, _, _ := newClassificationFixture(t, 1000)

		taskID, err := svc.Create(ctx, 42, domain.ClassificationTypeHP)
		require.NoError(t, err)

		results.CreateErr = errors.New("insert failed")
		err = svc.ClaimAndProcess(ctx, taskID, func(ctx context.Context, task *domain.ClassificationTask) (*domain.ClassificationResult, error) {
			return &domain.ClassificationResult{OfImageID: task.OfImageID}, nil
		})
		require.Error(t, err)

		// The task stays PROCESSING; the sweep will hand it back out.
		assert.Equal(t, domain.TaskStatusProcessing, tasks.Get(taskID).Status)
	})

	t.Run("inference failure leaves the task in PROCESSING", func(t *testing.T) {
		svc, tasks, results, _, _ := newClassificationFixture(t, 1000)

		taskID, err := svc.Create(ctx, 42, domain.ClassificationTypeAnatomicalSite)
		require.NoError(t, err)

		err = svc.ClaimAndProcess(ctx, taskID, func(context.Context, *domain.ClassificationTask) (*domain.ClassificationResult, error) {
			return nil, domain.ErrUpstreamInference
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUpstreamInference)
		assert.Equal(t, domain.TaskStatusProcessing, tasks.Get(taskID).Status)
		assert.Empty(t, results.Results)
	})
}

func TestClassificationReclaimStale(t *testing.T) {
	ctx := context.Background()

	svc, tasks, _, clock, _ := newClassificationFixture(t, 1000)

	taskID, err := svc.Create(ctx, 9, domain.ClassificationTypeAnatomicalSite)
	require.NoError(t, err)
	err = svc.ClaimAndProcess(ctx, taskID, func(context.Context, *domain.ClassificationTask) (*domain.ClassificationResult, error) {
		return nil, errors.New("worker died")
	})
	require.Error(t, err)

	clock.Advance((20 * time.Minute).Milliseconds())

	reset, err := svc.ReclaimStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)
	assert.Equal(t, domain.TaskStatusRequested, tasks.Get(taskID).Status)
}

func TestClassificationTypeLookup(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := newClassificationFixture(t, 1000)

	info, err := svc.GetType(ctx, domain.ClassificationTypeLesion)
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationTypeLesion, info.ID)

	infos, err := svc.ListTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 3)
}
