package testutils

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/timer"
	"github.com/gastroview/model-service/internal/store"
)

// FakeDetectionTaskStore is an in-memory store.DetectionTaskStore. It
// applies the same semantics as the Postgres implementation: Update
// refreshes update_time from the clock, filters treat empty sets as
// matching nothing, reclamation guards on status and update_time.
type FakeDetectionTaskStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*domain.DetectionTask
	clock  timer.Timer

	// UpdateErr, when set, is returned by Update to simulate failures.
	UpdateErr error
}

// NewFakeDetectionTaskStore creates an empty fake store.
func NewFakeDetectionTaskStore(clock timer.Timer) *FakeDetectionTaskStore {
	return &FakeDetectionTaskStore{
		nextID: 1,
		tasks:  make(map[int64]*domain.DetectionTask),
		clock:  clock,
	}
}

var _ store.DetectionTaskStore = (*FakeDetectionTaskStore)(nil)

// WithTx returns the store itself: the fake has no transaction isolation.
func (s *FakeDetectionTaskStore) WithTx(tx *sql.Tx) store.DetectionTaskStore { return s }

// Create inserts a task row.
func (s *FakeDetectionTaskStore) Create(
	ctx context.Context,
	ofImageID int64,
	requestTime int64,
	status domain.TaskStatus,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.tasks[id] = &domain.DetectionTask{
		ID:          id,
		OfImageID:   ofImageID,
		RequestTime: requestTime,
		UpdateTime:  requestTime,
		Status:      status,
	}
	return id, nil
}

// GetWithXLock returns a copy of the task row.
func (s *FakeDetectionTaskStore) GetWithXLock(ctx context.Context, id int64) (*domain.DetectionTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrDetectionTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// CountActiveOfImage counts REQUESTED/PROCESSING tasks for the image.
func (s *FakeDetectionTaskStore) CountActiveOfImage(ctx context.Context, ofImageID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, task := range s.tasks {
		if task.OfImageID == ofImageID && task.Status.IsActive() {
			count++
		}
	}
	return count, nil
}

// Update overwrites the row and refreshes update_time.
func (s *FakeDetectionTaskStore) Update(ctx context.Context, task *domain.DetectionTask) error {
	if s.UpdateErr != nil {
		return s.UpdateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrDetectionTaskNotFound
	}
	now := s.clock.NowMillis()
	copied := *task
	copied.UpdateTime = now
	s.tasks[task.ID] = &copied
	task.UpdateTime = now
	return nil
}

// CountByFilter counts matching rows; empty filter sets match nothing.
func (s *FakeDetectionTaskStore) CountByFilter(ctx context.Context, filter store.TaskFilter) (int, error) {
	tasks, err := s.ListByFilter(ctx, 0, int(^uint(0)>>1), filter, store.TaskSortOrderIDAscending)
	return len(tasks), err
}

// ListByFilter lists matching rows with deterministic ordering.
func (s *FakeDetectionTaskStore) ListByFilter(
	ctx context.Context,
	offset, limit int,
	filter store.TaskFilter,
	order store.TaskSortOrder,
) ([]*domain.DetectionTask, error) {
	if len(filter.ImageIDs) == 0 || len(filter.Statuses) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	var matched []*domain.DetectionTask
	for _, task := range s.tasks {
		if containsInt64(filter.ImageIDs, task.OfImageID) && containsStatus(filter.Statuses, task.Status) {
			copied := *task
			matched = append(matched, &copied)
		}
	}
	s.mu.Unlock()

	sortDetectionTasks(matched, order)

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// FindRequestedIDs returns REQUESTED task ids, ascending.
func (s *FakeDetectionTaskStore) FindRequestedIDs(ctx context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, task := range s.tasks {
		if task.Status == domain.TaskStatusRequested {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

// FindStaleProcessingIDs returns PROCESSING ids older than the threshold.
func (s *FakeDetectionTaskStore) FindStaleProcessingIDs(ctx context.Context, updateTimeThreshold int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, task := range s.tasks {
		if task.Status == domain.TaskStatusProcessing && task.UpdateTime < updateTimeThreshold {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ResetStaleProcessingToRequested resets stale PROCESSING rows.
func (s *FakeDetectionTaskStore) ResetStaleProcessingToRequested(ctx context.Context, updateTimeThreshold int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.NowMillis()
	var reset int64
	for _, task := range s.tasks {
		if task.Status == domain.TaskStatusProcessing && task.UpdateTime < updateTimeThreshold {
			task.Status = domain.TaskStatusRequested
			task.UpdateTime = now
			reset++
		}
	}
	return reset, nil
}

// Get returns the stored row, for test assertions.
func (s *FakeDetectionTaskStore) Get(id int64) *domain.DetectionTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil
	}
	copied := *task
	return &copied
}

// CountAll returns the total row count, for test assertions.
func (s *FakeDetectionTaskStore) CountAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// FakeClassificationTaskStore is an in-memory store.ClassificationTaskStore.
type FakeClassificationTaskStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*domain.ClassificationTask
	clock  timer.Timer

	UpdateErr error
}

// NewFakeClassificationTaskStore creates an empty fake store.
func NewFakeClassificationTaskStore(clock timer.Timer) *FakeClassificationTaskStore {
	return &FakeClassificationTaskStore{
		nextID: 1,
		tasks:  make(map[int64]*domain.ClassificationTask),
		clock:  clock,
	}
}

var _ store.ClassificationTaskStore = (*FakeClassificationTaskStore)(nil)

// WithTx returns the store itself.
func (s *FakeClassificationTaskStore) WithTx(tx *sql.Tx) store.ClassificationTaskStore { return s }

// Create inserts a task row.
func (s *FakeClassificationTaskStore) Create(
	ctx context.Context,
	ofImageID int64,
	classificationType domain.ClassificationType,
	requestTime int64,
	status domain.TaskStatus,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.tasks[id] = &domain.ClassificationTask{
		ID:                 id,
		OfImageID:          ofImageID,
		ClassificationType: classificationType,
		RequestTime:        requestTime,
		UpdateTime:         requestTime,
		Status:             status,
	}
	return id, nil
}

// GetWithXLock returns a copy of the task row.
func (s *FakeClassificationTaskStore) GetWithXLock(ctx context.Context, id int64) (*domain.ClassificationTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrClassificationTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// CountActiveOfImage counts active tasks for the image on one axis.
func (s *FakeClassificationTaskStore) CountActiveOfImage(
	ctx context.Context,
	ofImageID int64,
	classificationType domain.ClassificationType,
) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, task := range s.tasks {
		if task.OfImageID == ofImageID &&
			task.ClassificationType == classificationType &&
			task.Status.IsActive() {
			count++
		}
	}
	return count, nil
}

// Update overwrites the row and refreshes update_time.
func (s *FakeClassificationTaskStore) Update(ctx context.Context, task *domain.ClassificationTask) error {
	if s.UpdateErr != nil {
		return s.UpdateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrClassificationTaskNotFound
	}
	now := s.clock.NowMillis()
	copied := *task
	copied.UpdateTime = now
	s.tasks[task.ID] = &copied
	task.UpdateTime = now
	return nil
}

// CountByFilter counts matching rows.
func (s *FakeClassificationTaskStore) CountByFilter(ctx context.Context, filter store.TaskFilter) (int, error) {
	tasks, err := s.ListByFilter(ctx, 0, int(^uint(0)>>1), filter, store.TaskSortOrderIDAscending)
	return len(tasks), err
}

// ListByFilter lists matching rows.
func (s *FakeClassificationTaskStore) ListByFilter(
	ctx context.Context,
	offset, limit int,
	filter store.TaskFilter,
	order store.TaskSortOrder,
) ([]*domain.ClassificationTask, error) {
	if len(filter.ImageIDs) == 0 || len(filter.ClassificationTypes) == 0 || len(filter.Statuses) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	var matched []*domain.ClassificationTask
	for _, task := range s.tasks {
		if containsInt64(filter.ImageIDs, task.OfImageID) &&
			containsType(filter.ClassificationTypes, task.ClassificationType) &&
			containsStatus(filter.Statuses, task.Status) {
			copied := *task
			matched = append(matched, &copied)
		}
	}
	s.mu.Unlock()

	sortClassificationTasks(matched, order)

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// FindRequestedIDs returns REQUESTED task ids, ascending.
func (s *FakeClassificationTaskStore) FindRequestedIDs(ctx context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, task := range s.tasks {
		if task.Status == domain.TaskStatusRequested {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

// FindStaleProcessingIDs returns PROCESSING ids older than the threshold.
func (s *FakeClassificationTaskStore) FindStaleProcessingIDs(ctx context.Context, updateTimeThreshold int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for id, task := range s.tasks {
		if task.Status == domain.TaskStatusProcessing && task.UpdateTime < updateTimeThreshold {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ResetStaleProcessingToRequested resets stale PROCESSING rows.
func (s *FakeClassificationTaskStore) ResetStaleProcessingToRequested(ctx context.Context, updateTimeThreshold int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.NowMillis()
	var reset int64
	for _, task := range s.tasks {
		if task.Status == domain.TaskStatusProcessing && task.UpdateTime < updateTimeThreshold {
			task.Status = domain.TaskStatusRequested
			task.UpdateTime = now
			reset++
		}
	}
	return reset, nil
}

// Get returns the stored row, for test assertions.
func (s *FakeClassificationTaskStore) Get(id int64) *domain.ClassificationTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil
	}
	copied := *task
	return &copied
}

// CountAll returns the total row count, for test assertions.
func (s *FakeClassificationTaskStore) CountAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// FakeClassificationResultStore is an in-memory store.ClassificationResultStore.
type FakeClassificationResultStore struct {
	mu      sync.Mutex
	nextID  int64
	Results []*domain.ClassificationResult

	CreateErr error
}

// NewFakeClassificationResultStore creates an empty fake store.
func NewFakeClassificationResultStore() *FakeClassificationResultStore {
	return &FakeClassificationResultStore{nextID: 1}
}

var _ store.ClassificationResultStore = (*FakeClassificationResultStore)(nil)

// WithTx returns the store itself.
func (s *FakeClassificationResultStore) WithTx(tx *sql.Tx) store.ClassificationResultStore { return s }

// Create appends a result row.
func (s *FakeClassificationResultStore) Create(
	ctx context.Context,
	ofImageID int64,
	site domain.AnatomicalSite,
	lesion domain.LesionType,
	hp *domain.HPStatus,
	requestTime int64,
) (int64, error) {
	if s.CreateErr != nil {
		return 0, s.CreateErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.Results = append(s.Results, &domain.ClassificationResult{
		ID:             id,
		OfImageID:      ofImageID,
		AnatomicalSite: site,
		LesionType:     lesion,
		HPStatus:       hp,
		RequestTime:    requestTime,
	})
	return id, nil
}

// ListOfImage returns results for the image, newest first.
func (s *FakeClassificationResultStore) ListOfImage(ctx context.Context, ofImageID int64) ([]*domain.ClassificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []*domain.ClassificationResult
	for i := len(s.Results) - 1; i >= 0; i-- {
		if s.Results[i].OfImageID == ofImageID {
			copied := *s.Results[i]
			results = append(results, &copied)
		}
	}
	return results, nil
}

// FakeClassificationTypeStore serves the static three-axis lookup table.
type FakeClassificationTypeStore struct{}

var _ store.ClassificationTypeStore = (*FakeClassificationTypeStore)(nil)

// GetByID returns the lookup row for a known axis.
func (s *FakeClassificationTypeStore) GetByID(ctx context.Context, id domain.ClassificationType) (*domain.ClassificationTypeInfo, error) {
	if !id.IsValid() {
		return nil, store.ErrClassificationTypeNotFound
	}
	return &domain.ClassificationTypeInfo{ID: id, DisplayName: id.String()}, nil
}

// List returns all three axes.
func (s *FakeClassificationTypeStore) List(ctx context.Context) ([]*domain.ClassificationTypeInfo, error) {
	return []*domain.ClassificationTypeInfo{
		{ID: domain.ClassificationTypeAnatomicalSite, DisplayName: "anatomical_site"},
		{ID: domain.ClassificationTypeLesion, DisplayName: "lesion"},
		{ID: domain.ClassificationTypeHP, DisplayName: "hp"},
	}, nil
}

func containsInt64(values []int64, value int64) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func containsStatus(values []domain.TaskStatus, value domain.TaskStatus) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func containsType(values []domain.ClassificationType, value domain.ClassificationType) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func sortDetectionTasks(tasks []*domain.DetectionTask, order store.TaskSortOrder) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch order {
		case store.TaskSortOrderIDDescending:
			return a.ID > b.ID
		case store.TaskSortOrderRequestTimeAscending:
			if a.RequestTime != b.RequestTime {
				return a.RequestTime < b.RequestTime
			}
			return a.ID < b.ID
		case store.TaskSortOrderRequestTimeDescending:
			if a.RequestTime != b.RequestTime {
				return a.RequestTime > b.RequestTime
			}
			return a.ID > b.ID
		case store.TaskSortOrderUpdateTimeAscending:
			if a.UpdateTime != b.UpdateTime {
				return a.UpdateTime < b.UpdateTime
			}
			return a.ID < b.ID
		case store.TaskSortOrderUpdateTimeDescending:
			if a.UpdateTime != b.UpdateTime {
				return a.UpdateTime > b.UpdateTime
			}
			return a.ID > b.ID
		default:
			return a.ID < b.ID
		}
	})
}

func sortClassificationTasks(tasks []*domain.ClassificationTask, order store.TaskSortOrder) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch order {
		case store.TaskSortOrderIDDescending:
			return a.ID > b.ID
		case store.TaskSortOrderRequestTimeAscending:
			if a.RequestTime != b.RequestTime {
				return a.RequestTime < b.RequestTime
			}
			return a.ID < b.ID
		case store.TaskSortOrderRequestTimeDescending:
			if a.RequestTime != b.RequestTime {
				return a.RequestTime > b.RequestTime
			}
			return a.ID > b.ID
		case store.TaskSortOrderUpdateTimeAscending:
			if a.UpdateTime != b.UpdateTime {
				return a.UpdateTime < b.UpdateTime
			}
			return a.ID < b.ID
		case store.TaskSortOrderUpdateTimeDescending:
			if a.UpdateTime != b.UpdateTime {
				return a.UpdateTime > b.UpdateTime
			}
			return a.ID > b.ID
		default:
			return a.ID < b.ID
		}
	})
}
