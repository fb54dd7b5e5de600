package domain

// TaskStatus represents the lifecycle state of an inference task.
//
// The numeric values are part of the persisted schema: REQUESTED and DONE
// predate PROCESSING, which is why PROCESSING sorts after DONE numerically.
type TaskStatus int16

// Possible task status values
const (
	TaskStatusRequested  TaskStatus = 0
	TaskStatusDone       TaskStatus = 1
	TaskStatusProcessing TaskStatus = 2
)

// String returns a human-readable name for the status.
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusRequested:
		return "requested"
	case TaskStatusDone:
		return "done"
	case TaskStatusProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// IsValid reports whether the status is one of the known values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusRequested, TaskStatusDone, TaskStatusProcessing:
		return true
	}
	return false
}

// IsActive reports whether a task in this status still occupies the
// "at most one active task per image" slot.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusRequested || s == TaskStatusProcessing
}

// CanTransitionTo reports whether the status machine permits moving from s
// to next. Transitions are forward-only (REQUESTED -> PROCESSING -> DONE,
// or REQUESTED -> DONE for no-op completions); the single backward edge
// PROCESSING -> REQUESTED is reserved for stale-task reclamation.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusRequested:
		return next == TaskStatusProcessing || next == TaskStatusDone
	case TaskStatusProcessing:
		return next == TaskStatusDone || next == TaskStatusRequested
	default:
		return false
	}
}

// DetectionTask is a unit of requested lesion/polyp detection work against
// one image. IDs are assigned by the store; RequestTime and UpdateTime are
// unix-millisecond timestamps, UpdateTime being refreshed by the store on
// every write so the staleness clock stays accurate.
type DetectionTask struct {
	ID          int64      `json:"id"`
	OfImageID   int64      `json:"of_image_id"`
	RequestTime int64      `json:"request_time"`
	UpdateTime  int64      `json:"update_time"`
	Status      TaskStatus `json:"status"`
}

// ClassificationTask is a unit of requested classification work against one
// image, scoped to a single classification axis.
type ClassificationTask struct {
	ID                 int64              `json:"id"`
	OfImageID          int64              `json:"of_image_id"`
	ClassificationType ClassificationType `json:"classification_type"`
	RequestTime        int64              `json:"request_time"`
	UpdateTime         int64              `json:"update_time"`
	Status             TaskStatus         `json:"status"`
}
