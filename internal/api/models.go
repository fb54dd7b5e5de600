package api

import "github.com/gastroview/model-service/internal/domain"

// CreateDetectionTaskRequest asks for one detection task.
type CreateDetectionTaskRequest struct {
	OfImageID int64 `json:"of_image_id" validate:"required,gt=0"`
}

// BatchCreateDetectionTasksRequest asks for detection tasks on a set of
// images. Images that already carry an active task are skipped.
type BatchCreateDetectionTasksRequest struct {
	OfImageIDs []int64 `json:"of_image_ids" validate:"required,min=1,dive,gt=0"`
}

// CreateClassificationTaskRequest asks for one classification task.
// ClassificationType is a pointer so the zero axis (anatomical site) is
// distinguishable from a missing field.
type CreateClassificationTaskRequest struct {
	OfImageID          int64  `json:"of_image_id"         validate:"required,gt=0"`
	ClassificationType *int16 `json:"classification_type" validate:"required,gte=0,lte=2"`
}

// BatchCreateClassificationTasksRequest asks for classification tasks on a
// set of images, all on one axis.
type BatchCreateClassificationTasksRequest struct {
	OfImageIDs         []int64 `json:"of_image_ids"        validate:"required,min=1,dive,gt=0"`
	ClassificationType *int16  `json:"classification_type" validate:"required,gte=0,lte=2"`
}

// CreateTaskResponse returns the id of a created task.
type CreateTaskResponse struct {
	TaskID int64 `json:"task_id"`
}

// BatchCreateTasksResponse returns the ids the batch created. Skipped
// images produce no id.
type BatchCreateTasksResponse struct {
	TaskIDs []int64 `json:"task_ids"`
}

// ListDetectionTasksResponse carries one page of tasks plus the total
// match count for pagination.
type ListDetectionTasksResponse struct {
	Total int                     `json:"total"`
	Tasks []*domain.DetectionTask `json:"tasks"`
}

// ListClassificationTasksResponse carries one page of classification tasks.
type ListClassificationTasksResponse struct {
	Total int                          `json:"total"`
	Tasks []*domain.ClassificationTask `json:"tasks"`
}

// ListClassificationResultsResponse carries all results of one image.
type ListClassificationResultsResponse struct {
	Results []*domain.ClassificationResult `json:"results"`
}

// ClassificationTypeResponse is one row of the classification-type lookup.
type ClassificationTypeResponse struct {
	ClassificationTypeID int16  `json:"classification_type_id"`
	DisplayName          string `json:"display_name"`
}

// ListClassificationTypesResponse carries the whole lookup table.
type ListClassificationTypesResponse struct {
	ClassificationTypes []ClassificationTypeResponse `json:"classification_types"`
}
