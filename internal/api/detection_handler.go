package api

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/gastroview/model-service/internal/api/shared"
	"github.com/gastroview/model-service/internal/convert"
	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
	"github.com/gastroview/model-service/internal/store"
)

// DetectionTaskHandler serves the detection task endpoints.
type DetectionTaskHandler struct {
	lifecycle *taskmgmt.DetectionTaskService
	validate  *validator.Validate
}

// NewDetectionTaskHandler creates a DetectionTaskHandler.
func NewDetectionTaskHandler(lifecycle *taskmgmt.DetectionTaskService) *DetectionTaskHandler {
	return &DetectionTaskHandler{
		lifecycle: lifecycle,
		validate:  validator.New(),
	}
}

// Create handles POST /api/detection-tasks.
func (h *DetectionTaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDetectionTaskRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request", err)
		return
	}

	taskID, err := h.lifecycle.Create(r.Context(), req.OfImageID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, CreateTaskResponse{TaskID: taskID})
}

// CreateBatch handles POST /api/detection-tasks/batch.
func (h *DetectionTaskHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchCreateDetectionTasksRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request", err)
		return
	}

	taskIDs, err := h.lifecycle.CreateBatch(r.Context(), req.OfImageIDs)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, BatchCreateTasksResponse{TaskIDs: taskIDs})
}

// List handles GET /api/detection-tasks. image_ids is required; statuses
// defaults to all, sort_order to id ascending.
func (h *DetectionTaskHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, order, err := parseTaskQuery(r.URL.Query())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid query", err)
		return
	}
	offset, limit, err := parsePagination(r.URL.Query())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid query", err)
		return
	}

	total, err := h.lifecycle.Count(r.Context(), filter)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	tasks, err := h.lifecycle.List(r.Context(), offset, limit, filter, order)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if tasks == nil {
		tasks = []*domain.DetectionTask{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ListDetectionTasksResponse{
		Total: total,
		Tasks: tasks,
	})
}

// parseTaskQuery builds the store filter from list query parameters.
// Omitted statuses / classification_types expand to the full sets, since
// the store treats an empty set as matching nothing.
func parseTaskQuery(query url.Values) (store.TaskFilter, store.TaskSortOrder, error) {
	var filter store.TaskFilter

	imageIDs, err := parseInt64List(query, "image_ids")
	if err != nil {
		return filter, 0, err
	}
	if len(imageIDs) == 0 {
		return filter, 0, fmt.Errorf("image_ids is required")
	}
	filter.ImageIDs = imageIDs

	statusValues, err := parseInt64List(query, "statuses")
	if err != nil {
		return filter, 0, err
	}
	if len(statusValues) == 0 {
		filter.Statuses = convert.AllStatuses()
	} else {
		for _, value := range statusValues {
			status := domain.TaskStatus(value)
			if !status.IsValid() {
				return filter, 0, fmt.Errorf("unknown status %d", value)
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	typeValues, err := parseInt64List(query, "classification_types")
	if err != nil {
		return filter, 0, err
	}
	if len(typeValues) == 0 {
		filter.ClassificationTypes = convert.AllClassificationTypes()
	} else {
		for _, value := range typeValues {
			classificationType := domain.ClassificationType(value)
			if !classificationType.IsValid() {
				return filter, 0, fmt.Errorf("unknown classification type %d", value)
			}
			filter.ClassificationTypes = append(filter.ClassificationTypes, classificationType)
		}
	}

	order, err := convert.TaskSortOrderFromName(query.Get("sort_order"))
	if err != nil {
		return filter, 0, err
	}

	return filter, order, nil
}
