package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gastroview/model-service/internal/api/shared"
	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
)

// ClassificationTaskHandler serves the classification task, result and
// type-lookup endpoints.
type ClassificationTaskHandler struct {
	lifecycle *taskmgmt.ClassificationTaskService
	validate  *validator.Validate
}

// NewClassificationTaskHandler creates a ClassificationTaskHandler.
func NewClassificationTaskHandler(lifecycle *taskmgmt.ClassificationTaskService) *ClassificationTaskHandler {
	return &ClassificationTaskHandler{
		lifecycle: lifecycle,
		validate:  validator.New(),
	}
}

// Create handles POST /api/classification-tasks.
func (h *ClassificationTaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateClassificationTaskRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request", err)
		return
	}

	taskID, err := h.lifecycle.Create(r.Context(), req.OfImageID,
		domain.ClassificationType(*req.ClassificationType))
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, CreateTaskResponse{TaskID: taskID})
}

// CreateBatch handles POST /api/classification-tasks/batch.
func (h *ClassificationTaskHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchCreateClassificationTasksRequest
	if err := decodeAndValidate(r, h.validate, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request", err)
		return
	}

	taskIDs, err := h.lifecycle.CreateBatch(r.Context(), req.OfImageIDs,
		domain.ClassificationType(*req.ClassificationType))
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, BatchCreateTasksResponse{TaskIDs: taskIDs})
}

// List handles GET /api/classification-tasks.
func (h *ClassificationTaskHandler) List(w http.ResponseWriter, r *http.Request) {
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
		tasks = []*domain.ClassificationTask{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ListClassificationTasksResponse{
		Total: total,
		Tasks: tasks,
	})
}

// ListResultsOfImage handles GET /api/images/{imageID}/classification-results.
func (h *ClassificationTaskHandler) ListResultsOfImage(w http.ResponseWriter, r *http.Request) {
	imageID, err := strconv.ParseInt(chi.URLParam(r, "imageID"), 10, 64)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid image id", err)
		return
	}

	results, err := h.lifecycle.ListResultsOfImage(r.Context(), imageID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if results == nil {
		results = []*domain.ClassificationResult{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ListClassificationResultsResponse{Results: results})
}

// GetType handles GET /api/classification-types/{typeID}.
func (h *ClassificationTaskHandler) GetType(w http.ResponseWriter, r *http.Request) {
	typeID, err := strconv.ParseInt(chi.URLParam(r, "typeID"), 10, 16)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid classification type id", err)
		return
	}

	info, err := h.lifecycle.GetType(r.Context(), domain.ClassificationType(typeID))
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ClassificationTypeResponse{
		ClassificationTypeID: int16(info.ID),
		DisplayName:          info.DisplayName,
	})
}

// ListTypes handles GET /api/classification-types.
func (h *ClassificationTaskHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	infos, err := h.lifecycle.ListTypes(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	response := ListClassificationTypesResponse{
		ClassificationTypes: make([]ClassificationTypeResponse, 0, len(infos)),
	}
	for _, info := range infos {
		response.ClassificationTypes = append(response.ClassificationTypes, ClassificationTypeResponse{
			ClassificationTypeID: int16(info.ID),
			DisplayName:          info.DisplayName,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}
