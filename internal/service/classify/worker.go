// Package classify dispatches classification tasks: it claims a task,
// routes the image to a classification backend, persists the result
// alongside the DONE transition, and maintains the AI anatomical-site tag
// on the image.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gastroview/model-service/internal/convert"
	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/imageservice"
	"github.com/gastroview/model-service/internal/platform/inference"
	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
)

// ImageService is the slice of the image service client the worker needs.
type ImageService interface {
	GetImage(ctx context.Context, id int64) (*imageservice.Image, error)
	GetImageTagGroups(ctx context.Context) ([]imageservice.ImageTagGroup, error)
	AddImageTag(ctx context.Context, imageID, imageTagID int64) error
	RemoveImageTag(ctx context.Context, imageID, imageTagID int64) error
}

// FileStore reads original image files.
type FileStore interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// Backend is one classification backend.
type Backend interface {
	Name() string
	Classify(ctx context.Context, image []byte) (*inference.ClassificationOutput, error)
}

// Router picks the classification backend for an image type.
type Router struct {
	byImageType map[int64]Backend
}

// NewRouter builds an empty Router.
func NewRouter() *Router {
	return &Router{byImageType: make(map[int64]Backend)}
}

// Register routes the given image type ids to a backend.
func (r *Router) Register(backend Backend, imageTypeIDs []int64) {
	for _, id := range imageTypeIDs {
		r.byImageType[id] = backend
	}
}

// BackendFor returns the backend for an image type, or nil.
func (r *Router) BackendFor(imageTypeID int64) Backend {
	return r.byImageType[imageTypeID]
}

// Worker processes classification tasks end to end.
type Worker struct {
	lifecycle *taskmgmt.ClassificationTaskService
	images    ImageService
	files     FileStore
	router    *Router
	logger    *slog.Logger
}

// NewWorker creates a classification Worker.
func NewWorker(
	lifecycle *taskmgmt.ClassificationTaskService,
	images ImageService,
	files FileStore,
	router *Router,
	log *slog.Logger,
) *Worker {
	return &Worker{
		lifecycle: lifecycle,
		images:    images,
		files:     files,
		router:    router,
		logger:    log.With("component", "classify_worker"),
	}
}

// Process claims and runs one classification task.
func (w *Worker) Process(ctx context.Context, taskID int64) error {
	return w.lifecycle.ClaimAndProcess(ctx, taskID, w.classify)
}

// ProcessMany runs a batch of task ids sequentially. Per-task failures are
// logged and do not stop the batch.
func (w *Worker) ProcessMany(ctx context.Context, taskIDs []int64) {
	log := logger.FromContext(ctx)
	for _, taskID := range taskIDs {
		if err := w.Process(ctx, taskID); err != nil {
			log.Error("classification task failed",
				"classification_task_id", taskID,
				"error", err)
		}
	}
}

// classify runs between the claim and completion transactions. Returning
// a nil result completes the task without recording anything.
func (w *Worker) classify(ctx context.Context, task *domain.ClassificationTask) (*domain.ClassificationResult, error) {
	log := logger.FromContext(ctx)

	image, err := w.images.GetImage(ctx, task.OfImageID)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			log.Info("image no longer exists, completing classification task without results",
				"of_image_id", task.OfImageID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch image %d: %w", task.OfImageID, err)
	}

	backend := w.router.BackendFor(image.ImageTypeID)
	if backend == nil {
		log.Info("no classification backend for image type, completing with empty results",
			"of_image_id", image.ID,
			"image_type_id", image.ImageTypeID)
		return nil, nil
	}

	data, err := w.files.GetFile(ctx, image.OriginalFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file %q: %w", image.OriginalFileName, err)
	}

	output, err := backend.Classify(ctx, data)
	if err != nil {
		return nil, err
	}

	result := &domain.ClassificationResult{
		OfImageID:      image.ID,
		AnatomicalSite: convert.AnatomicalSiteFromWire(output.AnatomicalSite),
		LesionType:     convert.LesionTypeFromWire(output.LesionType),
		HPStatus:       convert.HPStatusFromWire(output.HPStatus),
	}

	log.Info("classification backend returned result",
		"backend", backend.Name(),
		"of_image_id", image.ID,
		"anatomical_site", result.AnatomicalSite.String(),
		"lesion_type", result.LesionType.String())

	if task.ClassificationType == domain.ClassificationTypeAnatomicalSite {
		if err := w.applySiteTag(ctx, image.ID, result.AnatomicalSite); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// applySiteTag replaces the image's AI anatomical-site tag with the one
// for the classified site. Every group tag is removed first, the target
// included: the add then always attaches to a clean image, so
// reprocessing a reclaimed task never depends on the image service
// tolerating a duplicate attach.
func (w *Worker) applySiteTag(ctx context.Context, imageID int64, site domain.AnatomicalSite) error {
	log := logger.FromContext(ctx)

	groups, err := w.images.GetImageTagGroups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list image tag groups: %w", err)
	}

	var group *imageservice.ImageTagGroup
	for i := range groups {
		if groups[i].DisplayName == convert.AnatomicalSiteTagGroupName {
			group = &groups[i]
			break
		}
	}
	if group == nil {
		log.Warn("anatomical site tag group not found, skipping tag update",
			"group_name", convert.AnatomicalSiteTagGroupName)
		return nil
	}

	tagName, tagged := convert.AnatomicalSiteTagName(site)

	for _, tag := range group.Tags {
		if err := w.images.RemoveImageTag(ctx, imageID, tag.ID); err != nil {
			return fmt.Errorf("failed to remove tag %d from image %d: %w", tag.ID, imageID, err)
		}
	}

	if !tagged {
		return nil
	}

	for _, tag := range group.Tags {
		if tag.DisplayName == tagName {
			if err := w.images.AddImageTag(ctx, imageID, tag.ID); err != nil {
				return fmt.Errorf("failed to add tag %d to image %d: %w", tag.ID, imageID, err)
			}
			return nil
		}
	}

	log.Warn("no image tag registered for anatomical site",
		"anatomical_site", site.String(),
		"tag_name", tagName)
	return nil
}
