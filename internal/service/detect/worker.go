// Package detect dispatches detection tasks: it claims a task, routes the
// image to the right detection backend, and records the detected regions
// on the image service.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/imageservice"
	"github.com/gastroview/model-service/internal/platform/inference"
	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
)

// ImageService is the slice of the image service client the worker needs.
type ImageService interface {
	GetImage(ctx context.Context, id int64) (*imageservice.Image, error)
	CreateRegions(ctx context.Context, imageID int64, regions []imageservice.RegionRequest) error
	ListRegionLabels(ctx context.Context, imageID int64) ([]string, error)
}

// FileStore reads original image files.
type FileStore interface {
	GetFile(ctx context.Context, key string) ([]byte, error)
}

// Backend is one detection backend.
type Backend interface {
	Name() string
	BatchDetect(ctx context.Context, images [][]byte) ([]inference.DetectionOutput, error)
}

// Router picks the detection backend for an image type. A nil backend
// means no model handles that image type.
type Router struct {
	byImageType map[int64]Backend
}

// NewRouter builds a Router from per-backend image type id lists.
func NewRouter() *Router {
	return &Router{byImageType: make(map[int64]Backend)}
}

// Register routes the given image type ids to a backend. Later
// registrations win on overlap.
func (r *Router) Register(backend Backend, imageTypeIDs []int64) {
	for _, id := range imageTypeIDs {
		r.byImageType[id] = backend
	}
}

// BackendFor returns the backend for an image type, or nil.
func (r *Router) BackendFor(imageTypeID int64) Backend {
	return r.byImageType[imageTypeID]
}

// Worker processes detection tasks end to end.
type Worker struct {
	lifecycle *taskmgmt.DetectionTaskService
	images    ImageService
	files     FileStore
	router    *Router
	logger    *slog.Logger
}

// NewWorker creates a detection Worker.
func NewWorker(
	lifecycle *taskmgmt.DetectionTaskService,
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
		logger:    log.With("component", "detect_worker"),
	}
}

// Process claims and runs one detection task. Losing the claim is a
// silent no-op; inference failures leave the task in PROCESSING for the
// reclamation sweep.
func (w *Worker) Process(ctx context.Context, taskID int64) error {
	return w.lifecycle.ClaimAndProcess(ctx, taskID, w.detect)
}

// ProcessMany runs a batch of task ids sequentially. Per-task failures are
// logged and do not stop the batch.
func (w *Worker) ProcessMany(ctx context.Context, taskIDs []int64) {
	log := logger.FromContext(ctx)
	for _, taskID := range taskIDs {
		if err := w.Process(ctx, taskID); err != nil {
			log.Error("detection task failed",
				"detection_task_id", taskID,
				"error", err)
		}
	}
}

// detect runs between the claim and completion transactions.
//
// Two outcomes complete the task without inference: the image no longer
// exists, or no backend handles its image type. Both finish as DONE with
// no regions recorded, so the task is never retried for work that cannot
// succeed.
func (w *Worker) detect(ctx context.Context, task *domain.DetectionTask) error {
	log := logger.FromContext(ctx)

	image, err := w.images.GetImage(ctx, task.OfImageID)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			log.Info("image no longer exists, completing detection task without results",
				"of_image_id", task.OfImageID)
			return nil
		}
		return fmt.Errorf("failed to fetch image %d: %w", task.OfImageID, err)
	}

	backend := w.router.BackendFor(image.ImageTypeID)
	if backend == nil {
		log.Info("no detection backend for image type, completing with empty results",
			"of_image_id", image.ID,
			"image_type_id", image.ImageTypeID)
		return nil
	}

	data, err := w.files.GetFile(ctx, image.OriginalFileName)
	if err != nil {
		return fmt.Errorf("failed to read image file %q: %w", image.OriginalFileName, err)
	}

	outputs, err := backend.BatchDetect(ctx, [][]byte{data})
	if err != nil {
		return err
	}
	regions := outputs[0].Regions

	log.Info("detection backend returned regions",
		"backend", backend.Name(),
		"of_image_id", image.ID,
		"region_count", len(regions))

	if len(regions) == 0 {
		return nil
	}

	// A reclaimed task may be reprocessed after its first run already
	// recorded regions. Skip labels that are already present so
	// reprocessing stays idempotent.
	existing, err := w.images.ListRegionLabels(ctx, image.ID)
	if err != nil {
		return fmt.Errorf("failed to list existing regions of image %d: %w", image.ID, err)
	}
	seen := make(map[string]bool, len(existing))
	for _, label := range existing {
		seen[label] = true
	}

	var requests []imageservice.RegionRequest
	for _, region := range regions {
		if seen[region.Label] {
			log.Info("region already recorded, skipping",
				"of_image_id", image.ID,
				"label", region.Label)
			continue
		}
		requests = append(requests, imageservice.RegionRequest{
			Border: region.Border,
			Label:  region.Label,
		})
	}
	if len(requests) == 0 {
		return nil
	}

	if err := w.images.CreateRegions(ctx, image.ID, requests); err != nil {
		return fmt.Errorf("failed to record regions of image %d: %w", image.ID, err)
	}
	return nil
}
