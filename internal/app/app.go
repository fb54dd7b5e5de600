// Package app is the composition root shared by the service binaries.
// Every dependency is wired explicitly through constructors.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gastroview/model-service/internal/api"
	"github.com/gastroview/model-service/internal/config"
	"github.com/gastroview/model-service/internal/consumer"
	"github.com/gastroview/model-service/internal/domain"
	"github.com/gastroview/model-service/internal/platform/imageservice"
	"github.com/gastroview/model-service/internal/platform/inference"
	"github.com/gastroview/model-service/internal/platform/kafkaqueue"
	"github.com/gastroview/model-service/internal/platform/logger"
	"github.com/gastroview/model-service/internal/platform/objectstore"
	"github.com/gastroview/model-service/internal/platform/postgres"
	"github.com/gastroview/model-service/internal/platform/timer"
	"github.com/gastroview/model-service/internal/service/classify"
	"github.com/gastroview/model-service/internal/service/detect"
	"github.com/gastroview/model-service/internal/service/taskmgmt"
)

// App holds the wired components of the service.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB

	Publisher *kafkaqueue.Publisher

	DetectionLifecycle      *taskmgmt.DetectionTaskService
	ClassificationLifecycle *taskmgmt.ClassificationTaskService

	DetectWorker   *detect.Worker
	ClassifyWorker *classify.Worker

	TaskCreator    *consumer.TaskCreator
	TaskDispatcher *consumer.TaskDispatcher
}

// New wires the application from configuration. It connects to the
// database and runs pending migrations; everything else is constructed
// lazily enough that no external call happens here.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Setup(cfg.Server.LogLevel)

	db, err := postgres.Connect(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	clock := timer.NewSystemTimer()

	detectionStore := postgres.NewDetectionTaskStore(db, clock)
	classificationStore := postgres.NewClassificationTaskStore(db, clock)
	resultStore := postgres.NewClassificationResultStore(db)
	typeStore := postgres.NewClassificationTypeStore(db)

	publisher := kafkaqueue.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.ClientID, log)

	detectionLifecycle := taskmgmt.NewDetectionTaskService(
		db, detectionStore, publisher, clock, log)
	classificationLifecycle := taskmgmt.NewClassificationTaskService(
		db, classificationStore, resultStore, typeStore, publisher, clock, log)

	images := imageservice.NewClient(cfg.ImageService.BaseURL,
		time.Duration(cfg.ImageService.TimeoutSeconds)*time.Second)

	files, err := objectstore.NewBucket(objectstore.Config{
		Endpoint:        cfg.ObjectStore.Endpoint,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
		UseSSL:          cfg.ObjectStore.UseSSL,
		Bucket:          cfg.ObjectStore.OriginalBucket,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	detectRouter := detect.NewRouter()
	detectRouter.Register(backendClient("polyp_detection", cfg.Detection.Polyp),
		cfg.Detection.PolypImageTypeIDs)
	detectRouter.Register(backendClient("esophagus_detection", cfg.Detection.Esophagus),
		cfg.Detection.EsophagusImageTypeIDs)

	classifyRouter := classify.NewRouter()
	classifyRouter.Register(backendClient("gastric_classification", cfg.Classifiers.Gastric),
		cfg.Classifiers.GastricImageTypeIDs)
	classifyRouter.Register(backendClient("upper_gi_classification", cfg.Classifiers.UpperGI),
		cfg.Classifiers.UpperGIImageTypeIDs)

	detectWorker := detect.NewWorker(detectionLifecycle, images, files, detectRouter, log)
	classifyWorker := classify.NewWorker(classificationLifecycle, images, files, classifyRouter, log)

	classifyAxes := make([]domain.ClassificationType, 0, len(cfg.Classifiers.TriggerClassificationTypes))
	if cfg.Classifiers.TriggerOnImageCreated {
		for _, axis := range cfg.Classifiers.TriggerClassificationTypes {
			classifyAxes = append(classifyAxes, domain.ClassificationType(axis))
		}
	}

	taskCreator := consumer.NewTaskCreator(
		detectionLifecycle, classificationLifecycle,
		cfg.Detection.TriggerOnImageCreated, classifyAxes)
	taskDispatcher := consumer.NewTaskDispatcher(detectWorker, classifyWorker)

	return &App{
		Config:                  cfg,
		Logger:                  log,
		DB:                      db,
		Publisher:               publisher,
		DetectionLifecycle:      detectionLifecycle,
		ClassificationLifecycle: classificationLifecycle,
		DetectWorker:            detectWorker,
		ClassifyWorker:          classifyWorker,
		TaskCreator:             taskCreator,
		TaskDispatcher:          taskDispatcher,
	}, nil
}

// APIRouter builds the HTTP handler for the server binary.
func (a *App) APIRouter() http.Handler {
	return api.NewRouter(
		api.NewDetectionTaskHandler(a.DetectionLifecycle),
		api.NewClassificationTaskHandler(a.ClassificationLifecycle),
	)
}

// ProcessingTimeout is the configured stale-task threshold.
func (a *App) ProcessingTimeout() time.Duration {
	return time.Duration(a.Config.Task.ProcessingTimeoutMinutes) * time.Minute
}

// Close releases the app's long-lived resources.
func (a *App) Close() error {
	var firstErr error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func backendClient(name string, cfg config.BackendConfig) *inference.Client {
	return inference.NewClient(name, cfg.BaseURL,
		time.Duration(cfg.TimeoutSeconds)*time.Second)
}
