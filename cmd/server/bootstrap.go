package main

import (
	"github.com/codehive/backend/internal/collab"
	"github.com/codehive/backend/internal/config"
	"github.com/codehive/backend/internal/handlers"
	"github.com/codehive/backend/internal/models"
	"github.com/codehive/backend/internal/services"
	"github.com/codehive/backend/internal/storage"
	"github.com/codehive/backend/internal/utils"
	"github.com/codehive/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg       *config.Config
	store     *storage.Store
	hub       *collab.Hub
	taskQueue services.TaskQueue
	worker    *services.Worker

	authHandler     *handlers.AuthHandler
	projectHandler  *handlers.ProjectHandler
	fileHandler     *handlers.FileHandler
	changeHandler   *handlers.ChangeHandler
	activityHandler *handlers.ActivityHandler
	wsHandler       *handlers.WSHandler
}

// bootstrap initializes all application dependencies: database, storage,
// task queue, schedulers and the collaboration hub.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	store, err := storage.NewStore(cfg.Storage.ProjectsDir)
	if err != nil {
		logger.Fatalf("Failed to open project storage: %v", err)
	}

	services.InitActivityLogger(db)
	services.StartRetentionScheduler(db)

	// Repository imports run through the task queue: async via Redis when
	// configured, inline otherwise.
	importService := services.NewImportService(db, store)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(importService.ProcessImportTask)
	}

	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(importService.ProcessImportTask)
			if err := worker.Start(); err != nil {
				logger.Fatalf("Failed to start import worker: %v", err)
			}
		}
	}

	changeService := services.NewChangeService(db, store)
	hub := collab.NewHub(db, changeService)

	return &appServices{
		cfg:       cfg,
		store:     store,
		hub:       hub,
		taskQueue: taskQueue,
		worker:    worker,

		authHandler:     handlers.NewAuthHandler(db, cfg),
		projectHandler:  handlers.NewProjectHandler(db, store, taskQueue),
		fileHandler:     handlers.NewFileHandler(db, store),
		changeHandler:   handlers.NewChangeHandler(db, store),
		activityHandler: handlers.NewActivityHandler(db),
		wsHandler:       handlers.NewWSHandler(db, hub),
	}
}

// shutdown gracefully stops all background services.
func (s *appServices) shutdown() {
	services.StopRetentionScheduler()
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	logger.Info().Msg("Background services stopped")
}
