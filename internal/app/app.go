package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"safetyvision/internal/config"
	"safetyvision/internal/detect"
	"safetyvision/internal/logger"
	"safetyvision/internal/repository/sqlite"
	"safetyvision/internal/route"
	"safetyvision/internal/service"
	"safetyvision/internal/service/ai"
	"safetyvision/internal/service/storage"
	"safetyvision/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	registry   *detect.Registry
	hubService *websocket.HubService
	manager    *service.Manager
	server     *http.Server
}

// NewApp loads every class model and opens the history database. A missing
// weights file is returned as an error wrapping detect.ErrModelNotFound.
func NewApp(cfg *config.Config, logger *logger.Logger) (*App, error) {
	registry, err := ai.LoadRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		registry.Close()
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		registry.Close()
		return nil, err
	}

	runRepo := sqlite.NewRunRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	ensemble := detect.NewEnsemble(registry, ai.EnsembleOptions(cfg))
	hub := websocket.NewHubService(logger)
	mng := service.NewManager(ensemble, ai.NewAnnotator(cfg), storage.NewStorageService(cfg, logger),
		hub, runRepo, detectionRepo, logger)

	router := route.SetupRoutes(mng, ensemble, cfg, logger, runRepo, detectionRepo)

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		registry:   registry,
		hubService: hub,
		manager:    mng,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully and
// releases the models and the database.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hubService.Run(hubCtx)

	a.logger.Info("Safety equipment detector listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Classes: %v (backend %s, conf > %.2f, NMS %t)", a.registry.Labels(), a.config.Backend,
		a.config.ConfidenceThreshold, a.config.NMSEnabled)
	if !a.config.AuthEnabled() {
		a.logger.Warning("PASSWORD not set, dashboard and API are open")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *App) close() {
	if err := a.registry.Close(); err != nil {
		a.logger.Error("Error closing models: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
}
