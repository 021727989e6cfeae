package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"safetyvision/internal/dataset"
	"safetyvision/internal/detect"
	"safetyvision/internal/dto"
	"safetyvision/internal/logger"
	"safetyvision/internal/model"
	"safetyvision/internal/render"
	"safetyvision/internal/repository"
	"safetyvision/internal/service/storage"
	"safetyvision/internal/service/websocket"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid"
)

// Result is the outcome of one served detection run.
type Result struct {
	Run        *model.Run
	Detections []detect.Detection
	Summary    detect.Summary
	Annotated  []byte
}

// Manager runs the ensemble on uploads, persists the result and notifies viewers.
type Manager struct {
	ensemble         *detect.Ensemble
	annotator        render.Annotator
	storageService   *storage.StorageService
	websocketService *websocket.HubService
	runRepo          repository.RunRepository
	detectionRepo    repository.DetectionRepository
	logger           *logger.Logger

	// one ensemble run at a time
	inferenceMu sync.Mutex
	now         func() time.Time
}

func NewManager(ensemble *detect.Ensemble, annotator render.Annotator, storageService *storage.StorageService,
	websocketService *websocket.HubService, runRepo repository.RunRepository,
	detectionRepo repository.DetectionRepository, logger *logger.Logger) *Manager {
	return &Manager{
		ensemble:         ensemble,
		annotator:        annotator,
		storageService:   storageService,
		websocketService: websocketService,
		runRepo:          runRepo,
		detectionRepo:    detectionRepo,
		logger:           logger,
		now:              time.Now,
	}
}

func (m *Manager) GetWebsocketService() *websocket.HubService {
	return m.websocketService
}

func (m *Manager) GetStorageService() *storage.StorageService {
	return m.storageService
}

func (m *Manager) Labels() []string {
	return m.ensemble.Registry().Labels()
}

// Detect runs the ensemble under the inference lock and reports its duration.
func (m *Manager) Detect(img image.Image) ([]detect.Detection, time.Duration, error) {
	m.inferenceMu.Lock()
	defer m.inferenceMu.Unlock()

	start := time.Now()
	dets, err := m.ensemble.Run(img)
	return dets, time.Since(start), err
}

// ProcessUpload decodes an uploaded image, runs the ensemble, stores the
// upload and the annotated PNG, records the run and broadcasts a live event.
// Payloads that are not a decodable image yield render.ErrUnsupportedImage.
func (m *Manager) ProcessUpload(ctx context.Context, filename string, data []byte) (*Result, error) {
	if mime := mimetype.Detect(data); !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("%w: %s", render.ErrUnsupportedImage, mime.String())
	}
	img, _, err := render.DecodeImage(data)
	if errors.Is(err, render.ErrUnsupportedImage) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", render.ErrUnsupportedImage, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dets, elapsed, err := m.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("ensemble: %w", err)
	}

	annotated, err := m.annotator.Annotate(img, dets)
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}

	at := m.now()
	uploadPath, err := m.storageService.SaveUpload(filename, data, at)
	if err != nil {
		return nil, err
	}
	outputPath, err := m.storageService.SaveAnnotated(filename, annotated, at)
	if err != nil {
		m.storageService.Remove(uploadPath)
		return nil, err
	}

	run := &model.Run{
		UID:            id.String(),
		Filename:       storage.SanitizeName(filename),
		UploadPath:     uploadPath,
		OutputPath:     outputPath,
		InferenceMs:    elapsed.Milliseconds(),
		DetectionCount: len(dets),
		CreatedAt:      at,
		Detections:     ToModel(dets),
	}
	if err := m.record(run); err != nil {
		m.storageService.Remove(uploadPath, outputPath)
		return nil, err
	}

	summary := detect.Summarize(dets, m.Labels())
	m.broadcast(run, summary)

	m.logger.Info("Run %d (%s): %d detection(s) in %dms", run.ID, run.Filename, len(dets), run.InferenceMs)
	return &Result{Run: run, Detections: dets, Summary: summary, Annotated: annotated}, nil
}

// record stores the run and its detections. A failed detection insert
// removes the run row again.
func (m *Manager) record(run *model.Run) error {
	if m.runRepo == nil {
		return nil
	}
	id, err := m.runRepo.Insert(run)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	run.ID = id
	for i := range run.Detections {
		run.Detections[i].RunID = id
	}
	if m.detectionRepo != nil && len(run.Detections) > 0 {
		if err := m.detectionRepo.InsertBatch(id, run.Detections); err != nil {
			if delErr := m.runRepo.Delete(id); delErr != nil {
				m.logger.Error("Failed to roll back run %d: %v", id, delErr)
			}
			run.ID = 0
			return fmt.Errorf("record detections: %w", err)
		}
	}
	return nil
}

func (m *Manager) broadcast(run *model.Run, summary detect.Summary) {
	if m.websocketService == nil {
		return
	}
	msg, err := json.Marshal(dto.LiveEvent{
		ID:          run.ID,
		Filename:    run.Filename,
		Output:      filepath.Base(run.OutputPath),
		ClassCounts: summary.ClassCounts,
		Detections:  run.DetectionCount,
		InferenceMs: run.InferenceMs,
	})
	if err != nil {
		m.logger.Error("Error encoding live event: %v", err)
		return
	}
	m.websocketService.Broadcast(msg)
}

// DeleteRun removes a run, its detections and its stored files.
func (m *Manager) DeleteRun(id int64) error {
	run, err := m.runRepo.GetByID(id)
	if err != nil {
		return err
	}
	if err := m.runRepo.Delete(id); err != nil {
		return err
	}
	m.storageService.Remove(run.UploadPath, run.OutputPath)
	m.logger.Info("Deleted run %d (%s)", id, run.Filename)
	return nil
}

// ClearRuns deletes every run and every stored file.
func (m *Manager) ClearRuns() error {
	if err := m.runRepo.DeleteAll(); err != nil {
		return err
	}
	return m.storageService.Clear()
}

// AnnotateDirectory runs the ensemble over every image in inDir and writes
// <stem>.png annotations to outDir. Images that fail to decode or detect are
// logged and skipped.
func (m *Manager) AnnotateDirectory(ctx context.Context, inDir, outDir string) (int, error) {
	files, err := dataset.ListFiles(inDir, dataset.ImageExtensions...)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, fmt.Errorf("error creating directory: %w", err)
	}

	written := 0
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		data, err := os.ReadFile(filepath.Join(inDir, name))
		if err != nil {
			m.logger.Warning("Skipping %s: %v", name, err)
			continue
		}
		img, _, err := render.DecodeImage(data)
		if err != nil {
			m.logger.Warning("Skipping %s: %v", name, err)
			continue
		}
		dets, _, err := m.Detect(img)
		if err != nil {
			m.logger.Error("Detection failed for %s: %v", name, err)
			continue
		}
		png, err := m.annotator.Annotate(img, dets)
		if err != nil {
			m.logger.Error("Annotation failed for %s: %v", name, err)
			continue
		}
		out := filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name))+".png")
		if err := os.WriteFile(out, png, 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", out, err)
		}
		written++
		m.logger.Info("Annotated %s: %d detection(s)", name, len(dets))
	}
	return written, nil
}

// ToModel converts ensemble detections into storable rows.
func ToModel(dets []detect.Detection) []model.Detection {
	rows := make([]model.Detection, len(dets))
	for i, d := range dets {
		rows[i] = model.Detection{
			ClassID:    d.ClassID,
			Label:      d.Label,
			Confidence: d.Confidence,
			X1:         d.Box.X1,
			Y1:         d.Box.Y1,
			X2:         d.Box.X2,
			Y2:         d.Box.Y2,
		}
	}
	return rows
}
