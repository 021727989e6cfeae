package repository

import (
	"safetyvision/internal/dto"
	"safetyvision/internal/model"
)

// RunRepository defines the interface for detection run operations.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Run, error)
	GetByOutputPath(path string) (*model.Run, error)
	GetAll(filter *dto.RunFilters) ([]model.Run, error)
	GetTotalCount(filter *dto.RunFilters) (int, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	InsertBatch(runID int64, detections []model.Detection) error

	// Read operations
	GetByRunID(runID int64) ([]model.Detection, error)
	GetFlagged() ([]model.Detection, error)
	GetAll() ([]model.Detection, error)
	CountByLabel() (map[string]int, error)

	// Update operations
	SetFlagged(id int64, flagged bool) error
}
