package handler

import (
	"errors"
	"net/http"

	"safetyvision/internal/dto"
	"safetyvision/internal/logger"
	"safetyvision/internal/model"
	"safetyvision/internal/repository"
	"safetyvision/internal/repository/sqlite"
	"safetyvision/internal/service"
)

const (
	maxHistoryPage  = 100000
	maxHistoryLimit = 500
)

// GetHistoryHandler returns a filtered, paginated list of detection runs.
// Query: page, limit, class, dateAfter, dateBefore.
func GetHistoryHandler(logger *logger.Logger, runRepo repository.RunRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := min(atoiDefault(q.Get("page"), 1), maxHistoryPage)
		limit := min(atoiDefault(q.Get("limit"), 24), maxHistoryLimit)

		filter := &dto.RunFilters{
			Label:      q.Get("class"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		runs, err := runRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying runs from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := runRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting runs: %v", err)
			totalCount = len(runs)
		}

		for i := range runs {
			dets, err := detectionRepo.GetByRunID(runs[i].ID)
			if err != nil {
				logger.Error("Error getting detections for run %d: %v", runs[i].ID, err)
				continue
			}
			runs[i].Detections = dets
		}

		labelCounts, err := detectionRepo.CountByLabel()
		if err != nil {
			logger.Error("Error counting detections: %v", err)
			labelCounts = map[string]int{}
		}

		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, logger, http.StatusOK, dto.HistoryData{
			Runs:        runs,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
			LabelCounts: labelCounts,
		})
	}
}

// DeleteRunHandler removes a run (?id=) together with its stored images.
func DeleteRunHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost, http.MethodDelete) {
			return
		}
		id, ok := parseID(r, "id")
		if !ok {
			http.Error(w, "Valid id required", http.StatusBadRequest)
			return
		}

		if err := manager.DeleteRun(id); err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				http.Error(w, "Run not found", http.StatusNotFound)
				return
			}
			logger.Error("Failed to delete run %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, map[string]interface{}{"status": "deleted", "id": id})
	}
}

// ClearHistoryHandler deletes every run and clears the upload and output directories.
func ClearHistoryHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost, http.MethodDelete) {
			return
		}
		if err := manager.ClearRuns(); err != nil {
			logger.Error("Error clearing history: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		logger.Info("Detection history cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}
