package handler

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"

	"safetyvision/internal/logger"
	"safetyvision/internal/model"
	"safetyvision/internal/repository"
	"safetyvision/internal/repository/sqlite"
)

// ExportHeader is the first row of the feedback CSV.
var ExportHeader = []string{"detection_id", "run_id", "filename", "class_id", "class", "conf", "x1", "y1", "x2", "y2"}

// FlagDetectionHandler marks a detection (?id=) for review; flagged=false clears the mark.
func FlagDetectionHandler(logger *logger.Logger, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost) {
			return
		}
		id, ok := parseID(r, "id")
		if !ok {
			http.Error(w, "Valid id required", http.StatusBadRequest)
			return
		}
		flagged := true
		if v := r.URL.Query().Get("flagged"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "flagged must be a boolean", http.StatusBadRequest)
				return
			}
			flagged = b
		}

		if err := detectionRepo.SetFlagged(id, flagged); err != nil {
			if errors.Is(err, sqlite.ErrNotFound) {
				http.Error(w, "Detection not found", http.StatusNotFound)
				return
			}
			logger.Error("Failed to flag detection %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Detection %d flagged=%t", id, flagged)
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{"id": id, "flagged": flagged})
	}
}

// GetFeedbackHandler lists detections flagged for review.
func GetFeedbackHandler(logger *logger.Logger, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flagged, err := detectionRepo.GetFlagged()
		if err != nil {
			logger.Error("Error querying flagged detections: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, flagged)
	}
}

// ExportFeedbackHandler streams flagged detections as CSV. all=1 exports every detection.
func ExportFeedbackHandler(logger *logger.Logger, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			rows []model.Detection
			err  error
		)
		if r.URL.Query().Get("all") == "1" {
			rows, err = detectionRepo.GetAll()
		} else {
			rows, err = detectionRepo.GetFlagged()
		}
		if err != nil {
			logger.Error("Error querying detections for export: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="feedback.csv"`)

		cw := csv.NewWriter(w)
		cw.Write(ExportHeader)
		for _, d := range rows {
			cw.Write([]string{
				strconv.FormatInt(d.ID, 10),
				strconv.FormatInt(d.RunID, 10),
				d.Filename,
				strconv.Itoa(d.ClassID),
				d.Label,
				strconv.FormatFloat(d.Confidence, 'f', 4, 64),
				strconv.FormatFloat(d.X1, 'f', 1, 64),
				strconv.FormatFloat(d.Y1, 'f', 1, 64),
				strconv.FormatFloat(d.X2, 'f', 1, 64),
				strconv.FormatFloat(d.Y2, 'f', 1, 64),
			})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			logger.Error("Error writing CSV export: %v", err)
		}
	}
}
