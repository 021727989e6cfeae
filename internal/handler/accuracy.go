package handler

import (
	"net/http"
	"os"

	"safetyvision/internal/config"
	"safetyvision/internal/detect"
	"safetyvision/internal/logger"
	"safetyvision/internal/training"
)

// AccuracyHandler serves the training summary (per-class and overall mAP@0.5)
// written by `train -mode summary`.
func AccuracyHandler(cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := training.ReadReport(cfg.AccuracySummary)
		if os.IsNotExist(err) {
			writeError(w, logger, http.StatusNotFound, "accuracy summary not available")
			return
		}
		if err != nil {
			logger.Error("Error reading accuracy summary: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "unable to read accuracy summary")
			return
		}
		writeJSON(w, logger, http.StatusOK, report)
	}
}

// SettingsHandler reports the loaded classes and ensemble options for the dashboard.
func SettingsHandler(ensemble *detect.Ensemble, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := ensemble.Options()
		writeJSON(w, logger, http.StatusOK, map[string]interface{}{
			"classes":              ensemble.Registry().Labels(),
			"confidence_threshold": opts.ConfidenceThreshold,
			"iou_threshold":        opts.IoUThreshold,
			"nms":                  opts.Suppress,
			"nms_class_aware":      opts.ClassAware,
		})
	}
}
