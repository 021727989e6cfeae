package route

import (
	"net/http"
	"os"
	"path/filepath"

	"safetyvision/internal/config"
	"safetyvision/internal/detect"
	"safetyvision/internal/handler"
	"safetyvision/internal/logger"
	"safetyvision/internal/middleware"
	"safetyvision/internal/repository"
	"safetyvision/internal/service"
)

// logFiles maps /logs/<level> to the file the logger writes.
var logFiles = map[string]string{
	"info":    logger.InfoFile,
	"warning": logger.WarningFile,
	"error":   logger.ErrorFile,
}

// dynamicHTMLHandler serves /path as <staticDir>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the detection API, history/feedback endpoints, log
// views and pages, and wraps the mux with CORS and authentication middleware.
func SetupRoutes(manager *service.Manager, ensemble *detect.Ensemble, cfg *config.Config, logger *logger.Logger,
	runRepo repository.RunRepository, detectionRepo repository.DetectionRepository) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	// Detection
	mux.HandleFunc("/detect", handler.DetectHandler(manager, cfg, logger))
	mux.HandleFunc("/api/live", handler.LiveWebsocketHandler(manager, logger))
	mux.HandleFunc("/api/settings", handler.SettingsHandler(ensemble, logger))
	mux.HandleFunc("/api/accuracy", handler.AccuracyHandler(cfg, logger))
	mux.HandleFunc("/api/outputs/view", handler.ViewOutputHandler(manager.GetStorageService()))

	// History
	mux.HandleFunc("/api/history", handler.GetHistoryHandler(logger, runRepo, detectionRepo))
	mux.HandleFunc("/api/history/delete", handler.DeleteRunHandler(manager, logger))
	mux.HandleFunc("/api/history/clear", handler.ClearHistoryHandler(manager, logger))

	// Feedback
	mux.HandleFunc("/api/feedback", handler.GetFeedbackHandler(logger, detectionRepo))
	mux.HandleFunc("/api/feedback/flag", handler.FlagDetectionHandler(logger, detectionRepo))
	mux.HandleFunc("/api/feedback/export", handler.ExportFeedbackHandler(logger, detectionRepo))

	// Log endpoints
	for level, file := range logFiles {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(logger, file))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// Automatic HTML handler mapping for example: /history -> /static/history.html
	mux.HandleFunc("/", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.CORSMiddleware(middleware.AuthMiddleware(cfg.Password, mux))
}
