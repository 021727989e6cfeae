package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"safetyvision/internal/config"
	"safetyvision/internal/detect"
	"safetyvision/internal/dto"
	"safetyvision/internal/logger"
	"safetyvision/internal/render"
	"safetyvision/internal/service"
)

// UploadField is the multipart field carrying the image.
const UploadField = "file"

// DetectHandler handles POST /detect: runs the ensemble on the uploaded image
// and returns detections, the annotated PNG (base64) and chart aggregates.
func DetectHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodPost) {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)
		if err := r.ParseMultipartForm(cfg.MaxUploadSize); err != nil {
			if tooLarge(err) {
				writeError(w, logger, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			writeError(w, logger, http.StatusBadRequest, "expected multipart form with a file field")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile(UploadField)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			if tooLarge(err) {
				writeError(w, logger, http.StatusRequestEntityTooLarge, "file too large")
				return
			}
			writeError(w, logger, http.StatusBadRequest, "unable to read file")
			return
		}

		res, err := manager.ProcessUpload(r.Context(), header.Filename, data)
		if err != nil {
			if errors.Is(err, render.ErrUnsupportedImage) {
				logger.Warning("Rejected upload %s: %v", header.Filename, err)
				writeError(w, logger, http.StatusBadRequest, "file is not a supported image")
				return
			}
			logger.Error("Detection failed for %s: %v", header.Filename, err)
			writeError(w, logger, http.StatusInternalServerError, "detection failed")
			return
		}

		dets := res.Detections
		if dets == nil {
			dets = []detect.Detection{}
		}
		writeJSON(w, logger, http.StatusOK, dto.DetectResponse{
			ID:          res.Run.ID,
			UID:         res.Run.UID,
			Detections:  dets,
			Image:       base64.StdEncoding.EncodeToString(res.Annotated),
			InferenceMs: res.Run.InferenceMs,
			Output:      filepath.Base(res.Run.OutputPath),
			Summary:     res.Summary,
		})
	}
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
