package handler

import (
	"fmt"
	"net/http"
	"os"

	"safetyvision/internal/service/storage"
)

// ViewOutputHandler serves one annotated image named by the "image" query
// parameter. With download=1 the browser saves it instead of displaying it.
func ViewOutputHandler(storageService *storage.StorageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		filePath, err := storageService.OutputPath(image)
		if err != nil {
			http.Error(w, "Invalid image name", http.StatusBadRequest)
			return
		}
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		if r.URL.Query().Get("download") == "1" {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", image))
		}
		http.ServeFile(w, r, filePath)
	}
}
