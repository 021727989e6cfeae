package model

import "time"

// Run is one served detection request.
type Run struct {
	ID             int64       `json:"id"`
	UID            string      `json:"uid"`
	Filename       string      `json:"filename"`
	UploadPath     string      `json:"upload_path"`
	OutputPath     string      `json:"output_path"`
	InferenceMs    int64       `json:"inference_ms"`
	DetectionCount int         `json:"detection_count"`
	CreatedAt      time.Time   `json:"created_at"`
	Detections     []Detection `json:"detections,omitempty"`
}

// Detection is a stored detection belonging to a run.
type Detection struct {
	ID         int64   `json:"id"`
	RunID      int64   `json:"run_id"`
	ClassID    int     `json:"class_id"`
	Label      string  `json:"class"`
	Confidence float64 `json:"conf"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Flagged    bool    `json:"flagged"`
	// Filename of the parent run, filled by feedback queries.
	Filename string `json:"filename,omitempty"`
}
