package dto

import "safetyvision/internal/detect"

// DetectResponse is the /detect payload.
type DetectResponse struct {
	ID          int64              `json:"id"`
	UID         string             `json:"uid"`
	Detections  []detect.Detection `json:"detections"`
	Image       string             `json:"image"` // base64 PNG
	InferenceMs int64              `json:"inference_ms"`
	Output      string             `json:"output"`
	detect.Summary
}

// LiveEvent is broadcast to dashboard viewers after each run.
type LiveEvent struct {
	ID          int64          `json:"id"`
	Filename    string         `json:"filename"`
	Output      string         `json:"output"`
	ClassCounts map[string]int `json:"class_counts"`
	Detections  int            `json:"detections"`
	InferenceMs int64          `json:"inference_ms"`
}
