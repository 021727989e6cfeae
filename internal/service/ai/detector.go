package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"safetyvision/internal/detect"

	"gocv.io/x/gocv"
)

// CVDetector runs an exported YOLOv8 ONNX model through the OpenCV DNN module.
type CVDetector struct {
	net       gocv.Net
	cfg       detect.YOLOConfig
	modelPath string
	mu        sync.Mutex // gocv.Net is not safe for concurrent Forward calls
}

// NewCVDetector loads modelPath and sets the CPU backend.
func NewCVDetector(modelPath string, cfg detect.YOLOConfig) (*CVDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", detect.ErrModelNotFound, modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &CVDetector{net: net, cfg: cfg, modelPath: modelPath}, nil
}

// Detect implements detect.Detector.
func (d *CVDetector) Detect(img image.Image) ([]detect.Candidate, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	size := image.Pt(d.cfg.InputSize, d.cfg.InputSize)
	blob := gocv.BlobFromImage(mat, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detect.ErrMalformedOutput, err)
	}
	return detect.DecodeYOLO(data, d.cfg, mat.Cols(), mat.Rows())
}

// Close releases the network.
func (d *CVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
