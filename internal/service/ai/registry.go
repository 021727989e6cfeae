package ai

import (
	"fmt"

	"safetyvision/internal/config"
	"safetyvision/internal/detect"
	"safetyvision/internal/logger"
	"safetyvision/internal/render"
)

const (
	BackendOpenCV      = "opencv"
	BackendONNXRuntime = "onnxruntime"
)

// YOLOConfig builds single-class decoder settings from the configuration.
func YOLOConfig(cfg *config.Config) detect.YOLOConfig {
	return detect.YOLOConfig{
		InputSize:  cfg.InputSize,
		NumClasses: 1,
		Confidence: cfg.ModelConfidence,
		IoU:        cfg.ModelIoU,
	}
}

// EvaluationConfig returns a copy of cfg whose models decode with the given
// score floor and NMS threshold, so low-scored boxes reach the ensemble.
func EvaluationConfig(cfg *config.Config, confidence, modelIoU float64) *config.Config {
	out := *cfg
	out.ModelConfidence = confidence
	out.ModelIoU = modelIoU
	return &out
}

// EnsembleOptions builds the pooling options from the configuration.
func EnsembleOptions(cfg *config.Config) detect.Options {
	return detect.Options{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		IoUThreshold:        cfg.IoUThreshold,
		Suppress:            cfg.NMSEnabled,
		ClassAware:          cfg.NMSClassAware,
	}
}

// NewDetector opens one model with the configured backend.
func NewDetector(cfg *config.Config, modelPath string) (detect.Detector, error) {
	switch cfg.Backend {
	case BackendOpenCV, "":
		return NewCVDetector(modelPath, YOLOConfig(cfg))
	case BackendONNXRuntime:
		if err := InitONNXRuntime(cfg.OnnxLibraryPath); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
		return NewORTDetector(modelPath, YOLOConfig(cfg))
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// LoadRegistry loads one model per configured class, class id = position in
// cfg.Classes. Any missing weights file fails the whole load.
func LoadRegistry(cfg *config.Config, logger *logger.Logger) (*detect.Registry, error) {
	entries := make([]detect.Entry, 0, len(cfg.Classes))
	closeAll := func() {
		for _, e := range entries {
			e.Detector.Close()
		}
	}

	for i, class := range cfg.Classes {
		path := cfg.ModelPath(class)
		d, err := NewDetector(cfg, path)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("load %s model: %w", class, err)
		}
		logger.Info("Loaded %s model from %s (%s)", class, path, cfg.Backend)
		entries = append(entries, detect.Entry{ClassID: i, Label: class, Detector: d})
	}

	reg, err := detect.NewRegistry(entries...)
	if err != nil {
		closeAll()
		return nil, err
	}
	return reg, nil
}

// NewAnnotator returns the drawing implementation matching the backend.
func NewAnnotator(cfg *config.Config) render.Annotator {
	if cfg.Backend == BackendOpenCV || cfg.Backend == "" {
		return CVAnnotator{}
	}
	return render.Drawer{}
}
