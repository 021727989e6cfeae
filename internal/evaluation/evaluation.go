// Package evaluation runs the ensemble over a labelled test split, writes
// YOLO-format prediction files and scores them with mAP@0.5.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"safetyvision/internal/dataset"
	"safetyvision/internal/detect"
	"safetyvision/internal/logger"
	"safetyvision/internal/metrics"
	"safetyvision/internal/render"
)

// DefaultConfidence keeps nearly everything so the precision/recall curve is complete.
const DefaultConfidence = 0.001

// DefaultModelIoU is the per-model NMS threshold used while evaluating.
const DefaultModelIoU = 0.5

// Report is the outcome of one evaluation run.
type Report struct {
	Images      int            `json:"images"`
	Predictions int            `json:"predictions"`
	Malformed   int            `json:"malformed"`
	Metrics     metrics.Result `json:"metrics"`
}

// Evaluator scores an ensemble against ground-truth labels.
type Evaluator struct {
	ensemble *detect.Ensemble
	logger   *logger.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(ensemble *detect.Ensemble, logger *logger.Logger) *Evaluator {
	return &Evaluator{ensemble: ensemble, logger: logger}
}

// Run evaluates every image in imageDir. Ground truth is read from
// labelDir/<stem>.txt (a missing file means no objects) and predictions are
// written to predDir/<stem>.txt. A malformed model output is logged and the
// image counts as having no detections. Cancelling ctx stops between images.
func (e *Evaluator) Run(ctx context.Context, imageDir, labelDir, predDir string) (*Report, error) {
	images, err := dataset.ListFiles(imageDir, dataset.ImageExtensions...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if err := os.MkdirAll(predDir, 0755); err != nil {
		return nil, fmt.Errorf("create prediction directory: %w", err)
	}

	report := &Report{}
	var preds []metrics.Prediction
	var gts []metrics.GroundTruth

	for _, name := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))

		labels, err := dataset.ReadLabelFile(filepath.Join(labelDir, stem+".txt"))
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		for _, l := range labels {
			gts = append(gts, metrics.GroundTruth{Image: stem, ClassID: l.ClassID, Box: metrics.LabelBox(l)})
		}

		predLabels, err := e.predict(filepath.Join(imageDir, name))
		if errors.Is(err, detect.ErrMalformedOutput) {
			e.logger.Warning("Malformed output for %s, treating as no detections: %v", name, err)
			report.Malformed++
			predLabels, err = nil, nil
		}
		if err != nil {
			return nil, err
		}

		if err := writePredictions(filepath.Join(predDir, stem+".txt"), predLabels); err != nil {
			return nil, err
		}
		for _, l := range predLabels {
			preds = append(preds, metrics.Prediction{
				Image:      stem,
				ClassID:    l.ClassID,
				Box:        metrics.LabelBox(l),
				Confidence: l.Confidence,
			})
		}

		report.Images++
		report.Predictions += len(predLabels)
	}

	report.Metrics = metrics.MeanAP(preds, gts, metrics.DefaultIoU)
	e.logger.Info("Evaluated %d images: %d predictions, mAP@0.5 = %.4f", report.Images, report.Predictions, report.Metrics.MAP)
	return report, nil
}

// predict runs the ensemble and converts detections to normalised labels.
func (e *Evaluator) predict(path string) ([]dataset.Label, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := render.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dets, err := e.ensemble.Run(img)
	if err != nil {
		return nil, err
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	labels := make([]dataset.Label, 0, len(dets))
	for _, d := range dets {
		xc, yc, bw, bh := d.Normalized(w, h)
		labels = append(labels, dataset.Label{
			ClassID:       d.ClassID,
			XC:            xc,
			YC:            yc,
			W:             bw,
			H:             bh,
			Confidence:    d.Confidence,
			HasConfidence: true,
		})
	}
	return labels, nil
}

func writePredictions(path string, labels []dataset.Label) error {
	var sb strings.Builder
	for _, l := range labels {
		sb.WriteString(l.Format())
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	return nil
}
