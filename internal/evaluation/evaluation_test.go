package evaluation

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"safetyvision/internal/config"
	"safetyvision/internal/detect"
	"safetyvision/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type detectorFunc func(image.Image) ([]detect.Candidate, error)

func (f detectorFunc) Detect(img image.Image) ([]detect.Candidate, error) { return f(img) }
func (f detectorFunc) Close() error                                       { return nil }

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newEvaluator(t *testing.T, entries ...detect.Entry) *Evaluator {
	t.Helper()
	reg, err := detect.NewRegistry(entries...)
	require.NoError(t, err)
	opts := detect.DefaultOptions()
	opts.ConfidenceThreshold = DefaultConfidence
	l := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	t.Cleanup(func() { l.Close() })
	return NewEvaluator(detect.NewEnsemble(reg, opts), l)
}

func TestRun_PerfectPredictions(t *testing.T) {
	root := t.TempDir()
	imageDir := filepath.Join(root, "images")
	labelDir := filepath.Join(root, "labels")
	predDir := filepath.Join(root, "pred")
	writePNG(t, filepath.Join(imageDir, "a.png"), 100, 100)
	writeText(t, filepath.Join(labelDir, "a.txt"), "0 0.5 0.5 0.2 0.2\n")

	fire := detectorFunc(func(image.Image) ([]detect.Candidate, error) {
		return []detect.Candidate{{Box: detect.Box{X1: 40, Y1: 40, X2: 60, Y2: 60}, Confidence: 0.9}}, nil
	})
	e := newEvaluator(t, detect.Entry{ClassID: 0, Label: "FireExtinguisher", Detector: fire})

	report, err := e.Run(context.Background(), imageDir, labelDir, predDir)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Images)
	assert.Equal(t, 1, report.Predictions)
	assert.InDelta(t, 1.0, report.Metrics.MAP, 1e-9)

	pred, err := os.ReadFile(filepath.Join(predDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0 0.500000 0.500000 0.200000 0.200000 0.900000\n", string(pred))
}

func TestRun_MalformedOutputMeansNoDetections(t *testing.T) {
	root := t.TempDir()
	imageDir := filepath.Join(root, "images")
	labelDir := filepath.Join(root, "labels")
	predDir := filepath.Join(root, "pred")
	writePNG(t, filepath.Join(imageDir, "good.png"), 100, 100)
	writePNG(t, filepath.Join(imageDir, "bad.png"), 50, 50)
	writeText(t, filepath.Join(labelDir, "good.txt"), "1 0.5 0.5 0.2 0.2\n")
	writeText(t, filepath.Join(labelDir, "bad.txt"), "1 0.5 0.5 0.2 0.2\n")

	toolbox := detectorFunc(func(img image.Image) ([]detect.Candidate, error) {
		if img.Bounds().Dx() == 50 {
			return nil, fmt.Errorf("%w: got 7 values", detect.ErrMalformedOutput)
		}
		return []detect.Candidate{{Box: detect.Box{X1: 40, Y1: 40, X2: 60, Y2: 60}, Confidence: 0.8}}, nil
	})
	e := newEvaluator(t, detect.Entry{ClassID: 1, Label: "ToolBox", Detector: toolbox})

	report, err := e.Run(context.Background(), imageDir, labelDir, predDir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Images)
	assert.Equal(t, 1, report.Malformed)
	assert.Equal(t, 1, report.Predictions)
	assert.InDelta(t, 0.5, report.Metrics.MAP, 1e-9)

	bad, err := os.ReadFile(filepath.Join(predDir, "bad.txt"))
	require.NoError(t, err)
	assert.Empty(t, bad)
}

func TestRun_MissingLabelsAndCancellation(t *testing.T) {
	root := t.TempDir()
	imageDir := filepath.Join(root, "images")
	writePNG(t, filepath.Join(imageDir, "a.png"), 10, 10)
	none := detectorFunc(func(image.Image) ([]detect.Candidate, error) { return nil, nil })
	e := newEvaluator(t, detect.Entry{ClassID: 0, Label: "FireExtinguisher", Detector: none})

	report, err := e.Run(context.Background(), imageDir, filepath.Join(root, "labels"), filepath.Join(root, "pred"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.Metrics.MAP)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, imageDir, filepath.Join(root, "labels"), filepath.Join(root, "pred"))
	assert.ErrorIs(t, err, context.Canceled)
}
