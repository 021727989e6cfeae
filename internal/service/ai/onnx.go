package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"safetyvision/internal/detect"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitONNXRuntime loads the shared library once per process. An empty path
// keeps the library's platform default.
func InitONNXRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ORTDetector runs a YOLOv8 ONNX model with ONNX Runtime.
type ORTDetector struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	cfg     detect.YOLOConfig
	mu      sync.Mutex // the tensors are reused between runs
}

// NewORTDetector creates a single-threaded session bound to fixed input/output tensors.
func NewORTDetector(modelPath string, cfg detect.YOLOConfig) (*ORTDetector, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", detect.ErrModelNotFound, modelPath)
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewTensor(ort.NewShape(1, 3, size, size), make([]float32, 3*size*size))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+cfg.NumClasses), int64(detect.AnchorCount(cfg.InputSize))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()
	options.SetIntraOpNumThreads(1)
	options.SetInterOpNumThreads(1)

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	return &ORTDetector{session: session, input: input, output: output, cfg: cfg}, nil
}

// Detect implements detect.Detector.
func (d *ORTDetector) Detect(img image.Image) ([]detect.Candidate, error) {
	bounds := img.Bounds()

	d.mu.Lock()
	defer d.mu.Unlock()

	fillInput(d.input.GetData(), img, d.cfg.InputSize)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	out := make([]float32, len(d.output.GetData()))
	copy(out, d.output.GetData())
	return detect.DecodeYOLO(out, d.cfg, bounds.Dx(), bounds.Dy())
}

// Close destroys the session and its tensors.
func (d *ORTDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	return err
}

// fillInput resizes img to size x size and writes it as planar RGB in [0,1].
func fillInput(dst []float32, img image.Image, size int) {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	rb := resized.Bounds()
	stride := size * size
	idx := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			dst[idx] = float32(r>>8) / 255.0
			dst[stride+idx] = float32(g>>8) / 255.0
			dst[2*stride+idx] = float32(b>>8) / 255.0
			idx++
		}
	}
}
