package detect

import "fmt"

const (
	// DefaultInputSize is the square input edge used by the exported models.
	DefaultInputSize = 640
	// DefaultModelConfidence is the per-model score floor applied while decoding.
	DefaultModelConfidence = 0.25
	// DefaultModelIoU is the per-model NMS threshold applied while decoding.
	DefaultModelIoU = 0.7
)

// YOLOConfig describes how to decode a YOLOv8 detection head.
type YOLOConfig struct {
	InputSize  int
	NumClasses int
	Confidence float64
	IoU        float64
}

// DefaultYOLOConfig returns the decoding settings for a single-class 640px model.
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		InputSize:  DefaultInputSize,
		NumClasses: 1,
		Confidence: DefaultModelConfidence,
		IoU:        DefaultModelIoU,
	}
}

// AnchorCount returns the number of prediction slots for a square input of the given size.
func AnchorCount(inputSize int) int {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		total += side * side
	}
	return total
}

// OutputLen returns the expected flat length of the [1, 4+nc, N] output tensor.
func (c YOLOConfig) OutputLen() int {
	return (4 + c.NumClasses) * AnchorCount(c.InputSize)
}

// DecodeYOLO turns a channel-major YOLOv8 output into candidates in image pixel
// coordinates. Boxes are scaled from the model input back to imgWidth x imgHeight.
func DecodeYOLO(output []float32, cfg YOLOConfig, imgWidth, imgHeight int) ([]Candidate, error) {
	if cfg.NumClasses < 1 || cfg.InputSize <= 0 {
		return nil, fmt.Errorf("%w: invalid decoder config %+v", ErrMalformedOutput, cfg)
	}
	n := AnchorCount(cfg.InputSize)
	if len(output) != cfg.OutputLen() {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrMalformedOutput, len(output), cfg.OutputLen())
	}

	scaleX := float64(imgWidth) / float64(cfg.InputSize)
	scaleY := float64(imgHeight) / float64(cfg.InputSize)

	var cands []Candidate
	for i := 0; i < n; i++ {
		var best float32
		for c := 0; c < cfg.NumClasses; c++ {
			if score := output[n*(c+4)+i]; score > best {
				best = score
			}
		}
		if float64(best) <= cfg.Confidence {
			continue
		}

		xc := float64(output[i])
		yc := float64(output[n+i])
		w := float64(output[2*n+i])
		h := float64(output[3*n+i])

		cands = append(cands, Candidate{
			Box: Box{
				X1: clamp((xc-w/2)*scaleX, float64(imgWidth)),
				Y1: clamp((yc-h/2)*scaleY, float64(imgHeight)),
				X2: clamp((xc+w/2)*scaleX, float64(imgWidth)),
				Y2: clamp((yc+h/2)*scaleY, float64(imgHeight)),
			},
			Confidence: float64(best),
		})
	}

	return SuppressCandidates(cands, cfg.IoU), nil
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
