package detect

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"math"
)

var (
	// ErrMalformedOutput is returned when a model output tensor does not match the expected shape.
	ErrMalformedOutput = errors.New("malformed model output")
	// ErrModelNotFound is returned when a weights file for a class is missing.
	ErrModelNotFound = errors.New("model weights not found")
)

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width of the box, never negative.
func (b Box) Width() float64 {
	return math.Max(0, b.X2-b.X1)
}

// Height of the box, never negative.
func (b Box) Height() float64 {
	return math.Max(0, b.Y2-b.Y1)
}

// Area of the box.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// Rect rounds the box down to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// IoU returns the intersection-over-union of two boxes. Degenerate pairs yield 0.
func IoU(a, b Box) float64 {
	ix1 := math.Max(a.X1, b.X1)
	iy1 := math.Max(a.Y1, b.Y1)
	ix2 := math.Min(a.X2, b.X2)
	iy2 := math.Min(a.Y2, b.Y2)

	inter := math.Max(0, ix2-ix1) * math.Max(0, iy2-iy1)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Candidate is a raw single-class detector output before it is tagged with a class.
type Candidate struct {
	Box        Box
	Confidence float64
}

// Detection is a tagged, immutable detection result.
type Detection struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"class"`
	Confidence float64 `json:"conf"`
	Box        Box     `json:"-"`
}

// Normalized converts the box to YOLO label convention (centre x, centre y, width, height in [0,1]).
func (d Detection) Normalized(imgWidth, imgHeight int) (xc, yc, w, h float64) {
	if imgWidth <= 0 || imgHeight <= 0 {
		return 0, 0, 0, 0
	}
	fw, fh := float64(imgWidth), float64(imgHeight)
	xc = (d.Box.X1 + d.Box.X2) / 2 / fw
	yc = (d.Box.Y1 + d.Box.Y2) / 2 / fh
	w = d.Box.Width() / fw
	h = d.Box.Height() / fh
	return xc, yc, w, h
}

// Detector runs one single-class model over an image.
type Detector interface {
	io.Closer
	Detect(img image.Image) ([]Candidate, error)
}

// MarshalJSON writes the box as a [x1, y1, x2, y2] array, the shape dashboard clients read.
func (d Detection) MarshalJSON() ([]byte, error) {
	type Alias Detection
	return json.Marshal(&struct {
		Box [4]float64 `json:"box"`
		Alias
	}{
		Box:   [4]float64{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2},
		Alias: (Alias)(d),
	})
}
