package ai

import (
	"fmt"
	"image"

	"safetyvision/internal/detect"
	"safetyvision/internal/render"

	"gocv.io/x/gocv"
)

// CVAnnotator draws detections with OpenCV primitives.
type CVAnnotator struct{}

// Annotate implements render.Annotator.
func (CVAnnotator) Annotate(img image.Image, dets []detect.Detection) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	for _, d := range dets {
		col := detect.ClassColor(d.Label)
		rect := d.Box.Rect()
		if err := gocv.Rectangle(&mat, rect, col, render.Thickness); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		pt := image.Pt(rect.Min.X, rect.Min.Y-5)
		if pt.Y < 12 {
			pt.Y = rect.Min.Y + 15
		}
		if err := gocv.PutText(&mat, render.Caption(d), pt, gocv.FontHersheySimplex, 0.5, col, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
