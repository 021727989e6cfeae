package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"safetyvision/internal/detect"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Thickness is the rectangle border width in pixels.
const Thickness = 2

// ErrUnsupportedImage is returned for payloads no registered decoder accepts.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Annotator draws detections onto an image and returns it PNG encoded.
type Annotator interface {
	Annotate(img image.Image, dets []detect.Detection) ([]byte, error)
}

// Caption is the text drawn above a box.
func Caption(d detect.Detection) string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

// DecodeImage decodes any registered format (png, jpeg, gif, bmp, tiff, webp).
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedImage
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Drawer is the pure-Go Annotator using the 7x13 bitmap font.
type Drawer struct{}

// Annotate implements Annotator.
func (Drawer) Annotate(img image.Image, dets []detect.Detection) ([]byte, error) {
	return EncodePNG(Draw(img, dets))
}

// Draw returns an RGBA copy of img with every detection outlined in its class colour.
func Draw(img image.Image, dets []detect.Detection) *image.RGBA {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	for _, d := range dets {
		col := detect.ClassColor(d.Label)
		r := d.Box.Rect()
		drawRect(canvas, r, col)
		drawCaption(canvas, r, Caption(d), col)
	}
	return canvas
}

func drawRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	bounds := img.Bounds()
	setPixel := func(x, y int) {
		if (image.Point{X: x, Y: y}).In(bounds) {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < Thickness; t++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			setPixel(x, r.Min.Y+t)
			setPixel(x, r.Max.Y-t)
		}
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			setPixel(r.Min.X+t, y)
			setPixel(r.Max.X-t, y)
		}
	}
}

// drawCaption writes text just above the box, or inside it when the box touches the top edge.
func drawCaption(img *image.RGBA, r image.Rectangle, text string, col color.Color) {
	face := basicfont.Face7x13
	baseline := r.Min.Y - 5
	if baseline-face.Ascent < 0 {
		baseline = r.Min.Y + face.Ascent + Thickness
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(r.Min.X, baseline),
	}
	d.DrawString(text)
}
