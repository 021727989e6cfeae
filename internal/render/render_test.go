package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"safetyvision/internal/detect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grey(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func TestDraw_UsesClassColour(t *testing.T) {
	dets := []detect.Detection{
		{Label: "FireExtinguisher", Confidence: 0.9, Box: detect.Box{X1: 10, Y1: 30, X2: 40, Y2: 60}},
		{Label: "Wrench", Confidence: 0.7, Box: detect.Box{X1: 50, Y1: 30, X2: 90, Y2: 90}},
	}

	out := Draw(grey(100, 100), dets)

	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(10, 45))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(11, 45))
	assert.Equal(t, color.RGBA{G: 255, B: 255, A: 255}, out.RGBAAt(70, 90))
	// interior untouched
	assert.Equal(t, color.RGBA{R: 128, G: 128, B: 128, A: 255}, out.RGBAAt(25, 50))
}

func TestDraw_DoesNotModifySource(t *testing.T) {
	src := grey(20, 20)
	Draw(src, []detect.Detection{{Label: "ToolBox", Box: detect.Box{X1: 0, Y1: 0, X2: 19, Y2: 19}}})

	assert.Equal(t, color.RGBA{R: 128, G: 128, B: 128, A: 255}, src.RGBAAt(0, 0))
}

func TestDrawer_AnnotateReturnsPNG(t *testing.T) {
	data, err := Drawer{}.Annotate(grey(32, 16), nil)
	require.NoError(t, err)

	img, format, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, grey(8, 8), nil))

	_, format, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	_, _, err = DecodeImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "OxygenTank 0.86", Caption(detect.Detection{Label: "OxygenTank", Confidence: 0.857}))
}
