package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidesnap/guidesnap/internal/guide"
)

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

var white = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

func TestApply_ElementBox(t *testing.T) {
	raw := whitePNG(t, 120, 100)

	el := &guide.ElementInfo{
		Tag:         "button",
		BoundingBox: guide.BoundingBox{X: 10, Y: 30, Width: 60, Height: 30},
	}
	out, err := Apply(raw, 3, el, nil)
	require.NoError(t, err)

	img := decode(t, out)
	assert.Equal(t, image.Rect(0, 0, 120, 100), img.Bounds(), "dimensions preserved")

	// Border stroke is fully opaque brand orange.
	assert.Equal(t, brand, nrgbaAt(img, 11, 31))

	// Interior picks up the translucent fill: no longer white, not solid.
	inner := nrgbaAt(img, 40, 45)
	assert.NotEqual(t, white, inner)
	assert.NotEqual(t, brand, inner)

	// Badge circle sits at the element's top-left corner.
	assert.Equal(t, brand, nrgbaAt(img, 14, 16))

	// Far corner untouched.
	assert.Equal(t, white, nrgbaAt(img, 115, 95))
}

func TestApply_ClickMarker(t *testing.T) {
	raw := whitePNG(t, 100, 80)

	out, err := Apply(raw, 1, nil, &guide.Point{X: 50, Y: 40})
	require.NoError(t, err)

	img := decode(t, out)

	// Outer ring is fully opaque brand orange.
	assert.Equal(t, brand, nrgbaAt(img, 50, 27))

	// Dot center is a translucent blend over white.
	center := nrgbaAt(img, 50, 40)
	assert.NotEqual(t, white, center)
	assert.NotEqual(t, brand, center)

	assert.Equal(t, white, nrgbaAt(img, 5, 5))
}

func TestApply_NoMarkersPassesThrough(t *testing.T) {
	raw := whitePNG(t, 40, 40)

	out, err := Apply(raw, 1, nil, nil)
	require.NoError(t, err)

	img := decode(t, out)
	assert.Equal(t, white, nrgbaAt(img, 20, 20))
}

func TestApply_ClampsOutOfBoundsMarkers(t *testing.T) {
	raw := whitePNG(t, 60, 60)

	// Element partially outside the canvas; click beyond the edge.
	el := &guide.ElementInfo{
		BoundingBox: guide.BoundingBox{X: -20, Y: -10, Width: 200, Height: 200},
	}
	out, err := Apply(raw, 12, el, &guide.Point{X: 300, Y: 300})
	require.NoError(t, err)

	img := decode(t, out)
	assert.Equal(t, image.Rect(0, 0, 60, 60), img.Bounds())
}

func TestApply_RejectsInvalidPNG(t *testing.T) {
	_, err := Apply([]byte("not a png"), 1, nil, nil)
	require.Error(t, err)
}
