package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// Brand palette used for all markers.
var (
	brand     = color.NRGBA{R: 0xFF, G: 0x6B, B: 0x35, A: 0xFF}
	brandFill = color.NRGBA{R: 0xFF, G: 0x6B, B: 0x35, A: 46}  // 18% alpha
	clickDot  = color.NRGBA{R: 0xFF, G: 0x6B, B: 0x35, A: 179} // 70% alpha
	badgeText = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

const (
	boxStroke   = 3
	badgeRadius = 14
	dotRadius   = 8
	ringRadius  = 14
	ringStroke  = 2
)

// Apply decodes a PNG screenshot, draws the element box, click marker and
// step-number badge, and re-encodes it. Coordinates are device pixels,
// matching the captured image.
func Apply(screenshot []byte, stepNumber int, element *guide.ElementInfo, click *guide.Point) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	if element != nil {
		box := rectFromBox(element.BoundingBox)
		fillRect(canvas, box, brandFill)
		strokeRect(canvas, box, boxStroke, brand)
		drawBadge(canvas, box.Min.X, box.Min.Y, stepNumber)
	}

	if click != nil {
		cx, cy := int(click.X), int(click.Y)
		fillCircle(canvas, cx, cy, dotRadius, clickDot)
		strokeCircle(canvas, cx, cy, ringRadius, ringStroke, brand)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

func rectFromBox(b guide.BoundingBox) image.Rectangle {
	return image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height))
}

// fillRect blends c over every pixel of r inside the canvas.
func fillRect(img *image.RGBA, r image.Rectangle, c color.NRGBA) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

// strokeRect draws a border of the given width just inside r.
func strokeRect(img *image.RGBA, r image.Rectangle, width int, c color.NRGBA) {
	top := image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width)
	bottom := image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y)
	left := image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y)
	right := image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y)
	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		fillRect(img, edge, c)
	}
}

func fillCircle(img *image.RGBA, cx, cy, radius int, c color.NRGBA) {
	rr := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= rr {
				blendPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

func strokeCircle(img *image.RGBA, cx, cy, radius, width int, c color.NRGBA) {
	outer := radius * radius
	inner := (radius - width) * (radius - width)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d := dx*dx + dy*dy
			if d <= outer && d >= inner {
				blendPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, c color.NRGBA) {
	if !(image.Point{X: x, Y: y}.In(img.Bounds())) {
		return
	}
	draw.Draw(img, image.Rect(x, y, x+1, y+1), image.NewUniform(c), image.Point{}, draw.Over)
}

// drawBadge places a filled circle with the step number at the top-left
// corner of the element box, clamped so it stays inside the canvas.
func drawBadge(img *image.RGBA, x, y, stepNumber int) {
	cx := x + badgeRadius
	cy := y - badgeRadius
	if cx < badgeRadius+2 {
		cx = badgeRadius + 2
	}
	if cy < badgeRadius+2 {
		cy = badgeRadius + 2
	}

	fillCircle(img, cx, cy, badgeRadius, brand)

	label := strconv.Itoa(stepNumber)
	face := basicfont.Face7x13
	width := font.MeasureString(face, label).Round()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(badgeText),
		Face: face,
		Dot: fixed.P(
			cx-width/2,
			cy+face.Metrics().Ascent.Round()/2,
		),
	}
	d.DrawString(label)
}
