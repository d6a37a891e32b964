// Package signature produces signature images: freehand strokes rasterized
// with round caps and joins, or a typed name rendered in an italic face.
//
// Both modes draw onto an opaque white canvas. Save encodes the canvas as a
// PNG data URI, which is the value stored for a signature field.
package signature

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/Shimizu-Technology/sign-tools-api/internal/apperrors"
)

// Canvas sizes used by the signing pages.
const (
	DefaultWidth  = 500
	DefaultHeight = 200
	MobileWidth   = 300
	MobileHeight  = 200

	// StrokeWidth is the pen width in pixels.
	StrokeWidth = 2.0
	// MaxFontSize caps the generated signature size.
	MaxFontSize = 50.0

	// capSegments is how many edges approximate each half of a round cap.
	capSegments = 8
)

var (
	inkColor   = color.Black
	paperColor = color.White
)

// Point is a pointer sample in canvas pixels.
type Point struct {
	X, Y float64
}

func mid(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Canvas is a signature pad. It is not safe for concurrent use.
type Canvas struct {
	img    *image.RGBA
	stroke []Point
	inked  bool
}

// NewCanvas creates a white canvas. Non-positive sizes fall back to the
// default pad size.
func NewCanvas(width, height int) *Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	c := &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	c.Clear()
	return c
}

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Bounds() }

// Empty reports whether nothing has been drawn since the last Clear.
func (c *Canvas) Empty() bool { return !c.inked }

// Image returns the canvas pixels.
func (c *Canvas) Image() image.Image { return c.img }

// Clear repaints the whole canvas opaque white.
func (c *Canvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(paperColor), image.Point{}, draw.Src)
	c.stroke = nil
	c.inked = false
}

// BeginStroke starts a new stroke at p.
func (c *Canvas) BeginStroke(p Point) {
	c.stroke = []Point{p}
}

// AddPoint extends the current stroke. The ink between samples is a
// quadratic curve through the midpoints of consecutive samples, with the
// sample itself as the control point.
func (c *Canvas) AddPoint(p Point) {
	if c.stroke == nil {
		c.BeginStroke(p)
		return
	}
	n := len(c.stroke)
	prev := c.stroke[n-1]
	if n == 1 {
		c.drawPolyline([]Point{prev, mid(prev, p)})
	} else {
		c.drawPolyline(flattenQuad(mid(c.stroke[n-2], prev), prev, mid(prev, p)))
	}
	c.stroke = append(c.stroke, p)
}

// EndStroke finishes the current stroke, drawing its tail. A stroke with a
// single sample leaves a dot.
func (c *Canvas) EndStroke() {
	switch n := len(c.stroke); {
	case n == 1:
		c.drawPolyline([]Point{c.stroke[0], c.stroke[0]})
	case n > 1:
		c.drawPolyline([]Point{mid(c.stroke[n-2], c.stroke[n-1]), c.stroke[n-1]})
	}
	c.stroke = nil
}

// DrawStrokes replays complete strokes, as sent by a client that captured
// them locally.
func (c *Canvas) DrawStrokes(strokes [][]Point) {
	for _, s := range strokes {
		if len(s) == 0 {
			continue
		}
		c.BeginStroke(s[0])
		for _, p := range s[1:] {
			c.AddPoint(p)
		}
		c.EndStroke()
	}
}

// flattenQuad samples a quadratic Bézier into line segments.
func flattenQuad(p0, ctrl, p1 Point) []Point {
	length := math.Hypot(ctrl.X-p0.X, ctrl.Y-p0.Y) + math.Hypot(p1.X-ctrl.X, p1.Y-ctrl.Y)
	steps := int(math.Ceil(length / 2))
	if steps < 2 {
		steps = 2
	}
	pts := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		pts = append(pts, Point{
			X: u*u*p0.X + 2*u*t*ctrl.X + t*t*p1.X,
			Y: u*u*p0.Y + 2*u*t*ctrl.Y + t*t*p1.Y,
		})
	}
	return pts
}

// drawPolyline inks a path of round-capped segments. Overlapping capsules
// share one orientation, so the rasterizer's coverage saturates instead of
// cancelling where they meet, which gives round joins.
func (c *Canvas) drawPolyline(pts []Point) {
	if len(pts) == 0 {
		return
	}
	half := StrokeWidth / 2
	minX, minY, maxX, maxY := pts[0].X, pts[0].Y, pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	box := image.Rect(
		int(math.Floor(minX-half))-1, int(math.Floor(minY-half))-1,
		int(math.Ceil(maxX+half))+1, int(math.Ceil(maxY+half))+1,
	).Intersect(c.img.Bounds())
	if box.Empty() {
		return
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	off := Point{X: float64(box.Min.X), Y: float64(box.Min.Y)}
	for i := 1; i < len(pts); i++ {
		addCapsule(z, pts[i-1], pts[i], half, off)
	}
	if len(pts) == 1 {
		addCapsule(z, pts[0], pts[0], half, off)
	}
	z.Draw(c.img, box, image.NewUniform(inkColor), image.Point{})
	c.inked = true
}

// addCapsule adds the outline of a segment with semicircular ends.
func addCapsule(z *vector.Rasterizer, a, b Point, r float64, off Point) {
	theta := math.Atan2(b.Y-a.Y, b.X-a.X)
	vertex := func(center Point, angle float64) (float32, float32) {
		return float32(center.X + r*math.Cos(angle) - off.X), float32(center.Y + r*math.Sin(angle) - off.Y)
	}

	z.MoveTo(vertex(a, theta+math.Pi/2))
	for i := 1; i <= capSegments; i++ {
		z.LineTo(vertex(a, theta+math.Pi/2+math.Pi*float64(i)/capSegments))
	}
	for i := 0; i <= capSegments; i++ {
		z.LineTo(vertex(b, theta-math.Pi/2+math.Pi*float64(i)/capSegments))
	}
	z.ClosePath()
}

var (
	italicOnce sync.Once
	italicFont *opentype.Font
	italicErr  error
)

func loadItalic() (*opentype.Font, error) {
	italicOnce.Do(func() {
		italicFont, italicErr = opentype.Parse(goitalic.TTF)
	})
	return italicFont, italicErr
}

// FontSize is the generated-signature size for name on a canvas of the
// given width: min(50, width / (len * 0.7)), so long names shrink to fit.
func FontSize(name string, width int) float64 {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return MaxFontSize
	}
	return math.Min(MaxFontSize, float64(width)/(float64(n)*0.7))
}

// Face returns the italic face used for generated signatures at size points.
func Face(size float64) (font.Face, error) {
	f, err := loadItalic()
	if err != nil {
		return nil, fmt.Errorf("failed to parse italic font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Generate clears the canvas and renders name in the italic face, centred
// horizontally and vertically centred on the middle of the canvas.
func (c *Canvas) Generate(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.Validation("enter a name to generate a signature")
	}

	b := c.img.Bounds()
	face, err := Face(FontSize(name, b.Dx()))
	if err != nil {
		return err
	}
	defer face.Close()

	c.Clear()
	width := font.MeasureString(face, name)
	m := face.Metrics()
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(inkColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(b.Dx()/2) - width/2,
			Y: fixed.I(b.Dy()/2) + (m.Ascent-m.Descent)/2,
		},
	}
	d.DrawString(name)
	c.inked = true
	return nil
}

// Save composites the canvas onto white and encodes it as a PNG data URI.
func (c *Canvas) Save() (string, error) {
	out := image.NewRGBA(c.img.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(paperColor), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), c.img, c.img.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return "", fmt.Errorf("failed to encode signature: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
