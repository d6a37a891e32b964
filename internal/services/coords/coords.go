// Package coords maps points between the three coordinate systems a field
// position passes through:
//
//   - screen space: pointer coordinates, scaled by the current zoom, top-left origin
//   - document space: unscaled pixels at 100% zoom, top-left origin, per page
//   - PDF space: unscaled points, bottom-left origin (the PDF page's own system)
//
// Stored positions are always document space, which keeps them independent
// of whatever zoom the operator happened to be using. The PDF flip is applied
// exactly once, when stamping.
package coords

import (
	"fmt"
	"math"
)

// Zoom limits for the placement editor.
const (
	MinScale  = 0.5
	MaxScale  = 2.0
	ScaleStep = 0.1
)

// Point is an (x, y) pair in whichever space the caller is working in.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScreenToDocument is the inverse of the rendering transform:
// ((pointer - origin) / scale). Every placement and drag goes through it.
func ScreenToDocument(pointer, origin Point, scale float64) (Point, error) {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return Point{}, fmt.Errorf("invalid scale %v", scale)
	}
	return Point{
		X: (pointer.X - origin.X) / scale,
		Y: (pointer.Y - origin.Y) / scale,
	}, nil
}

// DocumentToScreen is the rendering transform: where a stored position
// appears on screen at the given zoom.
func DocumentToScreen(doc, origin Point, scale float64) Point {
	return Point{
		X: doc.X*scale + origin.X,
		Y: doc.Y*scale + origin.Y,
	}
}

// DocumentToPDF flips the vertical axis for a page of the given height.
// The flip is its own inverse.
func DocumentToPDF(doc Point, pageHeight float64) Point {
	return Point{X: doc.X, Y: pageHeight - doc.Y}
}

// ClampScale bounds a zoom level to [MinScale, MaxScale] and snaps it to
// ScaleStep increments, so repeated zoom in/out never drifts.
func ClampScale(scale float64) float64 {
	if math.IsNaN(scale) {
		return 1
	}
	snapped := math.Round(scale/ScaleStep) * ScaleStep
	snapped = math.Round(snapped*10) / 10
	return math.Max(MinScale, math.Min(MaxScale, snapped))
}
