// Package geometry projects text fragments from a page's native coordinate
// space into the uniform space used by row clustering and word bounding boxes:
// origin at the top-left, X to the right, Y increasing downward.
package geometry

import "math"

// Origin names the corner a page's native coordinates are measured from.
type Origin string

const (
	// OriginTopLeft is the screen convention; Y already grows downward.
	OriginTopLeft Origin = "top-left"
	// OriginBottomLeft is the PDF user-space convention; Y grows upward.
	OriginBottomLeft Origin = "bottom-left"
)

// Transform maps native page coordinates to the viewport.
type Transform struct {
	// Scale multiplies every coordinate and length. Zero means 1.
	Scale float64
	// PageHeight is the native page height, needed to flip bottom-left origins.
	PageHeight float64
	// Origin is the native coordinate origin. Empty means top-left.
	Origin Origin
	// OffsetX and OffsetY translate the result after scaling.
	OffsetX float64
	OffsetY float64
}

// Identity is the transform for fragments already in viewport space.
var Identity = Transform{Scale: 1, Origin: OriginTopLeft}

// TextFragment is one positioned text run as supplied by a document decoder.
// (X, Y) is the baseline anchor in native coordinates; a fragment may hold
// several whitespace-separated words.
type TextFragment struct {
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Fragment is a TextFragment projected into viewport space.
type Fragment struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// BBox is [x0, y0, x1, y1] in viewport space.
type BBox [4]float64

// Normalize orders the corners so that x0 <= x1 and y0 <= y1.
func (b BBox) Normalize() BBox {
	if b[0] > b[2] {
		b[0], b[2] = b[2], b[0]
	}
	if b[1] > b[3] {
		b[1], b[3] = b[3], b[1]
	}
	return b
}

func (t Transform) scale() float64 {
	if t.Scale == 0 {
		return 1
	}
	return t.Scale
}

// Project maps a native point to viewport coordinates.
func (t Transform) Project(x, y float64) (float64, float64) {
	s := t.scale()
	if t.Origin == OriginBottomLeft {
		y = t.PageHeight - y
	}
	return x*s + t.OffsetX, y*s + t.OffsetY
}

// Length scales a native width or height.
func (t Transform) Length(l float64) float64 {
	return l * math.Abs(t.scale())
}

// ProjectFragment projects a single fragment.
func (t Transform) ProjectFragment(f TextFragment) Fragment {
	x, y := t.Project(f.X, f.Y)
	return Fragment{
		Text:   f.Text,
		X:      x,
		Y:      y,
		Width:  t.Length(f.Width),
		Height: t.Length(f.Height),
	}
}

// ProjectAll projects fragments in input order.
func (t Transform) ProjectAll(fragments []TextFragment) []Fragment {
	out := make([]Fragment, len(fragments))
	for i, f := range fragments {
		out[i] = t.ProjectFragment(f)
	}
	return out
}

// Finite reports whether every numeric field of f is a finite number.
func (f TextFragment) Finite() bool {
	for _, v := range [...]float64{f.X, f.Y, f.Width, f.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
