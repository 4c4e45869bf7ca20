// Package geometry maps between screen space and grid space.
//
// A Viewport places the grid under the screen: X and Y are the grid
// coordinates found at the screen's reference corner and Zoom divides the
// cell size, so one grid cell spans CellSize/Zoom screen units.
package geometry

import "math"

type Viewport struct {
	X    float64
	Y    float64
	Zoom float64
}

// Transform holds the constants of the projection. It is a value type and
// every method is pure.
type Transform struct {
	GridSize int
	CellSize float64
	Padding  float64
	MinZoom  float64
	MaxZoom  float64

	// OffsetX and OffsetY letterbox the canvas inside a larger surface.
	OffsetX float64
	OffsetY float64
}

// Scale returns the on-screen size of one cell.
func (t Transform) Scale(v Viewport) float64 {
	return t.CellSize / v.Zoom
}

// ScreenToGrid returns the cell under a screen point. The result may lie
// outside the grid and must be bounds-checked before it is used as an index.
func (t Transform) ScreenToGrid(px, py float64, v Viewport) (int, int) {
	gx, gy := t.ScreenToGridF(px, py, v)
	return int(math.Floor(gx)), int(math.Floor(gy))
}

// ScreenToGridF is ScreenToGrid without the floor.
func (t Transform) ScreenToGridF(px, py float64, v Viewport) (float64, float64) {
	s := t.Scale(v)
	return (px-t.OffsetX)/s + v.X, (py-t.OffsetY)/s + v.Y
}

func (t Transform) GridToScreen(gx, gy float64, v Viewport) (float64, float64) {
	s := t.Scale(v)
	return (gx-v.X)*s + t.OffsetX, (gy-v.Y)*s + t.OffsetY
}

// ClampZoom bounds z to [MinZoom, MaxZoom].
func (t Transform) ClampZoom(z float64) float64 {
	return math.Max(t.MinZoom, math.Min(t.MaxZoom, z))
}

// ZoomAbout scales the zoom by factor while keeping the grid point under
// the anchor fixed on screen. Pan bounds are not applied here: clamping
// the origin would move the anchored point.
func (t Transform) ZoomAbout(v Viewport, anchorPx, anchorPy, factor float64) Viewport {
	gx, gy := t.ScreenToGridF(anchorPx, anchorPy, v)
	zoom := t.ClampZoom(v.Zoom * factor)
	s := t.CellSize / zoom
	return Viewport{
		X:    gx - (anchorPx-t.OffsetX)/s,
		Y:    gy - (anchorPy-t.OffsetY)/s,
		Zoom: zoom,
	}
}

// PanBy moves the viewport by a screen-space delta and clamps each axis to
// the padded bounds independently.
func (t Transform) PanBy(v Viewport, dxPx, dyPx float64) Viewport {
	s := t.Scale(v)
	v.X -= dxPx / s
	v.Y -= dyPx / s
	return t.Clamp(v)
}

// Clamp bounds the origin to [-Padding, N - N/zoom + Padding] per axis.
func (t Transform) Clamp(v Viewport) Viewport {
	lo, hi := t.panBounds(v.Zoom)
	v.X = math.Max(lo, math.Min(hi, v.X))
	v.Y = math.Max(lo, math.Min(hi, v.Y))
	return v
}

func (t Transform) panBounds(zoom float64) (float64, float64) {
	n := float64(t.GridSize)
	lo := -t.Padding
	hi := n - n/zoom + t.Padding
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Centered returns a viewport at the given zoom whose visible grid span is
// centered on the grid.
func (t Transform) Centered(zoom float64) Viewport {
	zoom = t.ClampZoom(zoom)
	n := float64(t.GridSize)
	origin := n/2 - (n/zoom)/2
	return Viewport{X: origin, Y: origin, Zoom: zoom}
}

// Range is a half-open rectangle of grid cells.
type Range struct {
	MinX, MinY int
	MaxX, MaxY int
}

func (r Range) Contains(x, y int) bool {
	return x >= r.MinX && x < r.MaxX && y >= r.MinY && y < r.MaxY
}

// VisibleRange returns the cells a renderer must paint for a surface of
// width w and height h, widened by Padding and cut to the grid.
func (t Transform) VisibleRange(v Viewport, w, h float64) Range {
	s := t.Scale(v)
	n := t.GridSize
	return Range{
		MinX: max(0, int(math.Floor(v.X-t.Padding))),
		MinY: max(0, int(math.Floor(v.Y-t.Padding))),
		MaxX: min(n, int(math.Ceil(v.X+w/s+t.Padding))),
		MaxY: min(n, int(math.Ceil(v.Y+h/s+t.Padding))),
	}
}

// InBounds reports whether (x, y) addresses a cell of the grid.
func (t Transform) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < t.GridSize && y < t.GridSize
}
