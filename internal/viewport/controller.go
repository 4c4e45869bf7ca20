// Package viewport turns pointer and wheel input into viewport changes and
// cursor broadcasts.
package viewport

import (
	"math"

	"github.com/a-essam23/go-place/pkg/geometry"
)

const (
	DefaultClickThreshold = 5
	DefaultZoomStep       = 1.1
)

// CursorPublisher is the part of the session manager the controller needs.
type CursorPublisher interface {
	Connected() bool
	PublishPresence(gx, gy float64) bool
}

type Options struct {
	// ClickThreshold is how far, in screen units, the pointer may travel
	// between down and up and still count as a click.
	ClickThreshold float64
	ZoomStep       float64
}

// Controller must be driven from the engine loop.
type Controller struct {
	transform geometry.Transform
	view      geometry.Viewport
	publisher CursorPublisher
	threshold float64
	zoomStep  float64

	modifier     bool
	down         bool
	dragging     bool
	clickPending bool
	downX, downY float64
	lastX, lastY float64
}

func NewController(t geometry.Transform, initial geometry.Viewport, pub CursorPublisher, opts Options) *Controller {
	if opts.ClickThreshold <= 0 {
		opts.ClickThreshold = DefaultClickThreshold
	}
	if opts.ZoomStep <= 1 {
		opts.ZoomStep = DefaultZoomStep
	}
	return &Controller{
		transform: t,
		view:      t.Clamp(initial),
		publisher: pub,
		threshold: opts.ClickThreshold,
		zoomStep:  opts.ZoomStep,
	}
}

func (c *Controller) Viewport() geometry.Viewport {
	return c.view
}

func (c *Controller) Transform() geometry.Transform {
	return c.transform
}

// SetModifier records whether the pan modifier is held. Releasing it ends
// a drag in progress.
func (c *Controller) SetModifier(held bool) {
	c.modifier = held
	if !held {
		c.dragging = false
	}
}

// PointerDown starts a drag when the modifier is held and otherwise arms a
// click.
func (c *Controller) PointerDown(px, py float64) {
	c.down = true
	c.dragging = c.modifier
	c.clickPending = !c.dragging
	c.downX, c.downY = px, py
	c.lastX, c.lastY = px, py
}

// PointerMove broadcasts the cursor and, independently, pans while dragging.
func (c *Controller) PointerMove(px, py float64) {
	if c.down {
		if c.clickPending && math.Hypot(px-c.downX, py-c.downY) > c.threshold {
			c.clickPending = false
		}
		if c.dragging {
			c.view = c.transform.PanBy(c.view, px-c.lastX, py-c.lastY)
		}
	}
	c.lastX, c.lastY = px, py
	c.publishCursor(px, py)
}

// PointerUp ends the gesture. ok is true when it was a click; the returned
// cell may lie outside the grid.
func (c *Controller) PointerUp(px, py float64) (gx, gy int, ok bool) {
	click := c.down && c.clickPending && math.Hypot(px-c.downX, py-c.downY) <= c.threshold
	c.down = false
	c.dragging = false
	c.clickPending = false
	if !click {
		return 0, 0, false
	}
	gx, gy = c.transform.ScreenToGrid(px, py, c.view)
	return gx, gy, true
}

// Wheel zooms about the pointer. A positive deltaY zooms by 1/step and a
// negative one by step. The cursor is republished because the grid point
// under the pointer changed.
func (c *Controller) Wheel(px, py, deltaY float64) {
	var factor float64
	switch {
	case deltaY > 0:
		factor = 1 / c.zoomStep
	case deltaY < 0:
		factor = c.zoomStep
	default:
		return
	}
	c.view = c.transform.ZoomAbout(c.view, px, py, factor)
	c.lastX, c.lastY = px, py
	c.publishCursor(px, py)
}

func (c *Controller) publishCursor(px, py float64) {
	if c.publisher == nil || !c.publisher.Connected() {
		return
	}
	gx, gy := c.transform.ScreenToGridF(px, py, c.view)
	c.publisher.PublishPresence(gx, gy)
}
