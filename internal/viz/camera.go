package viz

import (
	"math"

	"github.com/san-kum/neonportal/internal/dynamo"
)

const (
	DefaultFOV       = 55.0 // degrees
	DefaultDistance  = 14.0
	DefaultSmoothing = 6.0 // per second
	nearPlane        = 0.1
)

// View selects a window's slice of a larger virtual frame. The full frame
// spans every live window; the offset and size pick this window's part of
// it, giving an off-axis projection per window.
type View struct {
	FullWidth, FullHeight float64
	OffsetX, OffsetY      float64
	Width, Height         float64
}

func (v View) lerp(o View, a float64) View {
	mix := func(x, y float64) float64 { return x + (y-x)*a }
	return View{
		FullWidth:  mix(v.FullWidth, o.FullWidth),
		FullHeight: mix(v.FullHeight, o.FullHeight),
		OffsetX:    mix(v.OffsetX, o.OffsetX),
		OffsetY:    mix(v.OffsetY, o.OffsetY),
		Width:      mix(v.Width, o.Width),
		Height:     mix(v.Height, o.Height),
	}
}

// ViewCamera projects world points into window-local pixels.
//
// In multi-window mode the z=0 plane maps at PixelsPerUnit so that a core
// placed from a window's screen center lands on that window's center. In
// single-window mode it is a symmetric perspective with FOV and Distance.
type ViewCamera struct {
	FOV           float64 // radians
	Distance      float64
	PixelsPerUnit float64
	Smoothing     float64

	multi   bool
	primed  bool
	current View
	target  View
}

func NewViewCamera(pixelsPerUnit float64) *ViewCamera {
	return &ViewCamera{
		FOV:           DefaultFOV * math.Pi / 180,
		Distance:      DefaultDistance,
		PixelsPerUnit: pixelsPerUnit,
		Smoothing:     DefaultSmoothing,
	}
}

// SetSingle switches to a symmetric perspective filling width x height.
func (c *ViewCamera) SetSingle(width, height float64) {
	v := View{FullWidth: width, FullHeight: height, Width: width, Height: height}
	c.multi = false
	c.current, c.target, c.primed = v, v, true
}

// SetOffset aims the camera at v. The first target after a mode switch is
// applied immediately; later ones are eased in by Update.
func (c *ViewCamera) SetOffset(v View) {
	if !c.multi || !c.primed {
		c.current = v
		c.primed = true
	}
	c.multi = true
	c.target = v
}

func (c *ViewCamera) Multi() bool  { return c.multi }
func (c *ViewCamera) View() View   { return c.current }
func (c *ViewCamera) Target() View { return c.target }

// Update eases the current view toward the target at rate Smoothing.
func (c *ViewCamera) Update(dt float64) {
	if c.Smoothing <= 0 {
		c.current = c.target
		return
	}
	if dt <= 0 {
		return
	}
	c.current = c.current.lerp(c.target, 1-math.Exp(-c.Smoothing*dt))
}

// Project maps p to window-local pixels. depth is the distance from the
// camera along the view axis; ok is false at or behind the near plane.
func (c *ViewCamera) Project(p dynamo.Vec3) (x, y, depth float64, ok bool) {
	depth = c.Distance - p.Z
	if depth <= nearPlane {
		return 0, 0, depth, false
	}

	v := c.current
	var focal float64
	if c.multi {
		focal = c.PixelsPerUnit * c.Distance
	} else {
		focal = (v.FullHeight / 2) / math.Tan(c.FOV/2)
	}

	s := focal / depth
	x = v.FullWidth/2 + p.X*s - v.OffsetX
	y = v.FullHeight/2 - p.Y*s - v.OffsetY
	return x, y, depth, true
}

// Visible reports whether window-local (x, y) falls inside the view.
func (c *ViewCamera) Visible(x, y float64) bool {
	return x >= 0 && y >= 0 && x < c.current.Width && y < c.current.Height
}
