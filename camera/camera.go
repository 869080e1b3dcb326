// Package camera provides an orbit camera around the terrain.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera orbits Target at BaseDistance/Zoom with +z up.
type Camera struct {
	Position r3.Vec
	Target   r3.Vec
	Up       r3.Vec

	// Rotation is the azimuth about the up axis, in degrees.
	Rotation float64

	// Zoom level (1.0 = base distance, 2.0 = half the distance)
	Zoom float64

	BaseDistance float64

	// Zoom constraints
	MinZoom, MaxZoom float64
}

// Defaults for a new camera.
const (
	DefaultRotation = 45.0
	DefaultDistance = 5.0
)

// New creates a camera on the (1,1,1) diagonal looking at the origin.
func New() *Camera {
	c := &Camera{}
	c.Reset()
	return c
}

// Reset returns the camera to the default position and zoom.
func (c *Camera) Reset() {
	c.Position = r3.Vec{X: 3, Y: 3, Z: 3}
	c.Target = r3.Vec{}
	c.Up = r3.Vec{Z: 1}
	c.Rotation = DefaultRotation
	c.Zoom = 1
	c.BaseDistance = DefaultDistance
	c.MinZoom = 0.1
	c.MaxZoom = 10
	c.UpdatePosition()
}

// Distance is the current orbit radius.
func (c *Camera) Distance() float64 {
	return c.BaseDistance / c.Zoom
}

// UpdatePosition places the camera on its orbit, keeping the current
// elevation angle above the target.
func (c *Camera) UpdatePosition() {
	rel := r3.Sub(c.Position, c.Target)
	elevation := math.Atan2(rel.Z, math.Hypot(rel.X, rel.Y))
	azimuth := c.Rotation * math.Pi / 180
	d := c.Distance()

	c.Position = r3.Add(c.Target, r3.Vec{
		X: d * math.Cos(elevation) * math.Cos(azimuth),
		Y: d * math.Cos(elevation) * math.Sin(azimuth),
		Z: d * math.Sin(elevation),
	})
}

// Basis returns the unit forward, right and up vectors of the view.
func (c *Camera) Basis() (forward, right, up r3.Vec) {
	forward = r3.Unit(r3.Sub(c.Target, c.Position))
	right = r3.Unit(r3.Cross(forward, c.Up))
	up = r3.Cross(right, forward)
	return forward, right, up
}

// MoveRelative translates the eye along its own axes. The target stays put.
func (c *Camera) MoveRelative(forward, right, up float64) {
	f, r, u := c.Basis()
	delta := r3.Add(r3.Add(r3.Scale(forward, f), r3.Scale(right, r)), r3.Scale(up, u))
	c.Position = r3.Add(c.Position, delta)
}

// Rotate changes the azimuth by deg degrees and re-places the camera.
func (c *Camera) Rotate(deg float64) {
	c.Rotation = math.Mod(c.Rotation+deg, 360)
	if c.Rotation < 0 {
		c.Rotation += 360
	}
	c.UpdatePosition()
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float64) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
	c.UpdatePosition()
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float64) {
	c.SetZoom(c.Zoom * factor)
}

// clamp restricts a value to a range.
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
