// Package renderer draws the terrain scene with raylib.
package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mod1/camera"
	"github.com/pthm-cable/mod1/particles"
	"github.com/pthm-cable/mod1/terrain"
)

// Field of view of the perspective camera, in degrees.
const fovY = 45

// Camera3D converts the orbit camera into a raylib camera.
func Camera3D(c *camera.Camera) rl.Camera3D {
	return rl.Camera3D{
		Position:   toVector3(c.Position),
		Target:     toVector3(c.Target),
		Up:         toVector3(c.Up),
		Fovy:       fovY,
		Projection: rl.CameraPerspective,
	}
}

// Overlays selects which helper geometry is drawn.
type Overlays struct {
	Wireframe bool
	Bounds    bool
	Axes      bool
	Markers   bool
}

// DefaultOverlays shows everything except the wireframe.
func DefaultOverlays() Overlays {
	return Overlays{Bounds: true, Axes: true, Markers: true}
}

// Scene owns the renderers for one frame of the 3D view.
type Scene struct {
	terrain   *TerrainRenderer
	particles *ParticleRenderer
	bounds    float32

	Overlays Overlays
}

// NewScene creates a scene for a world spanning [-bounds, bounds]³.
func NewScene(bounds float32) *Scene {
	return &Scene{
		terrain:   NewTerrainRenderer(),
		particles: NewParticleRenderer(),
		bounds:    bounds,
		Overlays:  DefaultOverlays(),
	}
}

// SetTerrain replaces the terrain mesh.
func (s *Scene) SetTerrain(m *terrain.Mesh) {
	s.terrain.SetMesh(m)
}

// Draw renders the scene. Must be called between BeginDrawing and EndDrawing.
func (s *Scene) Draw(cam *camera.Camera, ps []particles.Particle, markers []Marker) {
	rl.BeginMode3D(Camera3D(cam))

	s.drawBottom()
	s.terrain.Draw()
	if s.Overlays.Wireframe {
		s.terrain.DrawWireframe()
	}
	s.particles.Draw(ps)
	if s.Overlays.Markers {
		DrawMarkers(markers)
	}
	if s.Overlays.Bounds {
		b := 2 * s.bounds
		rl.DrawCubeWires(rl.Vector3{}, b, b, b, rl.Color{R: 200, G: 200, B: 200, A: 120})
	}
	if s.Overlays.Axes {
		s.drawAxes()
	}

	rl.EndMode3D()
}

// drawBottom fills the floor of the bounding box. Both windings are drawn
// so the floor shows from above and below.
func (s *Scene) drawBottom() {
	b := s.bounds
	c := rl.Color{R: 40, G: 45, B: 55, A: 255}
	p00 := rl.Vector3{X: -b, Y: -b, Z: -b}
	p10 := rl.Vector3{X: b, Y: -b, Z: -b}
	p11 := rl.Vector3{X: b, Y: b, Z: -b}
	p01 := rl.Vector3{X: -b, Y: b, Z: -b}

	rl.DrawTriangle3D(p00, p10, p11, c)
	rl.DrawTriangle3D(p00, p11, p01, c)
	rl.DrawTriangle3D(p00, p11, p10, c)
	rl.DrawTriangle3D(p00, p01, p11, c)
}

func (s *Scene) drawAxes() {
	l := float64(s.bounds) * 1.2
	origin := rl.Vector3{}
	rl.DrawLine3D(origin, toVector3(r3.Vec{X: l}), rl.Red)
	rl.DrawLine3D(origin, toVector3(r3.Vec{Y: l}), rl.Green)
	rl.DrawLine3D(origin, toVector3(r3.Vec{Z: l}), rl.Blue)
}
