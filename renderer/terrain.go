package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mod1/terrain"
)

// Light direction used for flat shading of the terrain faces.
var lightDir = r3.Unit(r3.Vec{X: 0.3, Y: 0.5, Z: 0.8})

// Height color ramp endpoints.
var (
	lowColor  = rl.Color{R: 30, G: 90, B: 50, A: 255}
	highColor = rl.Color{R: 170, G: 140, B: 100, A: 255}
)

// TerrainRenderer draws a triangulated height field.
type TerrainRenderer struct {
	mesh   *terrain.Mesh
	shades []rl.Color // one per triangle
	verts  []rl.Vector3

	wireColor rl.Color
}

// NewTerrainRenderer creates a terrain renderer with no mesh.
func NewTerrainRenderer() *TerrainRenderer {
	return &TerrainRenderer{
		wireColor: rl.Color{R: 220, G: 220, B: 220, A: 90},
	}
}

// SetMesh replaces the drawn mesh and recomputes face colors.
func (r *TerrainRenderer) SetMesh(m *terrain.Mesh) {
	r.mesh = m
	if m == nil {
		r.shades = nil
		r.verts = nil
		return
	}

	r.verts = make([]rl.Vector3, len(m.Vertices))
	lo, hi := 0.0, 0.0
	for i, v := range m.Vertices {
		r.verts[i] = toVector3(v)
		if i == 0 || v.Z < lo {
			lo = v.Z
		}
		if i == 0 || v.Z > hi {
			hi = v.Z
		}
	}

	r.shades = make([]rl.Color, len(m.Triangles))
	for i, tri := range m.Triangles {
		z := (tri.A.Z + tri.B.Z + tri.C.Z) / 3
		r.shades[i] = faceColor(z, lo, hi, tri.Normal)
	}
}

// faceColor picks a ramp color by height and darkens it by the angle to
// the light.
func faceColor(z, lo, hi float64, normal r3.Vec) rl.Color {
	t := 0.5
	if hi > lo {
		t = (z - lo) / (hi - lo)
	}
	base := lerpColor(lowColor, highColor, float32(t))

	lit := r3.Dot(normal, lightDir)
	if lit < 0 {
		lit = 0
	}
	k := float32(0.35 + 0.65*lit)
	return rl.Color{
		R: uint8(float32(base.R) * k),
		G: uint8(float32(base.G) * k),
		B: uint8(float32(base.B) * k),
		A: 255,
	}
}

// Draw renders the filled surface. Triangles wind counter-clockwise seen
// from +z, so raylib's back-face culling hides them from below.
func (r *TerrainRenderer) Draw() {
	if r.mesh == nil {
		return
	}
	for i, tri := range r.mesh.Triangles {
		rl.DrawTriangle3D(toVector3(tri.A), toVector3(tri.B), toVector3(tri.C), r.shades[i])
	}
}

// DrawWireframe renders the grid lines of the mesh.
func (r *TerrainRenderer) DrawWireframe() {
	if r.mesh == nil {
		return
	}
	res := r.mesh.Resolution
	for row := 0; row < res; row++ {
		for col := 0; col < res; col++ {
			v := r.verts[row*res+col]
			if col+1 < res {
				rl.DrawLine3D(v, r.verts[row*res+col+1], r.wireColor)
			}
			if row+1 < res {
				rl.DrawLine3D(v, r.verts[(row+1)*res+col], r.wireColor)
			}
		}
	}
}

func lerpColor(a, b rl.Color, t float32) rl.Color {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return rl.Color{
		R: uint8(float32(a.R) + (float32(b.R)-float32(a.R))*t),
		G: uint8(float32(a.G) + (float32(b.G)-float32(a.G))*t),
		B: uint8(float32(a.B) + (float32(b.B)-float32(a.B))*t),
		A: uint8(float32(a.A) + (float32(b.A)-float32(a.A))*t),
	}
}

func toVector3(v r3.Vec) rl.Vector3 {
	return rl.Vector3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}
