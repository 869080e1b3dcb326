package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/mod1/particles"
)

// Speed at which particles reach the hot end of the color ramp.
const hotSpeed = 3.0

var (
	slowColor = rl.Color{R: 70, G: 140, B: 230, A: 255}
	fastColor = rl.Color{R: 240, G: 90, B: 60, A: 255}
)

// ParticleRenderer renders simulated particles as spheres.
type ParticleRenderer struct {
	rings, slices int32
}

// NewParticleRenderer creates a new particle renderer.
func NewParticleRenderer() *ParticleRenderer {
	return &ParticleRenderer{rings: 6, slices: 8}
}

// Draw renders all particles, colored by speed.
func (r *ParticleRenderer) Draw(ps []particles.Particle) {
	for i := range ps {
		p := &ps[i]
		color := lerpColor(slowColor, fastColor, p.Speed()/hotSpeed)
		pos := rl.Vector3{X: p.Position[0], Y: p.Position[1], Z: p.Position[2]}
		rl.DrawSphereEx(pos, p.Radius, r.rings, r.slices, color)
	}
}

// Marker is one sample point drawn as a small cube.
type Marker struct {
	Position    rl.Vector3
	Size        float32
	Highlighted bool
}

// DrawMarkers renders sample point markers.
func DrawMarkers(markers []Marker) {
	for _, m := range markers {
		color := rl.Color{R: 250, G: 220, B: 80, A: 255}
		if m.Highlighted {
			color = rl.Color{R: 255, G: 80, B: 200, A: 255}
		}
		rl.DrawCube(m.Position, m.Size, m.Size, m.Size, color)
	}
}
