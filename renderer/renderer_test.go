package renderer

import (
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mod1/camera"
	"github.com/pthm-cable/mod1/terrain"
)

func TestCamera3DUsesZUp(t *testing.T) {
	c := camera.New()
	rc := Camera3D(c)

	if rc.Up != (rl.Vector3{Z: 1}) {
		t.Errorf("Up = %+v, want +z", rc.Up)
	}
	if rc.Target != (rl.Vector3{}) {
		t.Errorf("Target = %+v, want origin", rc.Target)
	}
	if rc.Projection != rl.CameraPerspective {
		t.Errorf("Projection = %v, want perspective", rc.Projection)
	}
}

func TestLerpColorClamps(t *testing.T) {
	a := rl.Color{R: 0, G: 0, B: 0, A: 0}
	b := rl.Color{R: 200, G: 100, B: 50, A: 255}

	tests := []struct {
		name string
		t    float32
		want rl.Color
	}{
		{"below", -1, a},
		{"start", 0, a},
		{"mid", 0.5, rl.Color{R: 100, G: 50, B: 25, A: 127}},
		{"end", 1, b},
		{"above", 3, b},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lerpColor(a, b, tt.t); got != tt.want {
				t.Errorf("lerpColor(%v) = %+v, want %+v", tt.t, got, tt.want)
			}
		})
	}
}

func TestFaceColorShading(t *testing.T) {
	up := r3.Vec{Z: 1}
	side := r3.Vec{X: -1}

	lit := faceColor(1, 0, 1, up)
	dark := faceColor(1, 0, 1, side)
	if dark.R >= lit.R || dark.G >= lit.G {
		t.Errorf("face turned from the light should be darker: lit %+v dark %+v", lit, dark)
	}

	flat := faceColor(0, 0, 0, up)
	if flat.A != 255 {
		t.Errorf("alpha = %d, want opaque", flat.A)
	}
}

func TestTerrainRendererSetMesh(t *testing.T) {
	g := terrain.NewFlatGrid(4, 0)
	m := terrain.BuildMesh(g)

	r := NewTerrainRenderer()
	r.SetMesh(m)
	if len(r.shades) != len(m.Triangles) {
		t.Errorf("got %d shades, want %d", len(r.shades), len(m.Triangles))
	}
	if len(r.verts) != 16 {
		t.Errorf("got %d vertices, want 16", len(r.verts))
	}

	r.SetMesh(nil)
	if r.shades != nil || r.verts != nil {
		t.Error("SetMesh(nil) should clear cached geometry")
	}
}
