package camera

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNew(t *testing.T) {
	cam := New()

	if !near(r3.Norm(cam.Position), 5) {
		t.Errorf("expected distance 5, got %f", r3.Norm(cam.Position))
	}
	// Starts on the (1,1,1) diagonal.
	if !near(cam.Position.X, cam.Position.Y) || !near(cam.Position.Y, cam.Position.Z) {
		t.Errorf("expected diagonal position, got %v", cam.Position)
	}
	if cam.Zoom != 1.0 {
		t.Errorf("expected zoom 1.0, got %f", cam.Zoom)
	}
}

func TestZoomClamp(t *testing.T) {
	cam := New()

	tests := []struct {
		zoom, want float64
	}{
		{2, 2},
		{0.01, 0.1},
		{50, 10},
	}
	for _, tt := range tests {
		cam.SetZoom(tt.zoom)
		if cam.Zoom != tt.want {
			t.Errorf("SetZoom(%v) = %v, want %v", tt.zoom, cam.Zoom, tt.want)
		}
		if !near(r3.Norm(cam.Position), 5/tt.want) {
			t.Errorf("zoom %v: distance %v, want %v", tt.want, r3.Norm(cam.Position), 5/tt.want)
		}
	}

	cam.SetZoom(1)
	cam.ZoomBy(2)
	if cam.Zoom != 2 {
		t.Errorf("ZoomBy(2) = %v", cam.Zoom)
	}
}

func TestRotateKeepsElevation(t *testing.T) {
	cam := New()
	z := cam.Position.Z

	cam.Rotate(90)
	if !near(cam.Rotation, 135) {
		t.Errorf("rotation = %v, want 135", cam.Rotation)
	}
	if !near(cam.Position.Z, z) {
		t.Errorf("z changed %v -> %v", z, cam.Position.Z)
	}
	if !(cam.Position.X < 0 && cam.Position.Y > 0) {
		t.Errorf("expected second quadrant, got %v", cam.Position)
	}

	cam.Rotate(-200)
	if !near(cam.Rotation, 295) {
		t.Errorf("rotation wrapped to %v, want 295", cam.Rotation)
	}
}

func TestMoveRelative(t *testing.T) {
	cam := New()
	before := r3.Norm(r3.Sub(cam.Position, cam.Target))

	cam.MoveRelative(1, 0, 0)
	after := r3.Norm(r3.Sub(cam.Position, cam.Target))
	if !near(before-after, 1) {
		t.Errorf("moving forward 1 changed distance by %v", before-after)
	}

	f, r, u := cam.Basis()
	if !near(r3.Dot(f, r), 0) || !near(r3.Dot(f, u), 0) || !near(r3.Dot(r, u), 0) {
		t.Errorf("basis not orthogonal: f=%v r=%v u=%v", f, r, u)
	}
	if r.Z != 0 {
		t.Errorf("right vector should be horizontal, got %v", r)
	}

	p := cam.Position
	cam.MoveRelative(0, 0.5, 0)
	if moved := r3.Sub(cam.Position, p); !near(r3.Norm(moved), 0.5) || !near(moved.Z, 0) {
		t.Errorf("strafe moved %v", moved)
	}
}

func TestReset(t *testing.T) {
	cam := New()
	want := cam.Position

	cam.Rotate(33)
	cam.SetZoom(4)
	cam.MoveRelative(0.2, 0.3, 0.4)
	cam.Reset()

	if cam.Position != want || cam.Zoom != 1 || cam.Rotation != DefaultRotation {
		t.Errorf("after reset: pos %v zoom %v rot %v", cam.Position, cam.Zoom, cam.Rotation)
	}
}
