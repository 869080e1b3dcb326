package ui

import (
	"testing"

	rl "github.com/gen2brain/raylib-go/raylib"
)

func TestOverlayDefaults(t *testing.T) {
	reg := NewOverlayRegistry()

	tests := []struct {
		id   OverlayID
		want bool
	}{
		{OverlayWireframe, false},
		{OverlayBounds, true},
		{OverlayAxes, true},
		{OverlayMarkers, true},
		{OverlayPerf, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			if got := reg.IsEnabled(tt.id); got != tt.want {
				t.Errorf("IsEnabled(%s) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestOverlayHandleKeyPress(t *testing.T) {
	reg := NewOverlayRegistry()

	id, on, ok := reg.HandleKeyPress(rl.KeyOne)
	if !ok || id != OverlayWireframe || !on {
		t.Errorf("KeyOne = (%s, %v, %v), want (wireframe, true, true)", id, on, ok)
	}
	id, on, ok = reg.HandleKeyPress(rl.KeyOne)
	if !ok || on {
		t.Errorf("second KeyOne = (%s, %v, %v), want off", id, on, ok)
	}

	if _, _, ok := reg.HandleKeyPress(rl.KeyZ); ok {
		t.Error("unbound key should not toggle anything")
	}
	if reg.Toggle("missing") {
		t.Error("unknown overlay should not toggle")
	}
}

func TestOverlayCategories(t *testing.T) {
	reg := NewOverlayRegistry()

	cats := reg.Categories()
	if len(cats) != 2 || cats[0] != "scene" || cats[1] != "debug" {
		t.Fatalf("Categories = %v, want [scene debug]", cats)
	}
	if n := len(reg.ByCategory("scene")); n != 4 {
		t.Errorf("scene overlays = %d, want 4", n)
	}
	if n := len(reg.All()); n != 5 {
		t.Errorf("all overlays = %d, want 5", n)
	}
}

func TestControlsActionsAny(t *testing.T) {
	if (ControlsActions{}).Any() {
		t.Error("empty actions should report none")
	}
	if !(ControlsActions{Dump: true}).Any() {
		t.Error("dump should count as an action")
	}
}
