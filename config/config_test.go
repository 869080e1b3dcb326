package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}

	if cfg.Terrain.Resolution != 50 {
		t.Errorf("Terrain.Resolution = %d, want 50", cfg.Terrain.Resolution)
	}
	if cfg.Grid.Size != 32 {
		t.Errorf("Grid.Size = %d, want 32", cfg.Grid.Size)
	}
	if cfg.Grid.CapacityPerCell != 32 {
		t.Errorf("Grid.CapacityPerCell = %d, want 32", cfg.Grid.CapacityPerCell)
	}
	if math.Abs(float64(cfg.Derived.CellSize32)-0.0625) > 1e-6 {
		t.Errorf("Derived.CellSize32 = %f, want 0.0625", cfg.Derived.CellSize32)
	}
	if cfg.Derived.Gravity32 != [3]float32{0, 0, -9.8} {
		t.Errorf("Derived.Gravity32 = %v, want [0 0 -9.8]", cfg.Derived.Gravity32)
	}
	if math.Abs(float64(cfg.Derived.MaxStep32)-0.016) > 1e-6 {
		t.Errorf("Derived.MaxStep32 = %f, want 0.016", cfg.Derived.MaxStep32)
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	data := []byte("grid:\n  size: 16\nphysics:\n  gravity: [0, -1]\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Grid.Size != 16 {
		t.Errorf("Grid.Size = %d, want 16", cfg.Grid.Size)
	}
	// Untouched sections keep their defaults
	if cfg.Terrain.Kernel != "gaussian" {
		t.Errorf("Terrain.Kernel = %q, want gaussian", cfg.Terrain.Kernel)
	}
	if math.Abs(float64(cfg.Derived.CellSize32)-0.125) > 1e-6 {
		t.Errorf("Derived.CellSize32 = %f, want 0.125", cfg.Derived.CellSize32)
	}
	if cfg.Derived.Gravity32 != [3]float32{0, -1, 0} {
		t.Errorf("Derived.Gravity32 = %v, want [0 -1 0]", cfg.Derived.Gravity32)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero grid size", "grid:\n  size: 0\n"},
		{"negative capacity", "grid:\n  capacity_per_cell: -1\n"},
		{"zero bounds", "grid:\n  world_bounds: 0\n"},
		{"zero radius", "particles:\n  radius: 0\n"},
		{"radius wider than half a cell", "particles:\n  radius: 0.05\n"},
		{"grid too fine for radius", "grid:\n  size: 64\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteYAMLRoundtrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Particles.MaxParticles = 123

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML error: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if reloaded.Particles.MaxParticles != 123 {
		t.Errorf("MaxParticles = %d, want 123", reloaded.Particles.MaxParticles)
	}
}
