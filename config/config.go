// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Particles ParticlesConfig `yaml:"particles"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Grid      GridConfig      `yaml:"grid"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// TerrainConfig holds height-field interpolation parameters.
type TerrainConfig struct {
	Resolution   int     `yaml:"resolution"`    // Height grid nodes per side
	Kernel       string  `yaml:"kernel"`        // "gaussian" or "idw"
	Sigma        float64 `yaml:"sigma"`         // Gaussian kernel width
	AnchorHeight float64 `yaml:"anchor_height"` // Height the field decays toward
	AnchorWeight float64 `yaml:"anchor_weight"` // Weight of the anchor term (gaussian)
	IDWPower     float64 `yaml:"idw_power"`     // Distance exponent (idw)
	FadeStart    float64 `yaml:"fade_start"`    // Normalized radius where the boundary fade begins (idw)
}

// ParticlesConfig holds particle store parameters.
type ParticlesConfig struct {
	MaxParticles int     `yaml:"max_particles"`
	Radius       float64 `yaml:"radius"`
	Mass         float64 `yaml:"mass"`
	InitialCount int     `yaml:"initial_count"` // Particles spawned at startup
	SpawnBatch   int     `yaml:"spawn_batch"`   // Particles added per spawn request
}

// PhysicsConfig holds simulation physics parameters.
type PhysicsConfig struct {
	Backend     string    `yaml:"backend"`  // "cpu" or "opencl"
	MaxStep     float64   `yaml:"max_step"` // Upper clamp for delta time (seconds)
	Gravity     []float64 `yaml:"gravity"`
	Restitution float64   `yaml:"restitution"`
	Friction    float64   `yaml:"friction"`
}

// GridConfig holds spatial grid parameters.
type GridConfig struct {
	Size            int     `yaml:"size"`              // Cells per axis
	CapacityPerCell int     `yaml:"capacity_per_cell"` // Max indices stored per cell
	WorldBounds     float64 `yaml:"world_bounds"`      // World spans [-b, b] on every axis
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // Seconds of simulated time per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// ServerConfig holds websocket streaming parameters.
type ServerConfig struct {
	BroadcastEvery int `yaml:"broadcast_every"` // Ticks between particle snapshots
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	CellSize32    float32    // 2*WorldBounds/Size
	WorldBounds32 float32    // Grid.WorldBounds as float32
	Gravity32     [3]float32 // Physics.Gravity as float32 (missing components are 0)
	MaxStep32     float32
	Restitution32 float32
	Friction32    float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects configurations the simulation cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Grid.Size <= 0 {
		errs = append(errs, fmt.Errorf("grid.size must be positive, got %d", c.Grid.Size))
	}
	if c.Grid.CapacityPerCell <= 0 {
		errs = append(errs, fmt.Errorf("grid.capacity_per_cell must be positive, got %d", c.Grid.CapacityPerCell))
	}
	if c.Grid.WorldBounds <= 0 {
		errs = append(errs, fmt.Errorf("grid.world_bounds must be positive, got %g", c.Grid.WorldBounds))
	}
	if c.Particles.MaxParticles <= 0 {
		errs = append(errs, fmt.Errorf("particles.max_particles must be positive, got %d", c.Particles.MaxParticles))
	}
	if c.Particles.Radius <= 0 {
		errs = append(errs, fmt.Errorf("particles.radius must be positive, got %g", c.Particles.Radius))
	}
	// Overlapping pairs must land in neighbouring cells.
	if c.Grid.Size > 0 && c.Grid.WorldBounds > 0 {
		cell := 2 * c.Grid.WorldBounds / float64(c.Grid.Size)
		if 2*c.Particles.Radius > cell {
			errs = append(errs, fmt.Errorf("particles.radius %g exceeds half the grid cell (%g)", c.Particles.Radius, cell/2))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.WorldBounds32 = float32(c.Grid.WorldBounds)
	c.Derived.CellSize32 = float32(2 * c.Grid.WorldBounds / float64(c.Grid.Size))
	c.Derived.MaxStep32 = float32(c.Physics.MaxStep)
	c.Derived.Restitution32 = float32(c.Physics.Restitution)
	c.Derived.Friction32 = float32(c.Physics.Friction)

	c.Derived.Gravity32 = [3]float32{}
	for i := 0; i < len(c.Physics.Gravity) && i < 3; i++ {
		c.Derived.Gravity32[i] = float32(c.Physics.Gravity[i])
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
