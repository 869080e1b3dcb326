// Package game wires the terrain, particle store, simulation pipeline and
// rendering into one application loop.
package game

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/mod1/camera"
	"github.com/pthm-cable/mod1/components"
	"github.com/pthm-cable/mod1/config"
	"github.com/pthm-cable/mod1/inspector"
	"github.com/pthm-cable/mod1/particles"
	"github.com/pthm-cable/mod1/pointcloud"
	"github.com/pthm-cable/mod1/renderer"
	"github.com/pthm-cable/mod1/server"
	"github.com/pthm-cable/mod1/telemetry"
	"github.com/pthm-cable/mod1/terrain"
	"github.com/pthm-cable/mod1/ui"
)

// How long a frame waits for the particle read-back.
const readBackTimeout = time.Second

// Marker cube edge, in normalized world units.
const markerSize = 0.02

// Options configures a Game.
type Options struct {
	Config      *config.Config // nil uses config.Cfg()
	Seed        int64
	File        string // .mod1 point cloud to load at startup
	Backend     string // overrides physics.backend when set
	Spawn       int    // initial particle count, negative uses config
	LogStats    bool
	OutputDir   string
	SnapshotDir string
	Headless    bool
	Hub         *server.Hub // optional websocket hub
}

// Game holds the complete application state.
type Game struct {
	cfg *config.Config
	ctx context.Context
	rng *rand.Rand

	seed int64

	// Sample point markers
	world        *ecs.World
	markerMapper *ecs.Map3[components.Position, components.SamplePoint, components.Marker]
	markerFilter *ecs.Filter3[components.Position, components.SamplePoint, components.Marker]

	// Terrain
	sourcePath string
	cloud      pointcloud.Cloud
	kernelName string
	terrainRes int
	surface    *terrain.HeightGrid
	mesh       *terrain.Mesh

	// Simulation
	dev       particles.Device
	store     *particles.Store
	pipeline  *particles.Pipeline
	particles []particles.Particle // last read-back

	// Telemetry
	profiler      *telemetry.StageProfiler
	collector     *telemetry.Collector
	outputManager *telemetry.OutputManager
	logStats      bool
	snapshotDir   string
	lastOverflows uint64

	hub *server.Hub

	// Graphical state (nil when headless)
	headless  bool
	camera    *camera.Camera
	scene     *renderer.Scene
	hud       *ui.HUD
	controls  *ui.ControlsPanel
	perfPanel *ui.PerfPanel
	overlays  *ui.OverlayRegistry
	inspector *inspector.Inspector
	markerBuf []renderer.Marker

	tick   int32
	paused bool
}

// NewGameWithOptions creates the device, store and pipeline, loads the
// point cloud if one is given and spawns the initial particles.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	world := ecs.NewWorld()
	g := &Game{
		cfg:          cfg,
		ctx:          context.Background(),
		rng:          rand.New(rand.NewSource(opts.Seed)),
		seed:         opts.Seed,
		world:        world,
		markerMapper: ecs.NewMap3[components.Position, components.SamplePoint, components.Marker](world),
		markerFilter: ecs.NewFilter3[components.Position, components.SamplePoint, components.Marker](world),
		kernelName:   cfg.Terrain.Kernel,
		terrainRes:   cfg.Terrain.Resolution,
		logStats:     opts.LogStats,
		snapshotDir:  opts.SnapshotDir,
		hub:          opts.Hub,
		headless:     opts.Headless,
		camera:       camera.New(),
	}

	backend := cfg.Physics.Backend
	if opts.Backend != "" {
		backend = opts.Backend
	}
	dev, err := particles.NewDevice(backend)
	if errors.Is(err, particles.ErrOpenCLUnavailable) {
		slog.Warn("falling back to cpu backend", "requested", backend, "error", err)
		dev, err = particles.NewDevice("cpu")
	}
	if err != nil {
		return nil, err
	}
	g.dev = dev

	store, err := particles.NewStore(dev, storeConfig(cfg))
	if err != nil {
		dev.Release()
		return nil, err
	}
	g.store = store

	g.profiler = telemetry.NewStageProfiler(cfg.Telemetry.PerfCollectorWindow, nil)
	g.collector = telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.MaxStep32)
	g.pipeline = particles.NewPipeline(dev, particles.WithStageObserver(g.profiler))

	if opts.OutputDir != "" {
		om, err := telemetry.NewOutputManager(opts.OutputDir)
		if err != nil {
			g.Unload()
			return nil, err
		}
		g.outputManager = om
		if err := om.WriteConfig(cfg); err != nil {
			slog.Error("failed to write config", "error", err)
		}
	}

	if !g.headless {
		g.scene = renderer.NewScene(cfg.Derived.WorldBounds32)
		g.hud = ui.NewHUD()
		g.overlays = ui.NewOverlayRegistry()
		g.controls = ui.NewControlsPanel(int32(cfg.Screen.Width)-controlsWidth-10, 10, controlsWidth)
		g.perfPanel = ui.NewPerfPanel(10, 130)
		g.inspector = inspector.NewInspector(world, int32(cfg.Screen.Width), int32(cfg.Screen.Height))
	}

	if opts.File != "" {
		if err := g.LoadFile(opts.File); err != nil {
			g.Unload()
			return nil, err
		}
	} else {
		g.rebuildTerrain()
	}

	spawn := opts.Spawn
	if spawn < 0 {
		spawn = cfg.Particles.InitialCount
	}
	g.spawnInitial(spawn)

	slog.Info("game initialized",
		"backend", dev.Name(),
		"pipeline", g.pipeline.Enabled(),
		"capacity", store.Capacity(),
		"particles", store.Count(),
		"seed", opts.Seed,
	)
	return g, nil
}

// storeConfig maps the loaded configuration onto the particle store.
func storeConfig(cfg *config.Config) particles.StoreConfig {
	return particles.StoreConfig{
		Capacity:      cfg.Particles.MaxParticles,
		GridSize:      cfg.Grid.Size,
		CellCapacity:  cfg.Grid.CapacityPerCell,
		WorldBounds:   cfg.Derived.WorldBounds32,
		TerrainRes:    cfg.Terrain.Resolution,
		MaxStep:       cfg.Derived.MaxStep32,
		Restitution:   cfg.Derived.Restitution32,
		Friction:      cfg.Derived.Friction32,
		DefaultRadius: float32(cfg.Particles.Radius),
		DefaultMass:   float32(cfg.Particles.Mass),
	}
}

// Tick returns the number of simulation steps taken.
func (g *Game) Tick() int32 {
	return g.tick
}

// Paused reports whether the simulation is paused.
func (g *Game) Paused() bool {
	return g.paused
}

// SetPaused pauses or resumes the simulation.
func (g *Game) SetPaused(p bool) {
	g.paused = p
}

// Particles returns the most recent read-back.
func (g *Game) Particles() []particles.Particle {
	return g.particles
}

// Store returns the particle store.
func (g *Game) Store() *particles.Store {
	return g.store
}

// Surface returns the current height grid.
func (g *Game) Surface() *terrain.HeightGrid {
	return g.surface
}

// Mesh returns the current terrain mesh.
func (g *Game) Mesh() *terrain.Mesh {
	return g.mesh
}

// PipelineEnabled reports whether the simulation stages built.
func (g *Game) PipelineEnabled() bool {
	return g.pipeline.Enabled()
}

// Unload releases device resources and closes output files.
func (g *Game) Unload() {
	if g.outputManager != nil {
		if err := g.outputManager.Close(); err != nil {
			slog.Error("failed to close output", "error", err)
		}
		g.outputManager = nil
	}
	if g.dev != nil {
		g.dev.Release()
		g.dev = nil
	}
}
