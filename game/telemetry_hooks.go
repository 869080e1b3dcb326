package game

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/mod1/particles"
	"github.com/pthm-cable/mod1/telemetry"
)

// flushTelemetry checks if the stats window should be flushed.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	// Device overflow counts are cumulative; report the window's share.
	total := g.dev.Stats().CellOverflows
	overflows := total - g.lastOverflows
	g.lastOverflows = total

	summary := telemetry.SummarizeParticles(g.particles)
	stats := g.collector.Flush(g.tick, g.store.Count(), g.store.Capacity(), summary, overflows)
	perfSummary := g.profiler.Summary()

	if g.logStats {
		stats.LogStats()
		slog.Info("stage timings", "perf", perfSummary)
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfSummary, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}

	slog.Debug("pipeline dispatch sizes",
		"tick", g.tick,
		"particles", g.store.Count(),
		"cells", g.cfg.Grid.Size*g.cfg.Grid.Size*g.cfg.Grid.Size,
	)
}

// DumpParticles writes the current particles to a CSV in the output
// directory and returns its path.
func (g *Game) DumpParticles() (string, error) {
	if g.outputManager == nil {
		return "", errors.New("no output directory configured")
	}
	path, err := g.outputManager.WriteParticles(g.tick, g.particles)
	if err != nil {
		return "", err
	}
	slog.Info("particles dumped", "path", path, "count", len(g.particles))
	return path, nil
}

// SaveSnapshot writes the scene to the snapshot directory, falling back
// to the output directory.
func (g *Game) SaveSnapshot() (string, error) {
	dir := g.snapshotDir
	if dir == "" && g.outputManager != nil {
		dir = g.outputManager.Dir()
	}
	if dir == "" {
		return "", errors.New("no snapshot directory configured")
	}

	snapshot := &telemetry.Snapshot{
		Version:           telemetry.SnapshotVersion,
		RNGSeed:           uint64(g.seed),
		SourceFile:        g.sourcePath,
		TerrainKernel:     g.Kernel(),
		TerrainResolution: g.surface.Resolution,
		Tick:              g.tick,
		Particles:         telemetry.ParticleStates(g.particles),
	}
	path, err := telemetry.SaveSnapshot(snapshot, dir)
	if err != nil {
		return "", err
	}
	slog.Info("snapshot saved", "path", path, "tick", g.tick)
	return path, nil
}

// RestoreSnapshot reloads the terrain source and particles from a
// snapshot. Particles keep their order, so their IDs are preserved.
func (g *Game) RestoreSnapshot(path string) error {
	s, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return err
	}
	if len(s.Particles) > g.store.Capacity() {
		return fmt.Errorf("snapshot has %d particles, capacity is %d: %w",
			len(s.Particles), g.store.Capacity(), particles.ErrCapacityExceeded)
	}

	if s.SourceFile != "" && s.SourceFile != g.sourcePath {
		if err := g.LoadFile(s.SourceFile); err != nil {
			return err
		}
	}
	if s.TerrainKernel != g.Kernel() {
		g.SetKernel(s.TerrainKernel)
	}
	if s.TerrainResolution != 0 && s.TerrainResolution != g.surface.Resolution {
		slog.Info("restoring terrain resolution", "from", g.surface.Resolution, "to", s.TerrainResolution)
		g.SetTerrainResolution(s.TerrainResolution)
	}

	if err := g.store.Reset(); err != nil {
		return err
	}
	for _, p := range s.Particles {
		if err := g.store.AddParticle(p.Position, p.Velocity, p.Radius, p.Mass); err != nil {
			return err
		}
	}

	g.tick = s.Tick
	g.collector = telemetry.NewCollector(g.cfg.Telemetry.StatsWindow, g.cfg.Derived.MaxStep32)
	g.refreshParticles()

	slog.Info("snapshot restored", "path", path, "tick", s.Tick, "particles", len(s.Particles))
	return nil
}
