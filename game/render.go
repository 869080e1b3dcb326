package game

import (
	"log/slog"
	"path/filepath"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/mod1/components"
	"github.com/pthm-cable/mod1/renderer"
	"github.com/pthm-cable/mod1/telemetry"
	"github.com/pthm-cable/mod1/ui"
)

const controlsLegend = "WASD/QE move | arrows rotate/zoom | +/- zoom | R camera | P spawn | C clear | K kernel | F dump | F5 snapshot | Space pause | Tab panel | click marker inspect"

// Update handles input and advances the simulation by the frame time.
func (g *Game) Update() {
	g.handleInput()
	g.processCommands()
	g.profiler.MarkFrame()

	if g.paused {
		return
	}
	g.step(rl.GetFrameTime())
}

// Draw renders the scene and the UI.
func (g *Game) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 15, G: 18, B: 24, A: 255})

	g.scene.Overlays = renderer.Overlays{
		Wireframe: g.overlays.IsEnabled(ui.OverlayWireframe),
		Bounds:    g.overlays.IsEnabled(ui.OverlayBounds),
		Axes:      g.overlays.IsEnabled(ui.OverlayAxes),
		Markers:   g.overlays.IsEnabled(ui.OverlayMarkers),
	}
	g.markerBuf = g.collectMarkers(g.markerBuf)
	g.scene.Draw(g.camera, g.particles, g.markerBuf)

	g.drawUI()

	rl.EndDrawing()
}

func (g *Game) drawUI() {
	source := ""
	if g.sourcePath != "" {
		source = filepath.Base(g.sourcePath)
	}
	g.hud.Draw(ui.HUDData{
		Title:      "mod1",
		Source:     source,
		Points:     len(g.cloud.Points),
		Kernel:     g.Kernel(),
		Particles:  g.store.Count(),
		Capacity:   g.store.Capacity(),
		Tick:       g.tick,
		FPS:        rl.GetFPS(),
		Paused:     g.paused,
		Backend:    g.dev.Name(),
		PipelineOn: g.pipeline.Enabled(),
	})
	g.hud.DrawControls(int32(rl.GetScreenHeight()), controlsLegend)

	if g.overlays.IsEnabled(ui.OverlayPerf) {
		summary := g.profiler.Summary()
		g.perfPanel.Draw(ui.PerfPanelData{
			StageAvg:          summary.StageAvg,
			Total:             summary.AvgStep,
			Stages:            telemetry.TimedStages,
			DispatchesPerStep: summary.DispatchesPerStep,
			Overflows:         summary.Overflows,
		})
	}

	g.inspector.Draw(g.markerMapper, g.surface)

	actions := g.controls.Draw(ui.ControlsState{
		Paused:     g.paused,
		Kernel:     g.Kernel(),
		SpawnBatch: g.cfg.Particles.SpawnBatch,
	}, g.overlays)
	g.applyActions(actions)
}

// applyActions runs the control panel buttons pressed this frame.
func (g *Game) applyActions(a ui.ControlsActions) {
	if !a.Any() {
		return
	}
	if a.Spawn {
		g.SpawnRandom(g.cfg.Particles.SpawnBatch)
	}
	if a.Reset {
		g.ResetParticles()
	}
	if a.TogglePause {
		g.paused = !g.paused
	}
	if a.ToggleKernel {
		g.ToggleKernel()
	}
	if a.Dump {
		if _, err := g.DumpParticles(); err != nil {
			slog.Warn("particle dump failed", "error", err)
		}
	}
	if a.ResetCamera {
		g.camera.Reset()
	}
}

func toVector3(p *components.Position) rl.Vector3 {
	return rl.Vector3{X: p.X, Y: p.Y, Z: p.Z}
}
