package game

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/mod1/renderer"
)

// Camera speeds per second of frame time.
const (
	moveSpeed   = 2.0  // world units
	rotateSpeed = 90.0 // degrees
)

// Width of the controls panel on the right edge.
const controlsWidth = 220

// handleInput processes keyboard input.
func (g *Game) handleInput() {
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsWindowResized() {
		g.controls.SetPosition(int32(rl.GetScreenWidth())-controlsWidth-10, 10)
		g.inspector.SetScreenSize(int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight()))
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.paused = !g.paused
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		g.controls.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyP) {
		g.SpawnRandom(g.cfg.Particles.SpawnBatch)
	}
	if rl.IsKeyPressed(rl.KeyC) {
		g.ResetParticles()
	}
	if rl.IsKeyPressed(rl.KeyK) {
		g.ToggleKernel()
	}
	if rl.IsKeyPressed(rl.KeyF) {
		if _, err := g.DumpParticles(); err != nil {
			slog.Warn("particle dump failed", "error", err)
		}
	}
	if rl.IsKeyPressed(rl.KeyF5) {
		if _, err := g.SaveSnapshot(); err != nil {
			slog.Warn("snapshot failed", "error", err)
		}
	}

	for {
		key := rl.GetKeyPressed()
		if key == 0 {
			break
		}
		g.overlays.HandleKeyPress(key)
	}

	g.handleCameraInput()

	mouse := rl.GetMousePosition()
	overControls := g.controls.IsVisible() && mouse.X >= float32(rl.GetScreenWidth()-controlsWidth-10)
	ray := rl.GetScreenToWorldRay(mouse, renderer.Camera3D(g.camera))
	g.inspector.HandleInput(ray, g.markerFilter, overControls)
}

// handleCameraInput processes camera move/rotate/zoom controls.
func (g *Game) handleCameraInput() {
	dt := float64(rl.GetFrameTime())
	step := moveSpeed * dt

	var forward, right, up float64
	if rl.IsKeyDown(rl.KeyW) {
		forward += step
	}
	if rl.IsKeyDown(rl.KeyS) {
		forward -= step
	}
	if rl.IsKeyDown(rl.KeyD) {
		right += step
	}
	if rl.IsKeyDown(rl.KeyA) {
		right -= step
	}
	if rl.IsKeyDown(rl.KeyE) {
		up += step
	}
	if rl.IsKeyDown(rl.KeyQ) {
		up -= step
	}
	if forward != 0 || right != 0 || up != 0 {
		g.camera.MoveRelative(forward, right, up)
	}

	if rl.IsKeyDown(rl.KeyLeft) {
		g.camera.Rotate(-rotateSpeed * dt)
	}
	if rl.IsKeyDown(rl.KeyRight) {
		g.camera.Rotate(rotateSpeed * dt)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		g.camera.ZoomBy(1 + float64(wheel)*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) || rl.IsKeyPressed(rl.KeyUp) {
		g.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) || rl.IsKeyPressed(rl.KeyDown) {
		g.camera.ZoomBy(0.8)
	}

	if rl.IsKeyPressed(rl.KeyR) {
		g.camera.Reset()
	}
}
