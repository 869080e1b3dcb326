package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title        string
	Source       string // loaded file, empty when none
	Points       int
	Kernel       string
	Particles    int
	Capacity     int
	Tick         int32
	FPS          int32
	Paused       bool
	Backend      string
	PipelineOn   bool
	ScreenHeight int32
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{
		renderer: NewRenderer(),
	}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	source := data.Source
	if source == "" {
		source = "(no file)"
	}
	rl.DrawText(
		fmt.Sprintf("%s | %d points | kernel: %s", source, data.Points, data.Kernel),
		10, 35, 16, rl.LightGray,
	)

	rl.DrawText(
		fmt.Sprintf("Particles: %d/%d | Tick: %d | FPS: %d", data.Particles, data.Capacity, data.Tick, data.FPS),
		10, 55, 16, rl.LightGray,
	)

	pipeline := "pipeline: " + data.Backend
	pipelineColor := rl.Green
	if !data.PipelineOn {
		pipeline += " (disabled)"
		pipelineColor = rl.Red
	}
	rl.DrawText(pipeline, 10, 75, 16, pipelineColor)

	if data.Paused {
		rl.DrawText("PAUSED", 10, 95, 16, rl.Yellow)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanelData holds stage timings for display.
type PerfPanelData struct {
	StageAvg          map[string]time.Duration
	Total             time.Duration
	Stages            []string // display order
	DispatchesPerStep float64
	Overflows         uint64
}

// PerfPanel renders the per-stage timing breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
	}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(data PerfPanelData) {
	x := p.x
	y := p.y

	rl.DrawText("Stage Timings", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Tick: %s", data.Total.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16

	overflowColor := rl.LightGray
	if data.Overflows > 0 {
		overflowColor = rl.Red
	}
	rl.DrawText(fmt.Sprintf("Dispatches/step: %.1f  Overflows: %d", data.DispatchesPerStep, data.Overflows), x, y, 12, overflowColor)
	y += 16

	for _, name := range data.Stages {
		avg := data.StageAvg[name]
		pct := float64(0)
		if data.Total > 0 {
			pct = float64(avg) / float64(data.Total) * 100
		}

		color := rl.LightGray
		if pct > 40 {
			color = rl.Red
		} else if pct > 20 {
			color = rl.Orange
		}

		rl.DrawText(
			fmt.Sprintf("%-16s %8s %5.1f%%", name, avg.Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}
}
