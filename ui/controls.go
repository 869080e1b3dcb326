package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// ControlsState is what the panel shows about the running scene.
type ControlsState struct {
	Paused     bool
	Kernel     string
	SpawnBatch int
}

// ControlsActions reports the buttons pressed this frame.
type ControlsActions struct {
	Spawn        bool
	Reset        bool
	TogglePause  bool
	ToggleKernel bool
	Dump         bool
	ResetCamera  bool
}

// Any reports whether any button was pressed.
func (a ControlsActions) Any() bool {
	return a.Spawn || a.Reset || a.TogglePause || a.ToggleKernel || a.Dump || a.ResetCamera
}

// ControlsPanel renders the right-side panel with action buttons and
// overlay toggles.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
	}
}

// SetPosition moves the panel.
func (c *ControlsPanel) SetPosition(x, y int32) {
	c.x = x
	c.y = y
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Draw renders the panel and returns the buttons pressed.
func (c *ControlsPanel) Draw(state ControlsState, overlays *OverlayRegistry) ControlsActions {
	var actions ControlsActions
	if !c.visible {
		return actions
	}

	r := c.renderer
	padding := r.Theme.Padding
	lineHeight := r.Theme.LineHeight
	buttonH := r.Theme.ButtonHeight
	inner := c.width - padding*2
	half := (inner - padding) / 2

	rows := int32(len(overlays.All()) + len(overlays.Categories()))
	panelHeight := padding*3 + lineHeight*2 + (buttonH+6)*3 + rows*lineHeight + padding
	r.DrawPanel(c.x, c.y, c.width, panelHeight)

	x := c.x + padding
	y := c.y + padding

	rl.DrawText("Controls", x, y, 16, rl.White)
	y += lineHeight + 6

	button := func(bx, w int32, label string) bool {
		return gui.Button(rl.Rectangle{X: float32(bx), Y: float32(y), Width: float32(w), Height: float32(buttonH)}, label)
	}

	actions.Spawn = button(x, half, fmt.Sprintf("Spawn %d", state.SpawnBatch))
	actions.Reset = button(x+half+padding, half, "Reset")
	y += buttonH + 6

	actions.TogglePause = button(x, half, toggleText(state.Paused, "Resume", "Pause"))
	actions.ToggleKernel = button(x+half+padding, half, "Kernel: "+state.Kernel)
	y += buttonH + 6

	actions.Dump = button(x, half, "Dump CSV")
	actions.ResetCamera = button(x+half+padding, half, "Camera")
	y += buttonH + 6 + padding

	for _, category := range overlays.Categories() {
		y = r.DrawSectionHeader(x, y, categoryLabel(category))
		for _, desc := range overlays.ByCategory(category) {
			y = r.DrawToggle(x, y, desc.Name, desc.KeyLabel, overlays.IsEnabled(desc.ID), inner)
		}
	}

	return actions
}

func categoryLabel(cat string) string {
	switch cat {
	case "scene":
		return "Scene"
	case "debug":
		return "Debug"
	default:
		return cat
	}
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
