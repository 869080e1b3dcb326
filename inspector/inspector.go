// Package inspector lets the user click a sample point marker and shows
// its source data next to the interpolated surface at that spot.
package inspector

import (
	"fmt"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mod1/components"
	"github.com/pthm-cable/mod1/terrain"
)

// Panel dimensions
const (
	PanelWidth   = 300
	PanelPadding = 10
	HeaderHeight = 30
)

// Markers are small; picking uses a sphere this many times their size.
const pickScale = 2.0

// Panel colors
var (
	ColorPanelBg     = rl.Color{R: 30, G: 30, B: 35, A: 240}
	ColorPanelHeader = rl.Color{R: 45, G: 45, B: 55, A: 255}
	ColorPanelBorder = rl.Color{R: 70, G: 70, B: 80, A: 255}
	ColorHeaderText  = rl.Color{R: 255, G: 255, B: 255, A: 255}
	ColorCloseBtn    = rl.Color{R: 180, G: 80, B: 80, A: 255}
	ColorSection     = rl.Color{R: 50, G: 50, B: 60, A: 255}
	ColorSectionText = rl.Color{R: 200, G: 200, B: 220, A: 255}
)

// SampleFilter matches sample point marker entities.
type SampleFilter = ecs.Filter3[components.Position, components.SamplePoint, components.Marker]

// SampleMap reads sample point marker components.
type SampleMap = ecs.Map3[components.Position, components.SamplePoint, components.Marker]

// Reading compares a sample with the surface built from it.
type Reading struct {
	Surface  float32 `inspect:"label,name:Surface z"`
	Residual float32 `inspect:"bar,max:0.5,fmt:%+.3f"`
}

// Measure samples the surface under pos.
func Measure(pos components.Position, surface *terrain.HeightGrid) Reading {
	if surface == nil {
		return Reading{}
	}
	h := surface.Sample(pos.X, pos.Y)
	return Reading{Surface: h, Residual: pos.Z - h}
}

// Inspector manages marker selection and panel rendering.
type Inspector struct {
	world        *ecs.World
	selected     ecs.Entity
	hasSelected  bool
	screenWidth  int32
	screenHeight int32
}

// NewInspector creates a new inspector instance.
func NewInspector(world *ecs.World, screenWidth, screenHeight int32) *Inspector {
	return &Inspector{
		world:        world,
		screenWidth:  screenWidth,
		screenHeight: screenHeight,
	}
}

// SetScreenSize updates the panel anchor after a resize.
func (ins *Inspector) SetScreenSize(w, h int32) {
	ins.screenWidth = w
	ins.screenHeight = h
}

// HandleInput selects the marker under the mouse on left click and clears
// the selection on right click. blocked suppresses selection while the
// mouse is over another panel.
func (ins *Inspector) HandleInput(ray rl.Ray, filter *SampleFilter, blocked bool) {
	if rl.IsMouseButtonPressed(rl.MouseButtonRight) {
		ins.Deselect(filter)
		return
	}
	if blocked || !rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		return
	}

	mouse := rl.GetMousePosition()
	if ins.hasSelected {
		x, y, h := ins.panelRect()
		closeX := x + PanelWidth - 25
		if int32(mouse.X) >= closeX && int32(mouse.X) <= closeX+20 &&
			int32(mouse.Y) >= y+5 && int32(mouse.Y) <= y+25 {
			ins.Deselect(filter)
			return
		}
		if int32(mouse.X) >= x && int32(mouse.X) <= x+PanelWidth &&
			int32(mouse.Y) >= y && int32(mouse.Y) <= y+h {
			return
		}
	}

	ins.SelectAt(
		r3.Vec{X: float64(ray.Position.X), Y: float64(ray.Position.Y), Z: float64(ray.Position.Z)},
		r3.Vec{X: float64(ray.Direction.X), Y: float64(ray.Direction.Y), Z: float64(ray.Direction.Z)},
		filter,
	)
}

// SelectAt selects the nearest marker hit by the ray. A miss keeps the
// current selection.
func (ins *Inspector) SelectAt(origin, dir r3.Vec, filter *SampleFilter) bool {
	var closest ecs.Entity
	closestDist := math.Inf(1)
	found := false

	query := filter.Query()
	for query.Next() {
		pos, _, m := query.Get()
		center := r3.Vec{X: float64(pos.X), Y: float64(pos.Y), Z: float64(pos.Z)}
		if t, ok := RaySphere(origin, dir, center, float64(m.Size)*pickScale); ok && t < closestDist {
			closest = query.Entity()
			closestDist = t
			found = true
		}
	}

	if found {
		ins.selected = closest
		ins.hasSelected = true
		ins.highlight(filter)
	}
	return found
}

// Deselect clears the current selection.
func (ins *Inspector) Deselect(filter *SampleFilter) {
	ins.hasSelected = false
	ins.highlight(filter)
}

// Selected returns the currently selected entity.
func (ins *Inspector) Selected() (ecs.Entity, bool) {
	if ins.hasSelected && !ins.world.Alive(ins.selected) {
		ins.hasSelected = false
	}
	return ins.selected, ins.hasSelected
}

// highlight marks only the selected marker.
func (ins *Inspector) highlight(filter *SampleFilter) {
	query := filter.Query()
	for query.Next() {
		_, _, m := query.Get()
		m.Highlighted = ins.hasSelected && query.Entity() == ins.selected
	}
}

// RaySphere returns the distance along dir to the first intersection of
// the ray with the sphere. Rays starting inside report the exit point.
func RaySphere(origin, dir, center r3.Vec, radius float64) (float64, bool) {
	if r3.Norm(dir) == 0 {
		return 0, false
	}
	d := r3.Unit(dir)
	oc := r3.Sub(origin, center)
	b := r3.Dot(oc, d)
	c := r3.Dot(oc, oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	s := math.Sqrt(disc)
	t := -b - s
	if t < 0 {
		t = -b + s
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}

// Draw renders the panel for the selected marker.
func (ins *Inspector) Draw(mapper *SampleMap, surface *terrain.HeightGrid) {
	e, ok := ins.Selected()
	if !ok {
		return
	}
	pos, sp, _ := mapper.Get(e)
	if pos == nil || sp == nil {
		ins.hasSelected = false
		return
	}

	x0, y0, height := ins.panelRect()

	rl.DrawRectangle(x0, y0, PanelWidth, height, ColorPanelBg)
	rl.DrawRectangleLinesEx(
		rl.Rectangle{X: float32(x0), Y: float32(y0), Width: PanelWidth, Height: float32(height)},
		1,
		ColorPanelBorder,
	)

	rl.DrawRectangle(x0, y0, PanelWidth, HeaderHeight, ColorPanelHeader)
	rl.DrawText("SAMPLE POINT", x0+PanelPadding, y0+7, 16, ColorHeaderText)

	closeX := x0 + PanelWidth - 25
	rl.DrawRectangle(closeX, y0+5, 20, 20, ColorCloseBtn)
	rl.DrawText("X", closeX+6, y0+8, 14, rl.White)

	x := x0 + PanelPadding
	y := y0 + HeaderHeight + PanelPadding

	for _, f := range ExtractFields(sp) {
		y += DrawField(x, y, f)
	}
	y += DrawLabel(x, y, "Normalized", fmt.Sprintf("(%.3f, %.3f, %.3f)", pos.X, pos.Y, pos.Z), nil)

	y += 4
	rl.DrawLine(x, y, x0+PanelWidth-PanelPadding, y, ColorPanelBorder)
	y += 8

	ins.drawSectionHeader(x, y, "SURFACE")
	y += 20
	for _, f := range ExtractFields(Measure(*pos, surface)) {
		y += DrawField(x, y, f)
	}
}

// drawSectionHeader renders a section title.
func (ins *Inspector) drawSectionHeader(x, y int32, title string) {
	rl.DrawRectangle(x-2, y-2, PanelWidth-2*PanelPadding+4, 18, ColorSection)
	rl.DrawText(title, x+2, y, 14, ColorSectionText)
}

// panelRect anchors the panel to the bottom-right corner.
func (ins *Inspector) panelRect() (x, y, height int32) {
	height = HeaderHeight + PanelPadding
	height += 18 * int32(len(ExtractFields(components.SamplePoint{})))
	height += 18     // normalized position
	height += 12     // separator
	height += 20     // surface header
	height += 18 * 2 // reading
	height += PanelPadding

	x = ins.screenWidth - PanelWidth - 10
	y = ins.screenHeight - height - 40
	return x, y, height
}
