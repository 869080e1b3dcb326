// Package terrain builds height fields from scattered sample points and
// triangulates them for drawing.
package terrain

import "math"

// DefaultResolution is the number of height nodes per side used when a
// caller passes a non-positive resolution.
const DefaultResolution = 50

// Domain bounds of the height field on both x and y.
const (
	DomainMin = -1.0
	DomainMax = 1.0
)

// Point is a normalized sample point in [-1,1]³.
type Point struct {
	X, Y, Z float64
}

// HeightGrid is a square, row-major grid of heights over [Min,Max]².
// Row follows y, column follows x.
type HeightGrid struct {
	Resolution int
	Min, Max   float32
	Heights    []float32
}

// NewFlatGrid returns a grid with every node at the given height.
func NewFlatGrid(resolution int, height float32) *HeightGrid {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	g := &HeightGrid{
		Resolution: resolution,
		Min:        DomainMin,
		Max:        DomainMax,
		Heights:    make([]float32, resolution*resolution),
	}
	for i := range g.Heights {
		g.Heights[i] = height
	}
	return g
}

// Step returns the spacing between adjacent nodes.
func (g *HeightGrid) Step() float32 {
	if g.Resolution < 2 {
		return g.Max - g.Min
	}
	return (g.Max - g.Min) / float32(g.Resolution-1)
}

// At returns the height stored at node (row, col).
func (g *HeightGrid) At(row, col int) float32 {
	return g.Heights[row*g.Resolution+col]
}

// NodePosition returns the world x,y of node (row, col).
func (g *HeightGrid) NodePosition(row, col int) (x, y float32) {
	if g.Resolution < 2 {
		c := (g.Min + g.Max) / 2
		return c, c
	}
	step := g.Step()
	return g.Min + float32(col)*step, g.Min + float32(row)*step
}

// Sample returns the bilinearly interpolated height at (x, y).
// Coordinates outside the grid are clamped to the nearest edge.
func (g *HeightGrid) Sample(x, y float32) float32 {
	if len(g.Heights) == 0 {
		return 0
	}
	if g.Resolution < 2 {
		return g.Heights[0]
	}

	last := g.Resolution - 1
	fx := clampf((x-g.Min)/g.Step(), 0, float32(last))
	fy := clampf((y-g.Min)/g.Step(), 0, float32(last))

	c0 := int(fx)
	r0 := int(fy)
	if c0 >= last {
		c0 = last - 1
	}
	if r0 >= last {
		r0 = last - 1
	}
	tx := fx - float32(c0)
	ty := fy - float32(r0)

	h00 := g.At(r0, c0)
	h01 := g.At(r0, c0+1)
	h10 := g.At(r0+1, c0)
	h11 := g.At(r0+1, c0+1)

	top := h00 + (h01-h00)*tx
	bottom := h10 + (h11-h10)*tx
	return top + (bottom-top)*ty
}

// Gradient returns (dh/dx, dh/dy) of the sampled surface using central
// differences of half a node spacing.
func (g *HeightGrid) Gradient(x, y float32) (dx, dy float32) {
	if g.Resolution < 2 {
		return 0, 0
	}
	e := g.Step() * 0.5
	dx = (g.Sample(x+e, y) - g.Sample(x-e, y)) / (2 * e)
	dy = (g.Sample(x, y+e) - g.Sample(x, y-e)) / (2 * e)
	return dx, dy
}

// Range returns the minimum and maximum node heights.
func (g *HeightGrid) Range() (lo, hi float32) {
	if len(g.Heights) == 0 {
		return 0, 0
	}
	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, h := range g.Heights {
		lo = min(lo, h)
		hi = max(hi, h)
	}
	return lo, hi
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
