package terrain

import (
	"log/slog"
	"math"
)

// Kernel estimates the surface height at (x, y) from scattered samples.
type Kernel interface {
	Height(x, y float64, points []Point) float64
}

// Gaussian is a normalized Gaussian kernel smoother with a fixed anchor term.
// The anchor keeps the denominator nonzero and pulls the field toward
// AnchorHeight away from any sample.
type Gaussian struct {
	Sigma        float64
	AnchorHeight float64
	AnchorWeight float64
}

// DefaultGaussian returns the kernel used for the rendered and collision surfaces.
func DefaultGaussian() Gaussian {
	return Gaussian{Sigma: 0.3, AnchorHeight: -1, AnchorWeight: 1}
}

// Height implements Kernel.
func (k Gaussian) Height(x, y float64, points []Point) float64 {
	num := k.AnchorWeight * k.AnchorHeight
	den := k.AnchorWeight
	s2 := k.Sigma * k.Sigma

	for _, p := range points {
		dx := x - p.X
		dy := y - p.Y
		w := math.Exp(-(dx*dx + dy*dy) / s2)
		num += w * p.Z
		den += w
	}

	if den == 0 {
		return k.AnchorHeight
	}
	return num / den
}

// InverseDistance is inverse-distance weighting with a linear fade toward
// AnchorHeight near the domain corners.
type InverseDistance struct {
	Power        float64
	AnchorHeight float64
	FadeStart    float64 // normalized radius in [0,1) where the fade begins
}

// coincident is the squared distance under which a node snaps to a sample.
const coincident = 1e-12

// Height implements Kernel.
func (k InverseDistance) Height(x, y float64, points []Point) float64 {
	if len(points) == 0 {
		return k.AnchorHeight
	}

	var num, den float64
	h := math.NaN()
	for _, p := range points {
		dx := x - p.X
		dy := y - p.Y
		d2 := dx*dx + dy*dy
		if d2 < coincident {
			h = p.Z
			break
		}
		w := 1 / math.Pow(d2, k.Power/2)
		num += w * p.Z
		den += w
	}
	if math.IsNaN(h) {
		h = num / den
	}

	// r is 0 at the centre and 1 at the corners of [-1,1]².
	r := math.Sqrt(x*x+y*y) / math.Sqrt2
	if r > k.FadeStart && k.FadeStart < 1 {
		t := math.Min((r-k.FadeStart)/(1-k.FadeStart), 1)
		h = h*(1-t) + k.AnchorHeight*t
	}
	return h
}

// KernelOptions carries the tunables for KernelFromName.
type KernelOptions struct {
	Sigma        float64
	AnchorHeight float64
	AnchorWeight float64
	IDWPower     float64
	FadeStart    float64
}

// KernelFromName returns the kernel for a policy name ("gaussian" or "idw").
// Unknown names fall back to the Gaussian kernel.
func KernelFromName(name string, o KernelOptions) Kernel {
	switch name {
	case "idw":
		return InverseDistance{Power: o.IDWPower, AnchorHeight: o.AnchorHeight, FadeStart: o.FadeStart}
	case "gaussian", "":
	default:
		slog.Warn("unknown terrain kernel, using gaussian", "kernel", name)
	}
	return Gaussian{Sigma: o.Sigma, AnchorHeight: o.AnchorHeight, AnchorWeight: o.AnchorWeight}
}

// BuildHeightGrid evaluates k at every node of a resolution×resolution grid
// over [-1,1]². Output is deterministic for a given input and always has
// resolution² entries. A non-positive resolution uses DefaultResolution.
func BuildHeightGrid(points []Point, resolution int, k Kernel) *HeightGrid {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	if k == nil {
		k = DefaultGaussian()
	}

	g := &HeightGrid{
		Resolution: resolution,
		Min:        DomainMin,
		Max:        DomainMax,
		Heights:    make([]float32, resolution*resolution),
	}

	// Node positions are computed in float64 so the kernel sees exact
	// coordinates; NodePosition reports the float32 equivalent.
	step := 0.0
	if resolution > 1 {
		step = (DomainMax - DomainMin) / float64(resolution-1)
	}
	for row := 0; row < resolution; row++ {
		for col := 0; col < resolution; col++ {
			x := DomainMin + float64(col)*step
			y := DomainMin + float64(row)*step
			if resolution == 1 {
				x, y = 0, 0
			}
			g.Heights[row*resolution+col] = float32(k.Height(x, y, points))
		}
	}

	return g
}
