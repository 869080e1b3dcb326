package main

import (
	"github.com/pthm-cable/mod1/config"
)

// ParamSpec defines a single tunable kernel parameter.
type ParamSpec struct {
	Name string  // Human-readable name
	Path string  // Config path for logging
	Min  float64 // Lower bound
	Max  float64 // Upper bound
}

// ParamVector holds the parameters tuned for one kernel.
type ParamVector struct {
	Kernel string
	Specs  []ParamSpec
}

// NewParamVector returns the tunables of the named kernel.
// Anything but "idw" tunes the Gaussian kernel.
func NewParamVector(kernel string) *ParamVector {
	if kernel == "idw" {
		return &ParamVector{
			Kernel: "idw",
			Specs: []ParamSpec{
				{Name: "idw_power", Path: "terrain.idw_power", Min: 0.5, Max: 6},
				{Name: "fade_start", Path: "terrain.fade_start", Min: 0, Max: 0.95},
			},
		}
	}
	return &ParamVector{
		Kernel: "gaussian",
		Specs: []ParamSpec{
			{Name: "sigma", Path: "terrain.sigma", Min: 0.05, Max: 1},
			{Name: "anchor_weight", Path: "terrain.anchor_weight", Min: 0, Max: 5},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// ExtractFromConfig reads the current values from cfg, clamped to bounds.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = *field(cfg, spec.Path)
	}
	return pv.Clamp(v)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig writes clamped values and the kernel name into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	cfg.Terrain.Kernel = pv.Kernel
	for i, v := range pv.Clamp(values) {
		*field(cfg, pv.Specs[i].Path) = v
	}
}

// field maps a spec path to its config field.
func field(cfg *config.Config, path string) *float64 {
	switch path {
	case "terrain.sigma":
		return &cfg.Terrain.Sigma
	case "terrain.anchor_weight":
		return &cfg.Terrain.AnchorWeight
	case "terrain.idw_power":
		return &cfg.Terrain.IDWPower
	case "terrain.fade_start":
		return &cfg.Terrain.FadeStart
	}
	panic("unknown parameter path: " + path)
}
