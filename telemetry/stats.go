package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/mod1/particles"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Particles int `csv:"particles"`
	Capacity  int `csv:"capacity"`

	// Events during window
	Spawned  int `csv:"spawned"`
	Rejected int `csv:"rejected"` // adds refused at capacity
	Resets   int `csv:"resets"`

	// Cumulative binning drops reported by the device
	CellOverflows uint64 `csv:"cell_overflows"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Energy and height
	KineticEnergy float64 `csv:"kinetic_energy"`
	MeanHeight    float64 `csv:"mean_height"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// SpeedStats summarizes a set of speeds.
type SpeedStats struct {
	Mean, Std, P10, P50, P90, Max float64
}

// ComputeSpeedStats calculates mean, population std, percentiles and max.
func ComputeSpeedStats(values []float64) SpeedStats {
	if len(values) == 0 {
		return SpeedStats{}
	}

	mean, std := stat.PopMeanStdDev(values, nil)

	// Sort for percentiles
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return SpeedStats{
		Mean: mean,
		Std:  std,
		P10:  Percentile(sorted, 0.10),
		P50:  Percentile(sorted, 0.50),
		P90:  Percentile(sorted, 0.90),
		Max:  floats.Max(sorted),
	}
}

// ParticleSummary holds per-frame aggregates of a particle read-back.
type ParticleSummary struct {
	Speeds        []float64
	KineticEnergy float64
	MeanHeight    float64
}

// SummarizeParticles extracts speeds, total kinetic energy and mean z.
func SummarizeParticles(ps []particles.Particle) ParticleSummary {
	if len(ps) == 0 {
		return ParticleSummary{}
	}
	speeds := make([]float64, len(ps))
	kinetic := make([]float64, len(ps))
	heights := make([]float64, len(ps))
	for i := range ps {
		v := float64(ps[i].Speed())
		speeds[i] = v
		kinetic[i] = 0.5 * float64(ps[i].Mass) * v * v
		heights[i] = float64(ps[i].Position[2])
	}
	return ParticleSummary{
		Speeds:        speeds,
		KineticEnergy: floats.Sum(kinetic),
		MeanHeight:    stat.Mean(heights, nil),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("particles", s.Particles),
		slog.Int("capacity", s.Capacity),
		slog.Int("spawned", s.Spawned),
		slog.Int("rejected", s.Rejected),
		slog.Int("resets", s.Resets),
		slog.Uint64("cell_overflows", s.CellOverflows),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("mean_height", s.MeanHeight),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"particles", s.Particles,
		"spawned", s.Spawned,
		"rejected", s.Rejected,
		"resets", s.Resets,
		"cell_overflows", s.CellOverflows,
		"speed_mean", s.SpeedMean,
		"speed_p50", s.SpeedP50,
		"speed_max", s.SpeedMax,
		"kinetic_energy", s.KineticEnergy,
	)
}
