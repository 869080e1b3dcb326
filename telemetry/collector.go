package telemetry

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float32

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	spawned  int
	rejected int
	resets   int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	ticksPerWindow := int32(windowDurationSec / float64(dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordSpawn records n particles added to the store.
func (c *Collector) RecordSpawn(n int) {
	c.spawned += n
}

// RecordRejected records an add refused because the store was full.
func (c *Collector) RecordRejected() {
	c.rejected++
}

// RecordReset records a store reset.
func (c *Collector) RecordReset() {
	c.resets++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, count, capacity int, summary ParticleSummary, overflows uint64) WindowStats {
	speed := ComputeSpeedStats(summary.Speeds)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * float64(c.dt),

		Particles: count,
		Capacity:  capacity,

		Spawned:  c.spawned,
		Rejected: c.rejected,
		Resets:   c.resets,

		CellOverflows: overflows,

		SpeedMean: speed.Mean,
		SpeedStd:  speed.Std,
		SpeedP10:  speed.P10,
		SpeedP50:  speed.P50,
		SpeedP90:  speed.P90,
		SpeedMax:  speed.Max,

		KineticEnergy: summary.KineticEnergy,
		MeanHeight:    summary.MeanHeight,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.spawned = 0
	c.rejected = 0
	c.resets = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
