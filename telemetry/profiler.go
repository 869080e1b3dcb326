// Package telemetry provides stage profiling, particle statistics, CSV output and snapshots.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/mod1/particles"
)

// Host-side stages timed after the device pipeline.
const (
	StageReadBack  = "readback"
	StageBroadcast = "broadcast"
)

// TimedStages lists every profiled stage in step order: the five device
// stages followed by the host stages.
var TimedStages = func() []string {
	names := make([]string, 0, len(particles.Stages)+2)
	for _, s := range particles.Stages {
		names = append(names, s.String())
	}
	return append(names, StageReadBack, StageBroadcast)
}()

// Clock reports the current time.
type Clock func() time.Time

// StepProfile is what one simulation step cost and what the device did
// during it.
type StepProfile struct {
	Elapsed    time.Duration
	Stages     map[string]time.Duration
	Particles  int
	Dispatches uint64
	Overflows  uint64
}

// StageProfiler keeps the last N step profiles in a ring.
type StageProfiler struct {
	now  Clock
	ring []StepProfile
	next int
	full bool

	current    StepProfile
	stepStart  time.Time
	stage      string
	stageStart time.Time
	device     particles.DeviceStats

	lastFrame time.Time
	frame     time.Duration
}

// NewStageProfiler keeps window steps. A nil clock uses time.Now.
func NewStageProfiler(window int, clock Clock) *StageProfiler {
	if window < 1 {
		window = 60
	}
	if clock == nil {
		clock = time.Now
	}
	return &StageProfiler{now: clock, ring: make([]StepProfile, window)}
}

// BeginStep opens a new step.
func (p *StageProfiler) BeginStep() {
	p.stepStart = p.now()
	p.current = StepProfile{Stages: make(map[string]time.Duration, len(TimedStages))}
	p.stage = ""
}

// BeginStage closes the running stage, if any, and opens name.
func (p *StageProfiler) BeginStage(name string) {
	now := p.now()
	p.closeStage(now)
	p.stage = name
	p.stageStart = now
}

func (p *StageProfiler) closeStage(now time.Time) {
	if p.stage != "" && p.current.Stages != nil {
		p.current.Stages[p.stage] += now.Sub(p.stageStart)
	}
	p.stage = ""
}

// EndStep closes the step. dev carries the device's cumulative counters;
// the profile keeps the change since the previous step.
func (p *StageProfiler) EndStep(count int, dev particles.DeviceStats) {
	if p.current.Stages == nil {
		return
	}
	now := p.now()
	p.closeStage(now)

	p.current.Elapsed = now.Sub(p.stepStart)
	p.current.Particles = count
	p.current.Dispatches = counterDelta(dev.Dispatches, p.device.Dispatches)
	p.current.Overflows = counterDelta(dev.CellOverflows, p.device.CellOverflows)
	p.device = dev

	p.ring[p.next] = p.current
	p.next++
	if p.next == len(p.ring) {
		p.next = 0
		p.full = true
	}
	p.current = StepProfile{}
}

// counterDelta treats a counter that went backwards as restarted.
func counterDelta(now, prev uint64) uint64 {
	if now < prev {
		return now
	}
	return now - prev
}

// MarkFrame records one rendered frame.
func (p *StageProfiler) MarkFrame() {
	now := p.now()
	if !p.lastFrame.IsZero() {
		p.frame = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// Steps returns the recorded profiles, oldest first.
func (p *StageProfiler) Steps() []StepProfile {
	if !p.full {
		return append([]StepProfile(nil), p.ring[:p.next]...)
	}
	out := make([]StepProfile, 0, len(p.ring))
	out = append(out, p.ring[p.next:]...)
	return append(out, p.ring[:p.next]...)
}

// StageSummary aggregates the profiler window.
type StageSummary struct {
	Steps   int
	AvgStep time.Duration
	MinStep time.Duration
	MaxStep time.Duration

	StageAvg   map[string]time.Duration
	StageShare map[string]float64 // percent of AvgStep

	StepsPerSecond    float64
	AvgParticles      float64
	DispatchesPerStep float64
	Overflows         uint64 // bin attempts dropped across the window

	Frame time.Duration
	FPS   float64
}

// Summary aggregates the steps currently in the window.
func (p *StageProfiler) Summary() StageSummary {
	sum := StageSummary{
		StageAvg:   make(map[string]time.Duration),
		StageShare: make(map[string]float64),
		Frame:      p.frame,
	}
	if p.frame > 0 {
		sum.FPS = float64(time.Second) / float64(p.frame)
	}

	steps := p.Steps()
	if len(steps) == 0 {
		return sum
	}
	sum.Steps = len(steps)
	n := time.Duration(len(steps))

	var total time.Duration
	var particleSum, dispatchSum uint64
	stageTotal := make(map[string]time.Duration)
	for i, s := range steps {
		total += s.Elapsed
		if i == 0 || s.Elapsed < sum.MinStep {
			sum.MinStep = s.Elapsed
		}
		sum.MaxStep = max(sum.MaxStep, s.Elapsed)
		particleSum += uint64(s.Particles)
		dispatchSum += s.Dispatches
		sum.Overflows += s.Overflows
		for name, d := range s.Stages {
			stageTotal[name] += d
		}
	}

	sum.AvgStep = total / n
	sum.AvgParticles = float64(particleSum) / float64(len(steps))
	sum.DispatchesPerStep = float64(dispatchSum) / float64(len(steps))
	if sum.AvgStep > 0 {
		sum.StepsPerSecond = float64(time.Second) / float64(sum.AvgStep)
	}
	for name, d := range stageTotal {
		avg := d / n
		sum.StageAvg[name] = avg
		if sum.AvgStep > 0 {
			sum.StageShare[name] = float64(avg) / float64(sum.AvgStep) * 100
		}
	}
	return sum
}

// LogValue implements slog.LogValuer.
func (s StageSummary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("steps", s.Steps),
		slog.Int64("avg_step_us", s.AvgStep.Microseconds()),
		slog.Int64("max_step_us", s.MaxStep.Microseconds()),
		slog.Float64("avg_particles", s.AvgParticles),
		slog.Float64("dispatches_per_step", s.DispatchesPerStep),
		slog.Uint64("overflows", s.Overflows),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Int("fps", int(s.FPS)))
	}
	for _, name := range TimedStages {
		if d, ok := s.StageAvg[name]; ok {
			attrs = append(attrs, slog.Int64(name+"_us", d.Microseconds()))
		}
	}
	return slog.GroupValue(attrs...)
}

// StageSummaryCSV is one perf.csv row.
type StageSummaryCSV struct {
	WindowEnd         int32   `csv:"window_end"`
	Steps             int     `csv:"steps"`
	AvgStepUS         int64   `csv:"avg_step_us"`
	MinStepUS         int64   `csv:"min_step_us"`
	MaxStepUS         int64   `csv:"max_step_us"`
	FPS               float64 `csv:"fps"`
	AvgParticles      float64 `csv:"avg_particles"`
	DispatchesPerStep float64 `csv:"dispatches_per_step"`
	Overflows         uint64  `csv:"overflows"`
	ClearGridUS       int64   `csv:"clear_grid_us"`
	BinParticlesUS    int64   `csv:"bin_particles_us"`
	IntegrateUS       int64   `csv:"integrate_us"`
	CollideParticleUS int64   `csv:"collide_particles_us"`
	CollideTerrainUS  int64   `csv:"collide_terrain_us"`
	ReadBackUS        int64   `csv:"readback_us"`
	BroadcastUS       int64   `csv:"broadcast_us"`
}

// ToCSV flattens the summary for perf.csv.
func (s StageSummary) ToCSV(windowEnd int32) StageSummaryCSV {
	us := func(name string) int64 { return s.StageAvg[name].Microseconds() }
	return StageSummaryCSV{
		WindowEnd:         windowEnd,
		Steps:             s.Steps,
		AvgStepUS:         s.AvgStep.Microseconds(),
		MinStepUS:         s.MinStep.Microseconds(),
		MaxStepUS:         s.MaxStep.Microseconds(),
		FPS:               s.FPS,
		AvgParticles:      s.AvgParticles,
		DispatchesPerStep: s.DispatchesPerStep,
		Overflows:         s.Overflows,
		ClearGridUS:       us(particles.StageClearGrid.String()),
		BinParticlesUS:    us(particles.StageBinParticles.String()),
		IntegrateUS:       us(particles.StageIntegrate.String()),
		CollideParticleUS: us(particles.StageCollideParticles.String()),
		CollideTerrainUS:  us(particles.StageCollideTerrain.String()),
		ReadBackUS:        us(StageReadBack),
		BroadcastUS:       us(StageBroadcast),
	}
}
