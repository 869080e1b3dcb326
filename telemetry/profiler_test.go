package telemetry

import (
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pthm-cable/mod1/particles"
)

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// runStep profiles one step with the given stage durations, in order.
func runStep(p *StageProfiler, c *fakeClock, stages []string, durs []time.Duration, count int, dev particles.DeviceStats) {
	p.BeginStep()
	for i, name := range stages {
		p.BeginStage(name)
		c.Advance(durs[i])
	}
	p.EndStep(count, dev)
}

func TestStageProfilerTimesStages(t *testing.T) {
	clock := newFakeClock()
	p := NewStageProfiler(10, clock.Now)

	collide := particles.StageCollideParticles.String()
	stages := []string{particles.StageIntegrate.String(), collide, StageReadBack}
	durs := []time.Duration{100 * time.Microsecond, 300 * time.Microsecond, 100 * time.Microsecond}

	for i := 1; i <= 4; i++ {
		runStep(p, clock, stages, durs, 20, particles.DeviceStats{Dispatches: uint64(5 * i)})
	}

	s := p.Summary()
	if s.Steps != 4 {
		t.Fatalf("Steps = %d, want 4", s.Steps)
	}
	if s.AvgStep != 500*time.Microsecond || s.MinStep != s.AvgStep || s.MaxStep != s.AvgStep {
		t.Errorf("step = avg %v min %v max %v, want 500µs", s.AvgStep, s.MinStep, s.MaxStep)
	}
	if s.StageAvg[collide] != 300*time.Microsecond {
		t.Errorf("collide avg = %v, want 300µs", s.StageAvg[collide])
	}

	tests := []struct {
		stage string
		share float64
	}{
		{particles.StageIntegrate.String(), 20},
		{collide, 60},
		{StageReadBack, 20},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			if math.Abs(s.StageShare[tt.stage]-tt.share) > 1e-9 {
				t.Errorf("share = %v, want %v", s.StageShare[tt.stage], tt.share)
			}
		})
	}
	if math.Abs(s.StepsPerSecond-2000) > 1e-6 {
		t.Errorf("StepsPerSecond = %v, want 2000", s.StepsPerSecond)
	}
}

func TestStageProfilerDeviceDeltas(t *testing.T) {
	clock := newFakeClock()
	p := NewStageProfiler(10, clock.Now)
	stage := []string{particles.StageBinParticles.String()}
	dur := []time.Duration{time.Millisecond}

	// Cumulative device counters: five dispatches per step, overflows
	// only in the second step.
	runStep(p, clock, stage, dur, 10, particles.DeviceStats{Dispatches: 5})
	runStep(p, clock, stage, dur, 30, particles.DeviceStats{Dispatches: 10, CellOverflows: 7})
	runStep(p, clock, stage, dur, 50, particles.DeviceStats{Dispatches: 15, CellOverflows: 7})

	steps := p.Steps()
	wantOverflows := []uint64{0, 7, 0}
	for i, st := range steps {
		if st.Dispatches != 5 {
			t.Errorf("step %d dispatches = %d, want 5", i, st.Dispatches)
		}
		if st.Overflows != wantOverflows[i] {
			t.Errorf("step %d overflows = %d, want %d", i, st.Overflows, wantOverflows[i])
		}
	}

	s := p.Summary()
	if s.DispatchesPerStep != 5 {
		t.Errorf("DispatchesPerStep = %v, want 5", s.DispatchesPerStep)
	}
	if s.Overflows != 7 {
		t.Errorf("Overflows = %d, want 7", s.Overflows)
	}
	if s.AvgParticles != 30 {
		t.Errorf("AvgParticles = %v, want 30", s.AvgParticles)
	}

	// A device that was reallocated starts counting from zero again.
	runStep(p, clock, stage, dur, 50, particles.DeviceStats{Dispatches: 5})
	if last := p.Steps()[3]; last.Dispatches != 5 {
		t.Errorf("dispatches after restart = %d, want 5", last.Dispatches)
	}
}

func TestStageProfilerWindowRolls(t *testing.T) {
	clock := newFakeClock()
	p := NewStageProfiler(3, clock.Now)
	stage := []string{StageBroadcast}

	for i := 1; i <= 5; i++ {
		runStep(p, clock, stage, []time.Duration{time.Duration(i) * time.Millisecond}, i, particles.DeviceStats{})
	}

	steps := p.Steps()
	if len(steps) != 3 {
		t.Fatalf("window holds %d steps, want 3", len(steps))
	}
	for i, st := range steps {
		if want := time.Duration(i+3) * time.Millisecond; st.Elapsed != want {
			t.Errorf("step %d elapsed = %v, want %v", i, st.Elapsed, want)
		}
	}
	s := p.Summary()
	if s.MinStep != 3*time.Millisecond || s.MaxStep != 5*time.Millisecond || s.AvgStep != 4*time.Millisecond {
		t.Errorf("min/avg/max = %v/%v/%v, want 3ms/4ms/5ms", s.MinStep, s.AvgStep, s.MaxStep)
	}
}

func TestStageProfilerEmpty(t *testing.T) {
	p := NewStageProfiler(0, newFakeClock().Now)
	s := p.Summary()
	if s.Steps != 0 || s.AvgStep != 0 || len(s.StageAvg) != 0 {
		t.Errorf("empty summary = %+v", s)
	}
	// EndStep without BeginStep records nothing.
	p.EndStep(3, particles.DeviceStats{Dispatches: 5})
	if len(p.Steps()) != 0 {
		t.Error("unopened step was recorded")
	}
}

func TestStageProfilerFrames(t *testing.T) {
	clock := newFakeClock()
	p := NewStageProfiler(10, clock.Now)

	p.MarkFrame()
	if p.Summary().FPS != 0 {
		t.Error("one frame should not report FPS")
	}
	clock.Advance(20 * time.Millisecond)
	p.MarkFrame()

	s := p.Summary()
	if s.Frame != 20*time.Millisecond || math.Abs(s.FPS-50) > 1e-9 {
		t.Errorf("frame = %v fps = %v, want 20ms 50", s.Frame, s.FPS)
	}
}

func TestStageSummaryExport(t *testing.T) {
	clock := newFakeClock()
	p := NewStageProfiler(4, clock.Now)
	stages := []string{particles.StageCollideTerrain.String(), StageReadBack}
	durs := []time.Duration{2 * time.Millisecond, time.Millisecond}
	runStep(p, clock, stages, durs, 8, particles.DeviceStats{Dispatches: 5, CellOverflows: 2})

	row := p.Summary().ToCSV(42)
	if row.WindowEnd != 42 || row.Steps != 1 || row.AvgStepUS != 3000 {
		t.Errorf("row = %+v", row)
	}
	if row.CollideTerrainUS != 2000 || row.ReadBackUS != 1000 || row.IntegrateUS != 0 {
		t.Errorf("stage columns = %+v", row)
	}
	if row.Overflows != 2 || row.DispatchesPerStep != 5 {
		t.Errorf("device columns = %+v", row)
	}

	var buf strings.Builder
	slog.New(slog.NewTextHandler(&buf, nil)).Info("stage timings", "perf", p.Summary())
	for _, want := range []string{"perf.avg_step_us=3000", "perf.overflows=2", "perf.collide_terrain_us=2000"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log line %q missing %q", buf.String(), want)
		}
	}
}

func TestTimedStagesOrder(t *testing.T) {
	want := []string{"clear_grid", "bin_particles", "integrate", "collide_particles", "collide_terrain", "readback", "broadcast"}
	if len(TimedStages) != len(want) {
		t.Fatalf("TimedStages = %v", TimedStages)
	}
	for i := range want {
		if TimedStages[i] != want[i] {
			t.Errorf("stage %d = %q, want %q", i, TimedStages[i], want[i])
		}
	}
}
