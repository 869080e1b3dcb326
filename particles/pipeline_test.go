package particles

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/pthm-cable/mod1/terrain"
)

var gravity = Vec3{0, 0, -9.8}

type failingDevice struct {
	*CPUDevice
}

func (d failingDevice) Build() error { return errors.New("compiler exploded") }

type stageLog struct {
	stages []string
}

func (l *stageLog) BeginStage(name string) { l.stages = append(l.stages, name) }

func spawnRandom(t *testing.T, s *Store, n int, rng *rand.Rand) {
	t.Helper()
	for i := 0; i < n; i++ {
		pos := Vec3{rng.Float32()*1.8 - 0.9, rng.Float32()*1.8 - 0.9, rng.Float32()*1.8 - 0.9}
		vel := Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
		if err := s.AddParticle(pos, vel, 0, 0); err != nil {
			t.Fatalf("AddParticle: %v", err)
		}
	}
}

func hillSurface() *terrain.HeightGrid {
	pts := []terrain.Point{
		{X: 0, Y: 0, Z: 0.5},
		{X: -0.5, Y: 0.5, Z: 0.1},
		{X: 0.6, Y: -0.4, Z: -0.2},
	}
	return terrain.BuildHeightGrid(pts, 20, terrain.DefaultGaussian())
}

func TestPipelineDisabledOnBuildFailure(t *testing.T) {
	cpu := NewCPUDevice(1)
	dev := failingDevice{cpu}
	s, err := NewStore(dev, DefaultStoreConfig())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_ = s.AddParticle(Vec3{0, 0, 0.5}, Vec3{1, 0, 0}, 0, 0)

	p := NewPipeline(dev)
	if p.Enabled() {
		t.Fatal("pipeline enabled after build failure")
	}
	if p.BuildError() == nil {
		t.Error("BuildError is nil")
	}

	for i := 0; i < 5; i++ {
		if err := p.Step(s, 0.016, gravity); err != nil {
			t.Fatalf("Step on disabled pipeline: %v", err)
		}
	}
	if got := readAll(t, s)[0].Position; got != (Vec3{0, 0, 0.5}) {
		t.Errorf("position moved to %v on disabled pipeline", got)
	}
	if cpu.Stats().Dispatches != 0 {
		t.Errorf("dispatches = %d, want 0", cpu.Stats().Dispatches)
	}
}

func TestStepEmptyStoreIsNoop(t *testing.T) {
	s := newTestStore(t, 10)
	p := NewPipeline(s.Device())

	if err := p.Step(s, 0.016, gravity); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if d := s.Device().Stats().Dispatches; d != 0 {
		t.Errorf("dispatches = %d, want 0", d)
	}
	if p.Steps() != 0 {
		t.Errorf("Steps = %d, want 0", p.Steps())
	}
}

func TestStepReportsStages(t *testing.T) {
	s := newTestStore(t, 10)
	log := &stageLog{}
	p := NewPipeline(s.Device(), WithStageObserver(log))
	_ = s.AddParticle(Vec3{0, 0, 0.5}, Vec3{}, 0, 0)

	if err := p.Step(s, 0.016, gravity); err != nil {
		t.Fatalf("Step: %v", err)
	}
	want := []string{"clear_grid", "bin_particles", "integrate", "collide_particles", "collide_terrain"}
	if len(log.stages) != len(want) {
		t.Fatalf("stages = %v, want %v", log.stages, want)
	}
	for i := range want {
		if log.stages[i] != want[i] {
			t.Errorf("stage %d = %q, want %q", i, log.stages[i], want[i])
		}
	}
	if d := s.Device().Stats().Dispatches; d != 5 {
		t.Errorf("dispatches = %d, want 5", d)
	}
}

func TestIntegrateFreeFall(t *testing.T) {
	s := newTestStore(t, 1)
	p := NewPipeline(s.Device())
	_ = s.AddParticle(Vec3{0, 0, 0.5}, Vec3{0.5, 0, 0}, 0, 0)

	// Above the flat zero surface for the whole step.
	if err := p.Step(s, 0.01, gravity); err != nil {
		t.Fatalf("Step: %v", err)
	}
	q := readAll(t, s)[0]

	wantVz := float32(-0.098)
	wantZ := 0.5 + wantVz*0.01
	if math.Abs(float64(q.Velocity[2]-wantVz)) > 1e-6 {
		t.Errorf("vz = %v, want %v", q.Velocity[2], wantVz)
	}
	if math.Abs(float64(q.Position[2]-wantZ)) > 1e-6 {
		t.Errorf("z = %v, want %v", q.Position[2], wantZ)
	}
	if math.Abs(float64(q.Position[0]-0.005)) > 1e-6 {
		t.Errorf("x = %v, want 0.005", q.Position[0])
	}
}

func TestCollisionAcrossCellBorder(t *testing.T) {
	s := newTestStore(t, 2)
	p := NewPipeline(s.Device())
	if err := s.UpdateTerrainSurface(terrain.NewFlatGrid(5, -1)); err != nil {
		t.Fatal(err)
	}

	// The x = 0 plane is a cell border for a 32-cell grid over [-1,1].
	a, b := Vec3{-0.02, 0, 0}, Vec3{0.02, 0, 0}
	grid := s.Device().(*CPUDevice).Grid()
	grid.CellSize = s.Config().CellSize()
	grid.Min = Vec3{-1, -1, -1}
	if grid.CellOf(a) == grid.CellOf(b) {
		t.Fatal("test particles share a cell")
	}

	_ = s.AddParticle(a, Vec3{1, 0, 0}, 0.03, 1)
	_ = s.AddParticle(b, Vec3{-1, 0, 0}, 0.03, 1)

	if err := p.Step(s, 0.001, Vec3{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	ps := readAll(t, s)

	// Equal masses, e = 0.6: approach speed 2 leaves at 1.2.
	if math.Abs(float64(ps[0].Velocity[0]+0.6)) > 1e-4 {
		t.Errorf("a.vx = %v, want -0.6", ps[0].Velocity[0])
	}
	if math.Abs(float64(ps[1].Velocity[0]-0.6)) > 1e-4 {
		t.Errorf("b.vx = %v, want 0.6", ps[1].Velocity[0])
	}
	if gap := ps[1].Position[0] - ps[0].Position[0]; math.Abs(float64(gap-0.06)) > 1e-4 {
		t.Errorf("separation = %v, want 0.06", gap)
	}
}

func TestLargestRadiusPairSeparates(t *testing.T) {
	s := newTestStore(t, 2)
	p := NewPipeline(s.Device())
	if err := s.UpdateTerrainSurface(terrain.NewFlatGrid(5, -1)); err != nil {
		t.Fatal(err)
	}

	// At MaxRadius the reach equals one cell, so the widest overlapping
	// pair still sits in neighbouring cells.
	r := s.Config().MaxRadius()
	a, b := Vec3{-0.0001, 0, 0}, Vec3{0.062, 0, 0}
	if err := s.AddParticle(a, Vec3{}, r, 1); err != nil {
		t.Fatalf("AddParticle: %v", err)
	}
	if err := s.AddParticle(b, Vec3{}, r, 1); err != nil {
		t.Fatalf("AddParticle: %v", err)
	}

	if err := p.Step(s, 0.001, Vec3{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	ps := readAll(t, s)
	if d := ps[1].Position.Sub(ps[0].Position).Len(); d < 2*r-1e-5 {
		t.Errorf("distance after step = %v, want >= %v", d, 2*r)
	}
}

func TestCoincidentParticlesSeparate(t *testing.T) {
	s := newTestStore(t, 2)
	p := NewPipeline(s.Device())
	if err := s.UpdateTerrainSurface(terrain.NewFlatGrid(5, -1)); err != nil {
		t.Fatal(err)
	}
	_ = s.AddParticle(Vec3{0.1, 0.1, 0}, Vec3{}, 0.03, 1)
	_ = s.AddParticle(Vec3{0.1, 0.1, 0}, Vec3{}, 0.03, 1)

	if err := p.Step(s, 0.001, Vec3{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	ps := readAll(t, s)
	if !(ps[1].Position[2] > ps[0].Position[2]) {
		t.Errorf("higher id should move up: z0=%v z1=%v", ps[0].Position[2], ps[1].Position[2])
	}
	if d := ps[1].Position.Sub(ps[0].Position).Len(); math.Abs(float64(d-0.06)) > 1e-5 {
		t.Errorf("separation = %v, want 0.06", d)
	}
}

func TestTerrainBounceAndFriction(t *testing.T) {
	s := newTestStore(t, 1)
	p := NewPipeline(s.Device())
	if err := s.UpdateTerrainSurface(terrain.NewFlatGrid(5, -0.5)); err != nil {
		t.Fatal(err)
	}
	_ = s.AddParticle(Vec3{0, 0, -0.48}, Vec3{0.5, 0, -2}, 0.03, 1)

	if err := p.Step(s, 0.01, Vec3{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	q := readAll(t, s)[0]

	if math.Abs(float64(q.Position[2]+0.47)) > 1e-5 {
		t.Errorf("z = %v, want -0.47 (surface + radius)", q.Position[2])
	}
	if math.Abs(float64(q.Velocity[2]-1.2)) > 1e-5 {
		t.Errorf("vz = %v, want 1.2", q.Velocity[2])
	}
	// Friction budget 0.8*3.2 exceeds the tangential speed, so it stops.
	if math.Abs(float64(q.Velocity[0])) > 1e-5 {
		t.Errorf("vx = %v, want 0", q.Velocity[0])
	}
}

func TestTerrainStageNeverAddsSpeed(t *testing.T) {
	s := newTestStore(t, 300)
	dev := s.Device()
	NewPipeline(dev)
	if err := s.UpdateTerrainSurface(hillSurface()); err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 300; i++ {
		pos := Vec3{rng.Float32()*2.4 - 1.2, rng.Float32()*2.4 - 1.2, rng.Float32()*2.4 - 1.2}
		vel := Vec3{rng.Float32()*8 - 4, rng.Float32()*8 - 4, rng.Float32()*8 - 4}
		_ = s.AddParticle(pos, vel, 0, 0)
	}
	before := readAll(t, s)

	if err := s.UpdateSimulationParameters(0.016, gravity); err != nil {
		t.Fatal(err)
	}
	if err := dev.Dispatch(StageCollideTerrain, s.Count()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	after := readAll(t, s)

	for i := range after {
		if a, b := after[i].Speed(), before[i].Speed(); a > b*(1+1e-5)+1e-6 {
			t.Errorf("particle %d speed grew %v -> %v", i, b, a)
		}
	}
}

func TestLongRunInvariants(t *testing.T) {
	s := newTestStore(t, 200)
	p := NewPipeline(s.Device())
	if err := s.UpdateTerrainSurface(hillSurface()); err != nil {
		t.Fatal(err)
	}
	spawnRandom(t, s, 200, rand.New(rand.NewPCG(3, 4)))

	for step := 0; step < 300; step++ {
		if err := p.Step(s, 0.016, gravity); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}

	ps := readAll(t, s)
	if len(ps) != s.Count() || s.Count() != 200 {
		t.Fatalf("read back %d records, count %d", len(ps), s.Count())
	}

	const eps = 1e-4
	for i, q := range ps {
		if q.ID != uint32(i) {
			t.Errorf("slot %d holds id %d", i, q.ID)
		}
		for k := 0; k < 3; k++ {
			v := q.Position[k]
			if math.IsNaN(float64(v)) || v < -1-eps || v > 1+eps {
				t.Errorf("particle %d axis %d at %v outside world", i, k, v)
			}
		}
		if sp := q.Speed(); math.IsNaN(float64(sp)) || sp > 20 {
			t.Errorf("particle %d speed %v", i, sp)
		}
	}
}

func TestBinningOverflowIsCounted(t *testing.T) {
	s := newTestStore(t, 40)
	p := NewPipeline(s.Device())
	for i := 0; i < 40; i++ {
		_ = s.AddParticle(Vec3{0.5, 0.5, 0.5}, Vec3{}, 0, 0)
	}

	if err := p.Step(s, 0.001, Vec3{}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := s.Device().Stats().CellOverflows; got != 8 {
		t.Errorf("overflows = %d, want 8", got)
	}

	dev := s.Device().(*CPUDevice)
	if err := dev.Dispatch(StageClearGrid, dev.Grid().NumCells()); err != nil {
		t.Fatal(err)
	}
	for c := 0; c < dev.Grid().NumCells(); c++ {
		if dev.Grid().Count(c) != 0 {
			t.Fatalf("cell %d not cleared", c)
		}
	}
}

func TestNewDevice(t *testing.T) {
	d, err := NewDevice("cpu")
	if err != nil || d.Name() != "cpu" {
		t.Errorf("NewDevice(cpu) = %v, %v", d, err)
	}
	if _, err := NewDevice("quantum"); err == nil {
		t.Error("expected error for unknown backend")
	}
}
