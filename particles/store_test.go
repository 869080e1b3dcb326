package particles

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/pthm-cable/mod1/terrain"
)

func newTestStore(t *testing.T, capacity int) *Store {
	t.Helper()
	dev := NewCPUDevice(2)
	cfg := DefaultStoreConfig()
	cfg.Capacity = capacity
	s, err := NewStore(dev, cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(dev.Release)
	return s
}

func readAll(t *testing.T, s *Store) []Particle {
	t.Helper()
	out, err := s.ReadBack(context.Background())
	if err != nil {
		t.Fatalf("ReadBack: %v", err)
	}
	return out
}

func TestAddParticleAssignsSlots(t *testing.T) {
	s := newTestStore(t, 4)

	for i := 0; i < 3; i++ {
		if err := s.AddParticle(Vec3{float32(i) * 0.1, 0, 0}, Vec3{}, 0, 0); err != nil {
			t.Fatalf("AddParticle %d: %v", i, err)
		}
	}
	if s.Count() != 3 {
		t.Fatalf("Count = %d, want 3", s.Count())
	}

	ps := readAll(t, s)
	for i, p := range ps {
		if p.ID != uint32(i) {
			t.Errorf("particle %d has id %d", i, p.ID)
		}
		if p.Radius != 0.03 || p.Mass != 1 {
			t.Errorf("particle %d defaults = (r %v, m %v), want (0.03, 1)", i, p.Radius, p.Mass)
		}
		if p.Force != (Vec3{}) {
			t.Errorf("particle %d force = %v", i, p.Force)
		}
	}
}

func TestAddParticleCapacity(t *testing.T) {
	s := newTestStore(t, 2)

	for i := 0; i < 2; i++ {
		if err := s.AddParticle(Vec3{}, Vec3{}, 0.05, 2); err != nil {
			t.Fatalf("AddParticle %d: %v", i, err)
		}
	}
	err := s.AddParticle(Vec3{}, Vec3{}, 0.05, 2)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if s.Count() != 2 {
		t.Errorf("Count = %d after rejected add, want 2", s.Count())
	}
	if got := len(readAll(t, s)); got != 2 {
		t.Errorf("read back %d records, want 2", got)
	}
}

func TestStoreReset(t *testing.T) {
	s := newTestStore(t, 8)
	for i := 0; i < 5; i++ {
		_ = s.AddParticle(Vec3{0.1, 0.1, 0.1}, Vec3{}, 0, 0)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.Count() != 0 || s.Capacity() != 8 {
		t.Errorf("after reset count=%d capacity=%d", s.Count(), s.Capacity())
	}
	if got := len(readAll(t, s)); got != 0 {
		t.Errorf("read back %d records after reset", got)
	}

	if err := s.AddParticle(Vec3{}, Vec3{}, 0, 0); err != nil {
		t.Fatalf("AddParticle after reset: %v", err)
	}
	if p := readAll(t, s)[0]; p.ID != 0 {
		t.Errorf("first id after reset = %d, want 0", p.ID)
	}
}

func TestUpdateSimulationParametersClampsDt(t *testing.T) {
	s := newTestStore(t, 1)

	tests := []struct {
		dt, want float32
	}{
		{0.005, 0.005},
		{0.5, 0.016},
		{-1, 0},
	}
	for _, tt := range tests {
		if err := s.UpdateSimulationParameters(tt.dt, Vec3{0, 0, -9.8}); err != nil {
			t.Fatalf("UpdateSimulationParameters: %v", err)
		}
		if got := s.Params().DeltaTime; got != tt.want {
			t.Errorf("dt %v -> %v, want %v", tt.dt, got, tt.want)
		}
	}
	if s.Params().Accel[2] != -9.8 {
		t.Errorf("accel = %v", s.Params().Accel)
	}
}

func TestUpdateTerrainSurfaceResizes(t *testing.T) {
	s := newTestStore(t, 1)
	dev := s.Device().(*CPUDevice)

	g := terrain.BuildHeightGrid([]terrain.Point{{X: 0.2, Y: -0.3, Z: 0.6}}, 7, terrain.DefaultGaussian())
	if err := s.UpdateTerrainSurface(g); err != nil {
		t.Fatalf("UpdateTerrainSurface: %v", err)
	}

	surf := dev.Surface()
	if surf.Resolution != 7 {
		t.Fatalf("device resolution = %d, want 7", surf.Resolution)
	}
	// The collision surface agrees with the render grid at every node.
	for row := 0; row < 7; row++ {
		for col := 0; col < 7; col++ {
			x, y := g.NodePosition(row, col)
			if got, want := surf.Sample(x, y), g.At(row, col); got-want > 1e-5 || want-got > 1e-5 {
				t.Errorf("node (%d,%d): device %v, grid %v", row, col, got, want)
			}
		}
	}

	if err := s.UpdateTerrainSurface(&terrain.HeightGrid{Resolution: 3, Heights: make([]float32, 4)}); err == nil {
		t.Error("expected error for mismatched height count")
	}
}

// blockingDevice holds reads until released.
type blockingDevice struct {
	*CPUDevice
	release chan struct{}
}

func (d *blockingDevice) ReadParticles(dst []Particle) error {
	<-d.release
	return d.CPUDevice.ReadParticles(dst)
}

func TestReadBackHonoursContext(t *testing.T) {
	dev := &blockingDevice{CPUDevice: NewCPUDevice(1), release: make(chan struct{})}
	defer close(dev.release)

	s, err := NewStore(dev, DefaultStoreConfig())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_ = s.AddParticle(Vec3{}, Vec3{}, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.ReadBack(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestNewStoreRejectsBadLayout(t *testing.T) {
	cfg := DefaultStoreConfig()
	cfg.GridSize = 0
	if _, err := NewStore(NewCPUDevice(1), cfg); err == nil {
		t.Error("expected error for zero grid size")
	}
}

func TestMutationWaitsForAbandonedReadBack(t *testing.T) {
	dev := &blockingDevice{CPUDevice: NewCPUDevice(1), release: make(chan struct{})}
	s, err := NewStore(dev, DefaultStoreConfig())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.AddParticle(Vec3{}, Vec3{}, 0, 0); err != nil {
		t.Fatalf("AddParticle: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadBack(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want Canceled", err)
	}

	added := make(chan error, 1)
	go func() {
		added <- s.AddParticle(Vec3{0.5, 0, 0}, Vec3{}, 0, 0)
	}()

	select {
	case err := <-added:
		t.Fatalf("AddParticle returned (%v) while the copy still held the buffer", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(dev.release)
	select {
	case err := <-added:
		if err != nil {
			t.Fatalf("AddParticle: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("AddParticle never resumed after the copy finished")
	}
	if s.Count() != 2 {
		t.Errorf("Count = %d, want 2", s.Count())
	}
	if ps := readAll(t, s); len(ps) != 2 || ps[1].Position[0] != 0.5 {
		t.Errorf("read back %+v", ps)
	}
}

func TestAddParticleRejectsOversizedRadius(t *testing.T) {
	s := newTestStore(t, 4)
	limit := s.Config().MaxRadius()
	if math.Abs(float64(limit-0.03125)) > 1e-7 {
		t.Fatalf("MaxRadius = %v, want 0.03125", limit)
	}

	tests := []struct {
		name   string
		radius float32
		ok     bool
	}{
		{"default", 0, true},
		{"at limit", limit, true},
		{"over limit", 0.05, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := s.Count()
			err := s.AddParticle(Vec3{}, Vec3{}, tt.radius, 1)
			if tt.ok {
				if err != nil {
					t.Fatalf("AddParticle: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrRadiusTooLarge) {
				t.Fatalf("err = %v, want ErrRadiusTooLarge", err)
			}
			if s.Count() != before {
				t.Errorf("Count = %d after rejection, want %d", s.Count(), before)
			}
		})
	}
}

func TestNewStoreRejectsOversizedDefaultRadius(t *testing.T) {
	cfg := DefaultStoreConfig()
	cfg.DefaultRadius = 0.05
	if _, err := NewStore(NewCPUDevice(1), cfg); !errors.Is(err, ErrRadiusTooLarge) {
		t.Errorf("err = %v, want ErrRadiusTooLarge", err)
	}
}
