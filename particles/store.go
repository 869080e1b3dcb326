package particles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/mod1/terrain"
)

// StoreConfig sizes a Store and supplies per-particle defaults.
type StoreConfig struct {
	Capacity      int
	GridSize      int
	CellCapacity  int
	WorldBounds   float32 // half-extent of the world cube
	TerrainRes    int
	MaxStep       float32 // dt clamp, seconds
	Restitution   float32
	Friction      float32
	DefaultRadius float32
	DefaultMass   float32
}

// DefaultStoreConfig mirrors config/defaults.yaml.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Capacity:      1000,
		GridSize:      32,
		CellCapacity:  32,
		WorldBounds:   1,
		TerrainRes:    terrain.DefaultResolution,
		MaxStep:       0.016,
		Restitution:   0.6,
		Friction:      0.8,
		DefaultRadius: 0.03,
		DefaultMass:   1,
	}
}

// CellSize is the grid cell edge for the configured bounds.
func (c StoreConfig) CellSize() float32 {
	return 2 * c.WorldBounds / float32(c.GridSize)
}

// MaxRadius is the largest radius for which every overlapping pair sits
// in adjacent cells, so the 27-cell collision scan finds it.
func (c StoreConfig) MaxRadius() float32 {
	return c.CellSize() / 2
}

// Store is the host-side owner of the device particle buffer. Records
// are append-only; a record's ID is its slot and never changes.
type Store struct {
	dev    Device
	cfg    StoreConfig
	count  int
	params SimParams

	// inflight is closed once an abandoned read-back stops touching the
	// device buffer. Nil when no copy is outstanding.
	inflight chan struct{}
}

// NewStore allocates device buffers for cfg.Capacity particles.
func NewStore(dev Device, cfg StoreConfig) (*Store, error) {
	if cfg.DefaultRadius > cfg.MaxRadius() {
		return nil, fmt.Errorf("default radius %g: %w (max %g)", cfg.DefaultRadius, ErrRadiusTooLarge, cfg.MaxRadius())
	}
	err := dev.Allocate(Layout{
		Capacity:     cfg.Capacity,
		GridSize:     cfg.GridSize,
		CellCapacity: cfg.CellCapacity,
		TerrainRes:   cfg.TerrainRes,
	})
	if err != nil {
		return nil, fmt.Errorf("allocating %s buffers: %w", dev.Name(), err)
	}

	s := &Store{dev: dev, cfg: cfg}
	s.params = SimParams{
		Restitution: cfg.Restitution,
		Friction:    cfg.Friction,
		GridSize:    uint32(cfg.GridSize),
		CellSize:    cfg.CellSize(),
		WorldBounds: Vec3{cfg.WorldBounds, cfg.WorldBounds, cfg.WorldBounds},
	}
	if err := dev.WriteParams(s.params); err != nil {
		return nil, fmt.Errorf("writing initial params: %w", err)
	}
	return s, nil
}

// AddParticle appends one particle. Non-positive radius or mass use the
// configured defaults. Radii above MaxRadius are rejected.
func (s *Store) AddParticle(pos, vel Vec3, radius, mass float32) error {
	if s.count >= s.cfg.Capacity {
		slog.Warn("particle store full", "capacity", s.cfg.Capacity)
		return ErrCapacityExceeded
	}
	if radius <= 0 {
		radius = s.cfg.DefaultRadius
	}
	if radius > s.cfg.MaxRadius() {
		return fmt.Errorf("radius %g: %w (max %g)", radius, ErrRadiusTooLarge, s.cfg.MaxRadius())
	}
	if mass <= 0 {
		mass = s.cfg.DefaultMass
	}
	s.settle()

	rec := Particle{
		Position: pos,
		Radius:   radius,
		Velocity: vel,
		Mass:     mass,
		ID:       uint32(s.count),
	}
	if err := s.dev.WriteParticles(s.count, []Particle{rec}); err != nil {
		return fmt.Errorf("writing particle %d: %w", s.count, err)
	}
	s.count++
	s.params.Count = uint32(s.count)
	return nil
}

// UpdateSimulationParameters uploads the per-frame parameters. dt is
// clamped to [0, MaxStep].
func (s *Store) UpdateSimulationParameters(dt float32, accel Vec3) error {
	s.settle()
	s.params.Count = uint32(s.count)
	s.params.DeltaTime = max(0, min(dt, s.cfg.MaxStep))
	s.params.Accel = accel
	if err := s.dev.WriteParams(s.params); err != nil {
		return fmt.Errorf("writing sim params: %w", err)
	}
	return nil
}

// UpdateTerrainSurface uploads a height grid as the collision surface.
func (s *Store) UpdateTerrainSurface(g *terrain.HeightGrid) error {
	s.settle()
	tp := TerrainParams{
		Resolution: float32(g.Resolution),
		BoundsMin:  g.Min,
		BoundsMax:  g.Max,
	}
	if err := s.dev.WriteTerrain(g.Heights, tp); err != nil {
		return fmt.Errorf("writing terrain: %w", err)
	}
	return nil
}

// Reset drops every particle. Capacity is unchanged.
func (s *Store) Reset() error {
	s.settle()
	if err := s.dev.ClearParticles(); err != nil {
		return fmt.Errorf("clearing particles: %w", err)
	}
	s.count = 0
	s.params.Count = 0
	return nil
}

// ReadBack copies the live records off the device. It waits for the copy
// or for ctx, whichever comes first. A copy abandoned on ctx keeps
// running; the next call that writes to the device waits for it.
func (s *Store) ReadBack(ctx context.Context) ([]Particle, error) {
	if s.inflight != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.inflight:
			s.inflight = nil
		}
	}

	out := make([]Particle, s.count)
	if len(out) == 0 {
		return out, nil
	}

	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		done <- s.dev.ReadParticles(out)
		close(finished)
	}()

	select {
	case <-ctx.Done():
		s.inflight = finished
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("reading particles: %w", err)
		}
		return out, nil
	}
}

// settle blocks until an abandoned read-back has released the device
// buffer.
func (s *Store) settle() {
	if s.inflight == nil {
		return
	}
	<-s.inflight
	s.inflight = nil
}

// Count returns the number of live particles.
func (s *Store) Count() int { return s.count }

// Capacity returns the maximum number of particles.
func (s *Store) Capacity() int { return s.cfg.Capacity }

// Params returns the last parameters written to the device.
func (s *Store) Params() SimParams { return s.params }

// Config returns the store configuration.
func (s *Store) Config() StoreConfig { return s.cfg }

// Device returns the device backing the store.
func (s *Store) Device() Device { return s.dev }
