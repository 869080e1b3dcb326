package game

import (
	"errors"
	"log/slog"

	"github.com/pthm-cable/mod1/particles"
)

// spawnBox is an axis-aligned region particles are dropped into.
type spawnBox struct {
	MinXY, MaxXY float32
	MinZ, MaxZ   float32
}

// Initial particles start close to the center and well above the floor.
// Later batches are scattered over the whole footprint.
var (
	initialBox = spawnBox{MinXY: -0.75, MaxXY: 0.75, MinZ: 0.5, MaxZ: 2}
	batchBox   = spawnBox{MinXY: -1, MaxXY: 1, MinZ: 0, MaxZ: 2}
)

// spawnInitial adds the startup particles.
func (g *Game) spawnInitial(n int) {
	added := g.spawnIn(initialBox, n)
	g.refreshParticles()
	slog.Info("initial particles spawned", "requested", n, "added", added)
}

// SpawnRandom adds up to n particles at random positions and returns how
// many were added. Spawning stops at the first capacity error.
func (g *Game) SpawnRandom(n int) int {
	if n <= 0 {
		n = g.cfg.Particles.SpawnBatch
	}
	added := g.spawnIn(batchBox, n)
	g.refreshParticles()
	return added
}

func (g *Game) spawnIn(box spawnBox, n int) int {
	bounds := g.cfg.Derived.WorldBounds32
	radius := float32(g.cfg.Particles.Radius)
	lim := bounds - radius

	added := 0
	for i := 0; i < n; i++ {
		pos := particles.Vec3{
			clamp32(g.uniform(box.MinXY, box.MaxXY), -lim, lim),
			clamp32(g.uniform(box.MinXY, box.MaxXY), -lim, lim),
			clamp32(g.uniform(box.MinZ, box.MaxZ), -lim, lim),
		}
		err := g.store.AddParticle(pos, particles.Vec3{}, radius, float32(g.cfg.Particles.Mass))
		if errors.Is(err, particles.ErrCapacityExceeded) {
			g.collector.RecordRejected()
			break
		}
		if err != nil {
			slog.Error("failed to add particle", "error", err)
			break
		}
		added++
	}
	g.collector.RecordSpawn(added)
	return added
}

// ResetParticles removes every particle.
func (g *Game) ResetParticles() {
	if err := g.store.Reset(); err != nil {
		slog.Error("failed to reset particles", "error", err)
		return
	}
	g.collector.RecordReset()
	g.particles = g.particles[:0]
	slog.Info("particles reset")
}

func (g *Game) uniform(lo, hi float32) float32 {
	return lo + g.rng.Float32()*(hi-lo)
}

func clamp32(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
