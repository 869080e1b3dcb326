package game

import (
	"context"
	"log/slog"

	"github.com/pthm-cable/mod1/particles"
	"github.com/pthm-cable/mod1/server"
	"github.com/pthm-cable/mod1/telemetry"
)

// UpdateHeadless advances one fixed step without touching raylib.
func (g *Game) UpdateHeadless() {
	g.processCommands()
	if g.paused {
		return
	}
	g.step(g.cfg.Derived.MaxStep32)
}

// step runs the pipeline once, reads the particles back and publishes
// them. dt is clamped by the store.
func (g *Game) step(dt float32) {
	g.profiler.BeginStep()

	gravity := particles.Vec3(g.cfg.Derived.Gravity32)
	if err := g.pipeline.Step(g.store, dt, gravity); err != nil {
		slog.Error("simulation step failed", "tick", g.tick, "error", err)
	}

	g.profiler.BeginStage(telemetry.StageReadBack)
	g.refreshParticles()

	if g.hub != nil && g.shouldBroadcast() {
		g.profiler.BeginStage(telemetry.StageBroadcast)
		g.hub.BroadcastParticles(int64(g.tick), g.particles)
	}

	g.profiler.EndStep(g.store.Count(), g.dev.Stats())
	g.tick++

	g.flushTelemetry()
}

func (g *Game) shouldBroadcast() bool {
	every := g.cfg.Server.BroadcastEvery
	if every < 1 {
		every = 1
	}
	return int(g.tick)%every == 0
}

// refreshParticles replaces the cached read-back. On failure the previous
// frame is kept.
func (g *Game) refreshParticles() {
	ctx, cancel := context.WithTimeout(g.ctx, readBackTimeout)
	defer cancel()

	ps, err := g.store.ReadBack(ctx)
	if err != nil {
		slog.Error("particle read-back failed", "error", err)
		return
	}
	g.particles = ps
}

// processCommands applies queued client requests between steps.
func (g *Game) processCommands() {
	if g.hub == nil {
		return
	}
	for {
		select {
		case cmd := <-g.hub.Commands():
			g.applyCommand(cmd)
		default:
			return
		}
	}
}

func (g *Game) applyCommand(cmd server.Command) {
	switch cmd.Action {
	case server.ActionSpawn:
		added := g.SpawnRandom(cmd.Count)
		slog.Info("client spawn", "requested", cmd.Count, "added", added)
	case server.ActionReset:
		g.ResetParticles()
	}
}
