package particles

import (
	"fmt"
	"log/slog"
)

// StageObserver is told when each stage is about to be dispatched.
type StageObserver interface {
	BeginStage(name string)
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStageObserver reports stage boundaries to o.
func WithStageObserver(o StageObserver) PipelineOption {
	return func(p *Pipeline) { p.observer = o }
}

// Pipeline runs the five simulation stages in order on a device. If the
// stage programs fail to build, the pipeline stays disabled and Step
// does nothing.
type Pipeline struct {
	dev      Device
	enabled  bool
	buildErr error
	observer StageObserver
	steps    uint64
}

// NewPipeline builds the stage programs on dev. The device must already
// be allocated by a Store.
func NewPipeline(dev Device, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{dev: dev}
	for _, opt := range opts {
		opt(p)
	}

	if err := dev.Build(); err != nil {
		p.buildErr = err
		slog.Warn("simulation pipeline disabled", "device", dev.Name(), "error", err)
		return p
	}
	p.enabled = true
	return p
}

// Enabled reports whether the stage programs built.
func (p *Pipeline) Enabled() bool { return p.enabled }

// BuildError returns the build failure, if any.
func (p *Pipeline) BuildError() error { return p.buildErr }

// Steps returns the number of completed steps.
func (p *Pipeline) Steps() uint64 { return p.steps }

// Step advances the simulation by dt under the given acceleration.
func (p *Pipeline) Step(store *Store, dt float32, gravity Vec3) error {
	if !p.enabled || store.Count() == 0 {
		return nil
	}

	if err := store.UpdateSimulationParameters(dt, gravity); err != nil {
		return err
	}

	n := store.Count()
	cells := store.Config().GridSize
	cells = cells * cells * cells

	for _, stage := range Stages {
		if p.observer != nil {
			p.observer.BeginStage(stage.String())
		}
		invocations := n
		if stage == StageClearGrid {
			invocations = cells
		}
		if err := p.dev.Dispatch(stage, invocations); err != nil {
			return fmt.Errorf("dispatch %s: %w", stage, err)
		}
	}

	p.steps++
	if p.steps%1000 == 0 {
		slog.Debug("pipeline dispatch", "step", p.steps, "particles", n, "cells", cells)
	}
	return nil
}
