package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/mod1/config"
	"github.com/pthm-cable/mod1/terrain"
)

// FitnessEvaluator scores kernel parameters by leave-one-out height error
// over one or more point clouds.
type FitnessEvaluator struct {
	params     *ParamVector
	clouds     [][]terrain.Point
	baseConfig *config.Config

	mu       sync.Mutex
	bestRMSE float64
	lastRMSE []float64 // per cloud, from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, clouds [][]terrain.Point, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		clouds:     clouds,
		baseConfig: baseCfg,
		bestRMSE:   math.Inf(1),
	}
}

// LastRMSE returns the per-cloud errors of the most recent evaluation.
func (fe *FitnessEvaluator) LastRMSE() []float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]float64(nil), fe.lastRMSE...)
}

// BestRMSE returns the lowest mean error seen so far.
func (fe *FitnessEvaluator) BestRMSE() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestRMSE
}

// Kernel builds the kernel for a raw parameter vector.
func (fe *FitnessEvaluator) Kernel(x []float64) terrain.Kernel {
	cfg := *fe.baseConfig
	fe.params.ApplyToConfig(&cfg, x)
	t := cfg.Terrain
	return terrain.KernelFromName(t.Kernel, terrain.KernelOptions{
		Sigma:        t.Sigma,
		AnchorHeight: t.AnchorHeight,
		AnchorWeight: t.AnchorWeight,
		IDWPower:     t.IDWPower,
		FadeStart:    t.FadeStart,
	})
}

// Evaluate returns the mean leave-one-out RMSE across clouds (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	k := fe.Kernel(x)

	results := make([]float64, len(fe.clouds))
	var wg sync.WaitGroup
	for i, pts := range fe.clouds {
		wg.Add(1)
		go func(idx int, pts []terrain.Point) {
			defer wg.Done()
			results[idx] = terrain.LeaveOneOutRMSE(pts, k)
		}(i, pts)
	}
	wg.Wait()

	var total float64
	for _, r := range results {
		total += r
	}
	mean := 0.0
	if len(results) > 0 {
		mean = total / float64(len(results))
	}

	fe.mu.Lock()
	fe.lastRMSE = results
	if mean < fe.bestRMSE {
		fe.bestRMSE = mean
	}
	fe.mu.Unlock()

	return mean
}
