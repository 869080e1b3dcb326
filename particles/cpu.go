package particles

import (
	"fmt"
	"sync/atomic"

	"github.com/pthm-cable/mod1/terrain"
)

// kernelFunc runs one invocation of a stage.
type kernelFunc func(d *CPUDevice, i int)

var cpuKernels = map[Stage]kernelFunc{
	StageClearGrid:        clearGridKernel,
	StageBinParticles:     binParticlesKernel,
	StageIntegrate:        integrateKernel,
	StageCollideParticles: collideParticlesKernel,
	StageCollideTerrain:   collideTerrainKernel,
}

// CPUDevice runs the stage programs on a goroutine worker pool.
type CPUDevice struct {
	layout    Layout
	allocated bool
	programs  [numStages]func(i int)

	particles []Particle
	snapshot  []Particle // stage 4 reads neighbours only from here
	params    SimParams
	grid      *Grid
	surface   *terrain.HeightGrid
	terrainP  TerrainParams

	pool       *workerPool
	dispatches atomic.Uint64
	overflows  atomic.Uint64
}

// NewCPUDevice creates a CPU device. workers <= 0 uses GOMAXPROCS.
func NewCPUDevice(workers int) *CPUDevice {
	return &CPUDevice{pool: newWorkerPool(workers)}
}

func (d *CPUDevice) Name() string { return "cpu" }

// Allocate sizes every buffer. The terrain starts flat at zero.
func (d *CPUDevice) Allocate(l Layout) error {
	if err := l.validate(); err != nil {
		return fmt.Errorf("cpu allocate: %w", err)
	}
	d.layout = l
	d.particles = make([]Particle, l.Capacity)
	d.snapshot = make([]Particle, l.Capacity)
	d.grid = NewGrid(l.GridSize, l.CellCapacity, 1, Vec3{})
	d.surface = terrain.NewFlatGrid(l.TerrainRes, 0)
	d.terrainP = TerrainParams{
		Resolution: float32(l.TerrainRes),
		BoundsMin:  d.surface.Min,
		BoundsMax:  d.surface.Max,
	}
	d.allocated = true
	return nil
}

// Build binds each stage to its kernel.
func (d *CPUDevice) Build() error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	for _, s := range Stages {
		k, ok := cpuKernels[s]
		if !ok {
			return fmt.Errorf("cpu build: no kernel for stage %s", s)
		}
		d.programs[s] = func(i int) { k(d, i) }
	}
	return nil
}

func (d *CPUDevice) WriteParticles(first int, recs []Particle) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	if first < 0 || first+len(recs) > len(d.particles) {
		return fmt.Errorf("write particles [%d,%d) outside capacity %d", first, first+len(recs), len(d.particles))
	}
	copy(d.particles[first:], recs)
	return nil
}

func (d *CPUDevice) ClearParticles() error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	clear(d.particles)
	clear(d.snapshot)
	return nil
}

func (d *CPUDevice) WriteParams(p SimParams) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	if int(p.GridSize) != d.layout.GridSize {
		return fmt.Errorf("params grid size %d does not match allocated %d", p.GridSize, d.layout.GridSize)
	}
	d.params = p
	d.grid.CellSize = p.CellSize
	d.grid.Min = p.WorldMin()
	return nil
}

// WriteTerrain replaces the collision surface. A new resolution
// reallocates the height buffer.
func (d *CPUDevice) WriteTerrain(heights []float32, tp TerrainParams) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	res := int(tp.Resolution)
	if res <= 0 || len(heights) != res*res {
		return fmt.Errorf("terrain buffer has %d heights for resolution %d", len(heights), res)
	}
	if res != d.surface.Resolution {
		d.surface = &terrain.HeightGrid{Resolution: res, Heights: make([]float32, res*res)}
		d.layout.TerrainRes = res
	}
	copy(d.surface.Heights, heights)
	d.surface.Min = tp.BoundsMin
	d.surface.Max = tp.BoundsMax
	d.terrainP = tp
	return nil
}

// Dispatch runs n invocations of a stage and waits for all of them.
func (d *CPUDevice) Dispatch(stage Stage, n int) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	if stage < 0 || stage >= numStages || d.programs[stage] == nil {
		return fmt.Errorf("stage %s not built", stage)
	}
	limit := len(d.particles)
	if stage == StageClearGrid {
		limit = d.grid.NumCells()
	}
	if n < 0 || n > limit {
		return fmt.Errorf("dispatch %s: %d invocations exceeds %d", stage, n, limit)
	}
	d.pool.run(n, d.programs[stage])
	d.dispatches.Add(1)
	return nil
}

func (d *CPUDevice) ReadParticles(dst []Particle) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	if len(dst) > len(d.particles) {
		return fmt.Errorf("read %d particles exceeds capacity %d", len(dst), len(d.particles))
	}
	copy(dst, d.particles)
	return nil
}

func (d *CPUDevice) Stats() DeviceStats {
	return DeviceStats{
		Dispatches:    d.dispatches.Load(),
		CellOverflows: d.overflows.Load(),
	}
}

// Release stops the worker pool. The device can be reused after Allocate.
func (d *CPUDevice) Release() {
	d.pool.stop()
	d.allocated = false
	d.particles = nil
	d.snapshot = nil
	d.grid = nil
	d.programs = [numStages]func(i int){}
}

// Grid exposes the binning grid for inspection.
func (d *CPUDevice) Grid() *Grid {
	return d.grid
}

// Surface returns the collision surface currently on the device.
func (d *CPUDevice) Surface() *terrain.HeightGrid {
	return d.surface
}
