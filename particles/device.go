package particles

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapacityExceeded is returned when adding to a full store.
	ErrCapacityExceeded = errors.New("particle capacity exceeded")
	// ErrRadiusTooLarge is returned for a radius the neighbour scan cannot resolve.
	ErrRadiusTooLarge = errors.New("particle radius exceeds half a grid cell")
	// ErrDeviceNotAllocated is returned by device calls made before Allocate.
	ErrDeviceNotAllocated = errors.New("device buffers not allocated")
	// ErrOpenCLUnavailable is returned when the binary was built without OpenCL.
	ErrOpenCLUnavailable = errors.New("opencl support not compiled in (build with -tags opencl)")
)

// Stage identifies one of the five pipeline programs.
type Stage int

const (
	StageClearGrid Stage = iota
	StageBinParticles
	StageIntegrate
	StageCollideParticles
	StageCollideTerrain
	numStages
)

// Stages lists every stage in dispatch order.
var Stages = [numStages]Stage{
	StageClearGrid,
	StageBinParticles,
	StageIntegrate,
	StageCollideParticles,
	StageCollideTerrain,
}

var stageNames = [numStages]string{
	"clear_grid",
	"bin_particles",
	"integrate",
	"collide_particles",
	"collide_terrain",
}

func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Layout sizes the device buffers.
type Layout struct {
	Capacity     int // particle slots
	GridSize     int // cells per axis
	CellCapacity int // particle indices per cell
	TerrainRes   int // height nodes per side
}

func (l Layout) validate() error {
	var errs []error
	if l.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be positive, got %d", l.Capacity))
	}
	if l.GridSize <= 0 {
		errs = append(errs, fmt.Errorf("grid size must be positive, got %d", l.GridSize))
	}
	if l.CellCapacity <= 0 {
		errs = append(errs, fmt.Errorf("cell capacity must be positive, got %d", l.CellCapacity))
	}
	if l.TerrainRes <= 0 {
		errs = append(errs, fmt.Errorf("terrain resolution must be positive, got %d", l.TerrainRes))
	}
	return errors.Join(errs...)
}

// DeviceStats are counters a device accumulates across dispatches.
type DeviceStats struct {
	Dispatches    uint64
	CellOverflows uint64 // bin attempts dropped because the cell was full
}

// Device owns the particle, params, grid and terrain buffers and runs the
// stage programs over them. Dispatch returns only after every invocation
// of that stage has finished.
type Device interface {
	Name() string
	Allocate(l Layout) error
	Build() error
	WriteParticles(first int, recs []Particle) error
	ClearParticles() error
	WriteParams(p SimParams) error
	WriteTerrain(heights []float32, tp TerrainParams) error
	Dispatch(stage Stage, invocations int) error
	ReadParticles(dst []Particle) error
	Stats() DeviceStats
	Release()
}

// NewDevice returns the device for a backend name ("cpu" or "opencl").
func NewDevice(backend string) (Device, error) {
	switch strings.ToLower(backend) {
	case "", "cpu":
		return NewCPUDevice(0), nil
	case "opencl", "gpu":
		return NewOpenCLDevice()
	default:
		return nil, fmt.Errorf("unknown compute backend %q", backend)
	}
}
