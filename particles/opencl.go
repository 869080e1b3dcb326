//go:build opencl

package particles

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// openCLDevice runs the stage programs as OpenCL kernels on one in-order
// command queue, so each dispatch starts after the previous one ends.
type openCLDevice struct {
	context *cl.Context
	queue   *cl.CommandQueue
	device  *cl.Device
	program *cl.Program
	kernels [numStages]*cl.Kernel

	particleBuf *cl.MemObject
	snapshotBuf *cl.MemObject
	paramsBuf   *cl.MemObject
	gridBuf     *cl.MemObject
	terrainBuf  *cl.MemObject
	terrainPBuf *cl.MemObject

	layout     Layout
	allocated  bool
	dispatches atomic.Uint64
}

// NewOpenCLDevice picks the first GPU, falling back to the first CPU
// device, on any platform.
func NewOpenCLDevice() (Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available")
	}

	var device *cl.Device
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(kind)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				device = devices[0]
				break
			}
		}
		if device != nil {
			break
		}
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}

	context, err := cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	queue, err := context.CreateCommandQueue(device, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	return &openCLDevice{context: context, queue: queue, device: device}, nil
}

func (d *openCLDevice) Name() string { return "opencl:" + d.device.Name() }

func (d *openCLDevice) Allocate(l Layout) error {
	if err := l.validate(); err != nil {
		return fmt.Errorf("opencl allocate: %w", err)
	}
	d.releaseBuffers()

	cells := l.GridSize * l.GridSize * l.GridSize
	sizes := []struct {
		dst   **cl.MemObject
		flags cl.MemFlag
		bytes int
	}{
		{&d.particleBuf, cl.MemReadWrite, l.Capacity * RecordSize},
		{&d.snapshotBuf, cl.MemReadWrite, l.Capacity * RecordSize},
		{&d.paramsBuf, cl.MemReadOnly, SimParamsSize},
		{&d.gridBuf, cl.MemReadWrite, cells * (2 + l.CellCapacity) * 4},
		{&d.terrainBuf, cl.MemReadOnly, l.TerrainRes * l.TerrainRes * 4},
		{&d.terrainPBuf, cl.MemReadOnly, TerrainParamsSize},
	}
	for _, s := range sizes {
		buf, err := d.context.CreateEmptyBuffer(s.flags, s.bytes)
		if err != nil {
			d.releaseBuffers()
			return fmt.Errorf("allocating %d byte buffer: %w", s.bytes, err)
		}
		*s.dst = buf
	}

	d.layout = l
	d.allocated = true
	if err := d.ClearParticles(); err != nil {
		return err
	}
	flat := make([]float32, l.TerrainRes*l.TerrainRes)
	return d.WriteTerrain(flat, TerrainParams{Resolution: float32(l.TerrainRes), BoundsMin: -1, BoundsMax: 1})
}

// Build compiles the stage programs and binds their buffers.
func (d *openCLDevice) Build() error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}

	program, err := d.context.CreateProgramWithSource([]string{openCLSource})
	if err != nil {
		return fmt.Errorf("creating OpenCL program: %w", err)
	}
	opts := fmt.Sprintf("-D CELL_CAPACITY=%d", d.layout.CellCapacity)
	if err := program.BuildProgram([]*cl.Device{d.device}, opts); err != nil {
		program.Release()
		if buildErr, ok := err.(cl.BuildError); ok {
			return fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return fmt.Errorf("building OpenCL program: %w", err)
	}
	d.program = program

	for _, s := range Stages {
		k, err := program.CreateKernel(openCLKernelNames[s])
		if err != nil {
			d.releaseKernels()
			return fmt.Errorf("creating kernel %s: %w", s, err)
		}
		d.kernels[s] = k
	}
	if err := d.bindArgs(); err != nil {
		d.releaseKernels()
		return err
	}
	return nil
}

func (d *openCLDevice) bindArgs() error {
	args := [numStages][]any{
		StageClearGrid:        {d.gridBuf, d.paramsBuf},
		StageBinParticles:     {d.particleBuf, d.gridBuf, d.paramsBuf},
		StageIntegrate:        {d.particleBuf, d.snapshotBuf, d.paramsBuf},
		StageCollideParticles: {d.particleBuf, d.snapshotBuf, d.gridBuf, d.paramsBuf},
		StageCollideTerrain:   {d.particleBuf, d.terrainBuf, d.terrainPBuf, d.paramsBuf},
	}
	for _, s := range Stages {
		if err := d.kernels[s].SetArgs(args[s]...); err != nil {
			return fmt.Errorf("setting %s arguments: %w", s, err)
		}
	}
	return nil
}

func (d *openCLDevice) WriteParticles(first int, recs []Particle) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	if len(recs) == 0 {
		return nil
	}
	if first < 0 || first+len(recs) > d.layout.Capacity {
		return fmt.Errorf("write particles [%d,%d) outside capacity %d", first, first+len(recs), d.layout.Capacity)
	}
	ptr := unsafe.Pointer(&recs[0])
	if _, err := d.queue.EnqueueWriteBuffer(d.particleBuf, true, first*RecordSize, len(recs)*RecordSize, ptr, nil); err != nil {
		return fmt.Errorf("writing particle buffer: %w", err)
	}
	return nil
}

func (d *openCLDevice) ClearParticles() error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	return d.WriteParticles(0, make([]Particle, d.layout.Capacity))
}

func (d *openCLDevice) WriteParams(p SimParams) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	if _, err := d.queue.EnqueueWriteBuffer(d.paramsBuf, true, 0, SimParamsSize, unsafe.Pointer(&p), nil); err != nil {
		return fmt.Errorf("writing params buffer: %w", err)
	}
	return nil
}

// WriteTerrain uploads heights. A new resolution reallocates the buffer
// and rebinds the terrain stage.
func (d *openCLDevice) WriteTerrain(heights []float32, tp TerrainParams) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	res := int(tp.Resolution)
	if res <= 0 || len(heights) != res*res {
		return fmt.Errorf("terrain buffer has %d heights for resolution %d", len(heights), res)
	}

	if res != d.layout.TerrainRes {
		buf, err := d.context.CreateEmptyBuffer(cl.MemReadOnly, res*res*4)
		if err != nil {
			return fmt.Errorf("reallocating terrain buffer: %w", err)
		}
		d.terrainBuf.Release()
		d.terrainBuf = buf
		d.layout.TerrainRes = res
		if k := d.kernels[StageCollideTerrain]; k != nil {
			if err := k.SetArgBuffer(1, buf); err != nil {
				return fmt.Errorf("rebinding terrain buffer: %w", err)
			}
		}
	}

	if _, err := d.queue.EnqueueWriteBuffer(d.terrainBuf, true, 0, len(heights)*4, unsafe.Pointer(&heights[0]), nil); err != nil {
		return fmt.Errorf("writing terrain buffer: %w", err)
	}
	if _, err := d.queue.EnqueueWriteBuffer(d.terrainPBuf, true, 0, TerrainParamsSize, unsafe.Pointer(&tp), nil); err != nil {
		return fmt.Errorf("writing terrain params: %w", err)
	}
	return nil
}

func (d *openCLDevice) Dispatch(stage Stage, n int) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	if stage < 0 || stage >= numStages || d.kernels[stage] == nil {
		return fmt.Errorf("stage %s not built", stage)
	}
	if n <= 0 {
		return nil
	}
	if _, err := d.queue.EnqueueNDRangeKernel(d.kernels[stage], nil, []int{n}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing %s: %w", stage, err)
	}
	d.dispatches.Add(1)
	return nil
}

// ReadParticles waits for queued stages, then copies len(dst) records.
func (d *openCLDevice) ReadParticles(dst []Particle) error {
	if !d.allocated {
		return ErrDeviceNotAllocated
	}
	if len(dst) == 0 {
		return nil
	}
	if len(dst) > d.layout.Capacity {
		return fmt.Errorf("read %d particles exceeds capacity %d", len(dst), d.layout.Capacity)
	}
	if err := d.queue.Finish(); err != nil {
		return fmt.Errorf("finishing queue: %w", err)
	}
	if _, err := d.queue.EnqueueReadBuffer(d.particleBuf, true, 0, len(dst)*RecordSize, unsafe.Pointer(&dst[0]), nil); err != nil {
		return fmt.Errorf("reading particle buffer: %w", err)
	}
	return nil
}

// Stats reports dispatch counts. Cell overflow is not counted on the GPU.
func (d *openCLDevice) Stats() DeviceStats {
	return DeviceStats{Dispatches: d.dispatches.Load()}
}

func (d *openCLDevice) Release() {
	d.releaseKernels()
	d.releaseBuffers()
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.context != nil {
		d.context.Release()
		d.context = nil
	}
}

func (d *openCLDevice) releaseKernels() {
	for i, k := range d.kernels {
		if k != nil {
			k.Release()
			d.kernels[i] = nil
		}
	}
	if d.program != nil {
		d.program.Release()
		d.program = nil
	}
}

func (d *openCLDevice) releaseBuffers() {
	for _, b := range []**cl.MemObject{&d.particleBuf, &d.snapshotBuf, &d.paramsBuf, &d.gridBuf, &d.terrainBuf, &d.terrainPBuf} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	d.allocated = false
}
