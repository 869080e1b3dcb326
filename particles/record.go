// Package particles holds the particle store, the spatial grid and the
// five-stage simulation pipeline that runs on a compute device.
package particles

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Record sizes shared with device programs.
const (
	RecordSize        = 48
	SimParamsSize     = 64
	TerrainParamsSize = 16
)

// Particle is one particle record. Field order and sizes are the device
// layout: position@0 radius@12 velocity@16 mass@28 force@32 id@44.
type Particle struct {
	Position Vec3
	Radius   float32
	Velocity Vec3
	Mass     float32
	Force    Vec3
	ID       uint32
}

// MarshalBinary encodes the record in its 48-byte little-endian layout.
func (p Particle) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	if err := binary.Write(&buf, binary.LittleEndian, p); err != nil {
		return nil, fmt.Errorf("encoding particle: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a 48-byte record.
func (p *Particle) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("particle record is %d bytes, want %d", len(data), RecordSize)
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, p)
}

// Speed returns the velocity magnitude.
func (p *Particle) Speed() float32 {
	return p.Velocity.Len()
}

// SimParams is the per-frame uniform record read by every stage.
type SimParams struct {
	Count       uint32
	DeltaTime   float32
	_           [2]uint32
	Accel       Vec3
	Restitution float32
	Friction    float32
	GridSize    uint32
	CellSize    float32
	_           uint32
	WorldBounds Vec3
	_           uint32
}

// WorldMin returns the lower corner of the world box.
func (s *SimParams) WorldMin() Vec3 {
	return s.WorldBounds.Scale(-1)
}

// MarshalBinary encodes the parameters in their 64-byte layout.
func (s SimParams) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(SimParamsSize)
	if err := binary.Write(&buf, binary.LittleEndian, s); err != nil {
		return nil, fmt.Errorf("encoding sim params: %w", err)
	}
	return buf.Bytes(), nil
}

// TerrainParams pairs a height buffer with the grid it was sampled on.
type TerrainParams struct {
	Resolution float32
	BoundsMin  float32
	BoundsMax  float32
	Unused     float32
}
