package particles

import (
	"math"
	"sync/atomic"
)

// Grid is a uniform cubic binning grid stored as a flat word buffer.
// Each cell is laid out as [count, pad, idx0 .. idxCap-1]. The count
// may exceed the capacity when a cell overflows; readers clamp it.
type Grid struct {
	Size     int
	Capacity int
	CellSize float32
	Min      Vec3
	Words    []uint32
}

// NewGrid allocates a size³ grid covering [min, min+size*cellSize]³.
func NewGrid(size, capacity int, cellSize float32, min Vec3) *Grid {
	return &Grid{
		Size:     size,
		Capacity: capacity,
		CellSize: cellSize,
		Min:      min,
		Words:    make([]uint32, size*size*size*(2+capacity)),
	}
}

// Stride is the number of words per cell.
func (g *Grid) Stride() int {
	return 2 + g.Capacity
}

// NumCells returns size³.
func (g *Grid) NumCells() int {
	return g.Size * g.Size * g.Size
}

// Coords returns the clamped integer cell coordinates of p.
func (g *Grid) Coords(p Vec3) (ix, iy, iz int) {
	return g.axis(p[0], g.Min[0]), g.axis(p[1], g.Min[1]), g.axis(p[2], g.Min[2])
}

func (g *Grid) axis(v, lo float32) int {
	c := int(math.Floor(float64((v - lo) / g.CellSize)))
	if c < 0 {
		return 0
	}
	if c >= g.Size {
		return g.Size - 1
	}
	return c
}

// Index flattens cell coordinates, x fastest.
func (g *Grid) Index(ix, iy, iz int) int {
	return (iz*g.Size+iy)*g.Size + ix
}

// CellOf returns the flat index of the cell containing p.
func (g *Grid) CellOf(p Vec3) int {
	return g.Index(g.Coords(p))
}

// Clear zeroes the count of one cell.
func (g *Grid) Clear(cell int) {
	g.Words[cell*g.Stride()] = 0
}

// Insert appends id to a cell. Safe for concurrent callers. It reports
// false when the cell is already full and the id was dropped.
func (g *Grid) Insert(cell int, id uint32) bool {
	base := cell * g.Stride()
	slot := atomic.AddUint32(&g.Words[base], 1) - 1
	if int(slot) >= g.Capacity {
		return false
	}
	g.Words[base+2+int(slot)] = id
	return true
}

// Count returns the number of stored ids in a cell, clamped to capacity.
func (g *Grid) Count(cell int) int {
	n := int(g.Words[cell*g.Stride()])
	if n > g.Capacity {
		return g.Capacity
	}
	return n
}

// Members returns the stored ids of a cell. The slice aliases the grid.
func (g *Grid) Members(cell int) []uint32 {
	base := cell*g.Stride() + 2
	return g.Words[base : base+g.Count(cell)]
}

// Neighbors calls fn for the cell containing p and every adjacent cell
// that lies inside the grid.
func (g *Grid) Neighbors(p Vec3, fn func(cell int)) {
	cx, cy, cz := g.Coords(p)
	for dz := -1; dz <= 1; dz++ {
		z := cz + dz
		if z < 0 || z >= g.Size {
			continue
		}
		for dy := -1; dy <= 1; dy++ {
			y := cy + dy
			if y < 0 || y >= g.Size {
				continue
			}
			for dx := -1; dx <= 1; dx++ {
				x := cx + dx
				if x < 0 || x >= g.Size {
					continue
				}
				fn(g.Index(x, y, z))
			}
		}
	}
}
