package terrain

import "gonum.org/v1/gonum/spatial/r3"

// Triangle is one face of the terrain mesh.
type Triangle struct {
	A, B, C r3.Vec
	Normal  r3.Vec // unit face normal, oriented toward +z
}

// Mesh is a triangulated height field.
type Mesh struct {
	Resolution int
	Vertices   []r3.Vec // node positions, row-major like HeightGrid
	Triangles  []Triangle
}

// BuildMesh triangulates a height grid into two triangles per grid cell.
// Vertex z values are the grid heights themselves, so the drawn surface
// matches the surface used for collision at every node.
func BuildMesh(g *HeightGrid) *Mesh {
	res := g.Resolution
	m := &Mesh{
		Resolution: res,
		Vertices:   make([]r3.Vec, 0, res*res),
	}

	for row := 0; row < res; row++ {
		for col := 0; col < res; col++ {
			x, y := g.NodePosition(row, col)
			m.Vertices = append(m.Vertices, r3.Vec{X: float64(x), Y: float64(y), Z: float64(g.At(row, col))})
		}
	}

	if res < 2 {
		return m
	}

	m.Triangles = make([]Triangle, 0, (res-1)*(res-1)*2)
	for row := 0; row < res-1; row++ {
		for col := 0; col < res-1; col++ {
			v00 := m.Vertices[row*res+col]
			v01 := m.Vertices[row*res+col+1]
			v10 := m.Vertices[(row+1)*res+col]
			v11 := m.Vertices[(row+1)*res+col+1]

			m.Triangles = append(m.Triangles,
				newTriangle(v00, v01, v11),
				newTriangle(v00, v11, v10),
			)
		}
	}
	return m
}

// Vertex returns the mesh vertex at node (row, col).
func (m *Mesh) Vertex(row, col int) r3.Vec {
	return m.Vertices[row*m.Resolution+col]
}

func newTriangle(a, b, c r3.Vec) Triangle {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) > 0 {
		n = r3.Unit(n)
	}
	if n.Z < 0 {
		n = r3.Scale(-1, n)
	}
	return Triangle{A: a, B: b, C: c, Normal: n}
}
