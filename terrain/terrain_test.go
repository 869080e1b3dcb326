package terrain

import (
	"math"
	"testing"
)

func samplePoints() []Point {
	return []Point{
		{X: -0.5, Y: -0.5, Z: 0.2},
		{X: 0.3, Y: 0.1, Z: 0.8},
		{X: 0.6, Y: -0.7, Z: -0.3},
		{X: -0.2, Y: 0.9, Z: 0.5},
	}
}

func TestBuildHeightGridDeterministic(t *testing.T) {
	for _, k := range []Kernel{DefaultGaussian(), InverseDistance{Power: 2, AnchorHeight: -1, FadeStart: 0.7}} {
		a := BuildHeightGrid(samplePoints(), 20, k)
		b := BuildHeightGrid(samplePoints(), 20, k)

		if len(a.Heights) != 400 {
			t.Fatalf("len = %d, want 400", len(a.Heights))
		}
		for i := range a.Heights {
			if math.Float32bits(a.Heights[i]) != math.Float32bits(b.Heights[i]) {
				t.Fatalf("%T: height %d differs between runs: %v vs %v", k, i, a.Heights[i], b.Heights[i])
			}
		}
	}
}

func TestBuildHeightGridEmpty(t *testing.T) {
	tests := []struct {
		name string
		k    Kernel
	}{
		{"gaussian", DefaultGaussian()},
		{"idw", InverseDistance{Power: 2, AnchorHeight: -1, FadeStart: 0.7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BuildHeightGrid(nil, 7, tt.k)
			if len(g.Heights) != 49 {
				t.Fatalf("len = %d, want 49", len(g.Heights))
			}
			for i, h := range g.Heights {
				if h != -1 {
					t.Errorf("height[%d] = %v, want -1", i, h)
				}
			}
		})
	}
}

func TestBuildHeightGridResolutionFallback(t *testing.T) {
	g := BuildHeightGrid(samplePoints(), 0, nil)
	if g.Resolution != DefaultResolution {
		t.Errorf("Resolution = %d, want %d", g.Resolution, DefaultResolution)
	}
	if len(g.Heights) != DefaultResolution*DefaultResolution {
		t.Errorf("len = %d, want %d", len(g.Heights), DefaultResolution*DefaultResolution)
	}

	single := BuildHeightGrid([]Point{{X: 0, Y: 0, Z: 0.5}}, 1, DefaultGaussian())
	if len(single.Heights) != 1 {
		t.Fatalf("len = %d, want 1", len(single.Heights))
	}
	// Centre node coincides with the sample: (0.5 - 1) / 2
	if math.Abs(float64(single.Heights[0])+0.25) > 1e-6 {
		t.Errorf("single node height = %v, want -0.25", single.Heights[0])
	}
}

func TestGaussianAnchorDominance(t *testing.T) {
	k := DefaultGaussian()
	// Sample at one corner, node at the opposite corner: distance² = 8, σ² = 0.09
	h := k.Height(1, 1, []Point{{X: -1, Y: -1, Z: 1}})
	if math.Abs(h-(-1)) > 1e-9 {
		t.Errorf("far node height = %v, want ~-1", h)
	}
}

func TestGaussianMatchesFormula(t *testing.T) {
	k := DefaultGaussian()
	pts := []Point{{X: 0.1, Y: 0.2, Z: 0.4}, {X: -0.3, Y: 0.0, Z: 0.9}}

	x, y := 0.0, 0.1
	w1 := math.Exp(-((x-0.1)*(x-0.1) + (y-0.2)*(y-0.2)) / 0.09)
	w2 := math.Exp(-((x+0.3)*(x+0.3) + (y-0.0)*(y-0.0)) / 0.09)
	want := (w1*0.4 + w2*0.9 - 1) / (w1 + w2 + 1)

	if got := k.Height(x, y, pts); math.Abs(got-want) > 1e-12 {
		t.Errorf("Height = %v, want %v", got, want)
	}
}

func TestSingleSampleCentreAboveCorners(t *testing.T) {
	g := BuildHeightGrid([]Point{{X: 0, Y: 0, Z: 0.5}}, 3, DefaultGaussian())

	centre := g.At(1, 1)
	for _, c := range [][2]int{{0, 0}, {0, 2}, {2, 0}, {2, 2}} {
		if corner := g.At(c[0], c[1]); !(centre > corner) {
			t.Errorf("centre %v not above corner %v = %v", centre, c, corner)
		}
	}
}

func TestInverseDistanceFade(t *testing.T) {
	k := InverseDistance{Power: 2, AnchorHeight: -1, FadeStart: 0.5}
	pts := []Point{{X: 0, Y: 0, Z: 0.8}}

	// Coincident node returns the sample before fading
	if h := k.Height(0, 0, pts); math.Abs(h-0.8) > 1e-12 {
		t.Errorf("coincident height = %v, want 0.8", h)
	}
	// With one sample IDW is constant 0.8; at the corner the fade reaches the anchor
	if h := k.Height(1, 1, pts); math.Abs(h+1) > 1e-9 {
		t.Errorf("corner height = %v, want -1", h)
	}
	// Inside the fade start the value is untouched
	if h := k.Height(0.2, 0.2, pts); math.Abs(h-0.8) > 1e-9 {
		t.Errorf("inner height = %v, want 0.8", h)
	}
}

func TestKernelFromName(t *testing.T) {
	o := KernelOptions{Sigma: 0.3, AnchorHeight: -1, AnchorWeight: 1, IDWPower: 2, FadeStart: 0.7}

	if _, ok := KernelFromName("gaussian", o).(Gaussian); !ok {
		t.Error("gaussian: wrong kernel type")
	}
	if _, ok := KernelFromName("idw", o).(InverseDistance); !ok {
		t.Error("idw: wrong kernel type")
	}
	if _, ok := KernelFromName("spline", o).(Gaussian); !ok {
		t.Error("unknown name should fall back to gaussian")
	}
}

func TestSampleAtNodes(t *testing.T) {
	g := BuildHeightGrid(samplePoints(), 11, DefaultGaussian())

	for row := 0; row < g.Resolution; row++ {
		for col := 0; col < g.Resolution; col++ {
			x, y := g.NodePosition(row, col)
			got := g.Sample(x, y)
			want := g.At(row, col)
			if math.Abs(float64(got-want)) > 1e-5 {
				t.Errorf("Sample at node (%d,%d) = %v, want %v", row, col, got, want)
			}
		}
	}
}

func TestSampleBilinearAndClamp(t *testing.T) {
	g := &HeightGrid{
		Resolution: 2,
		Min:        -1,
		Max:        1,
		Heights:    []float32{0, 1, 2, 3}, // row0: (x=-1,y=-1)=0 (x=1,y=-1)=1; row1: 2, 3
	}

	if h := g.Sample(0, 0); math.Abs(float64(h)-1.5) > 1e-6 {
		t.Errorf("centre = %v, want 1.5", h)
	}
	if h := g.Sample(-5, -5); h != 0 {
		t.Errorf("clamped low corner = %v, want 0", h)
	}
	if h := g.Sample(5, 5); h != 3 {
		t.Errorf("clamped high corner = %v, want 3", h)
	}

	dx, dy := g.Gradient(0, 0)
	if math.Abs(float64(dx)-0.5) > 1e-5 || math.Abs(float64(dy)-1) > 1e-5 {
		t.Errorf("gradient = (%v, %v), want (0.5, 1)", dx, dy)
	}
}

func TestBuildMeshMatchesGrid(t *testing.T) {
	g := BuildHeightGrid(samplePoints(), 9, DefaultGaussian())
	m := BuildMesh(g)

	if len(m.Triangles) != 8*8*2 {
		t.Fatalf("triangles = %d, want %d", len(m.Triangles), 8*8*2)
	}

	for row := 0; row < g.Resolution; row++ {
		for col := 0; col < g.Resolution; col++ {
			v := m.Vertex(row, col)
			if float32(v.Z) != g.At(row, col) {
				t.Errorf("vertex (%d,%d) z = %v, grid = %v", row, col, v.Z, g.At(row, col))
			}
			x, y := g.NodePosition(row, col)
			if float32(v.X) != x || float32(v.Y) != y {
				t.Errorf("vertex (%d,%d) at (%v,%v), want (%v,%v)", row, col, v.X, v.Y, x, y)
			}
		}
	}

	// Corners of the first and last vertex span [-1,1]²
	first, last := m.Vertices[0], m.Vertices[len(m.Vertices)-1]
	if first.X != -1 || first.Y != -1 || last.X != 1 || last.Y != 1 {
		t.Errorf("mesh extent (%v,%v)-(%v,%v), want (-1,-1)-(1,1)", first.X, first.Y, last.X, last.Y)
	}

	for i, tri := range m.Triangles {
		if tri.Normal.Z <= 0 {
			t.Errorf("triangle %d normal %v points down", i, tri.Normal)
		}
	}
}

func TestBuildMeshFlat(t *testing.T) {
	m := BuildMesh(NewFlatGrid(3, 0))
	for i, tri := range m.Triangles {
		if math.Abs(tri.Normal.Z-1) > 1e-12 {
			t.Errorf("triangle %d normal = %v, want +z", i, tri.Normal)
		}
	}
}

func TestLeaveOneOutRMSE(t *testing.T) {
	if got := LeaveOneOutRMSE(samplePoints()[:1], DefaultGaussian()); got != 0 {
		t.Errorf("single point rmse = %v, want 0", got)
	}

	// Flat samples with no anchor pull are predicted exactly.
	flat := []Point{{X: -0.5, Y: 0, Z: 0.3}, {X: 0.5, Y: 0, Z: 0.3}, {X: 0, Y: 0.5, Z: 0.3}}
	k := Gaussian{Sigma: 0.5, AnchorHeight: -1, AnchorWeight: 0}
	if got := LeaveOneOutRMSE(flat, k); math.Abs(got) > 1e-12 {
		t.Errorf("flat rmse = %v, want 0", got)
	}

	// Two points: each is predicted as the other when the anchor is off.
	two := []Point{{X: -0.5, Y: 0, Z: 0}, {X: 0.5, Y: 0, Z: 1}}
	if got := LeaveOneOutRMSE(two, k); math.Abs(got-1) > 1e-12 {
		t.Errorf("two-point rmse = %v, want 1", got)
	}
}
