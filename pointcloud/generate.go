package pointcloud

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"github.com/ojrac/opensimplex-go"
)

// GenerateOptions controls procedural cloud generation.
type GenerateOptions struct {
	Seed      int64
	Count     int     // number of sample points
	Extent    float64 // x and y are drawn from [0, Extent]
	MaxHeight float64 // z is in [0, MaxHeight]
	Scale     float64 // noise frequency over the unit square
	Octaves   int
}

// DefaultGenerateOptions returns a rolling landscape in the units of the
// bundled .mod1 maps.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Seed:      1,
		Count:     40,
		Extent:    20000,
		MaxHeight: 5000,
		Scale:     2.5,
		Octaves:   4,
	}
}

// Generate scatters Count points over the square and samples their
// heights from fractal simplex noise. Output is deterministic per Seed.
func Generate(o GenerateOptions) []RawPoint {
	if o.Count <= 0 {
		return nil
	}
	if o.Octaves < 1 {
		o.Octaves = 1
	}

	noise := opensimplex.NewNormalized(o.Seed)
	rng := rand.New(rand.NewSource(o.Seed))

	pts := make([]RawPoint, o.Count)
	for i := range pts {
		u, v := rng.Float64(), rng.Float64()
		pts[i] = RawPoint{
			X: u * o.Extent,
			Y: v * o.Extent,
			Z: fbm(noise, u*o.Scale, v*o.Scale, o.Octaves) * o.MaxHeight,
		}
	}
	return pts
}

// fbm sums octaves of normalized noise; the result stays in [0,1].
func fbm(n opensimplex.Noise, x, y float64, octaves int) float64 {
	var sum, norm float64
	amp, freq := 1.0, 1.0
	for i := 0; i < octaves; i++ {
		sum += amp * n.Eval2(x*freq, y*freq)
		norm += amp
		amp *= 0.5
		freq *= 2
	}
	return sum / norm
}

// Write emits points in .mod1 form, perLine groups to a line.
func Write(w io.Writer, pts []RawPoint, perLine int) error {
	if perLine < 1 {
		perLine = 1
	}
	bw := bufio.NewWriter(w)
	for i, p := range pts {
		sep := " "
		if (i+1)%perLine == 0 || i == len(pts)-1 {
			sep = "\n"
		}
		if _, err := fmt.Fprintf(bw, "(%s,%s,%s)%s", formatCoord(p.X), formatCoord(p.Y), formatCoord(p.Z), sep); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
