// Package pointcloud reads .mod1 sample files and normalizes them into
// the [-1,1]³ cube the terrain is built in.
package pointcloud

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mod1/terrain"
)

// ErrMalformedGroup is wrapped by parse errors for groups that are not (x,y,z).
var ErrMalformedGroup = errors.New("malformed coordinate group")

// RawPoint is a point as written in the file.
type RawPoint struct {
	X, Y, Z float64
	Line    int // 1-based source line
}

// Bounds is an axis-aligned box.
type Bounds struct {
	Min, Max r3.Vec
}

// Metadata describes a loaded cloud.
type Metadata struct {
	Filename    string
	TotalPoints int
	Bounds      Bounds // of the raw points
	MaxRange    float64
}

// Cloud is a normalized point cloud. Points and Raw share indices.
type Cloud struct {
	Points []terrain.Point
	Raw    []RawPoint
	Meta   Metadata
}

// Parse reads whitespace separated "(x,y,z)" groups, any number per line.
// Blank lines are skipped.
func Parse(r io.Reader) ([]RawPoint, error) {
	var points []RawPoint

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		for col, group := range strings.Fields(sc.Text()) {
			p, err := parseGroup(group)
			if err != nil {
				return nil, fmt.Errorf("line %d group %d %q: %w", line, col+1, group, err)
			}
			p.Line = line
			points = append(points, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading point cloud: %w", err)
	}
	return points, nil
}

func parseGroup(group string) (RawPoint, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(group, "("), ")")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 3 {
		return RawPoint{}, fmt.Errorf("%w: want 3 components, got %d", ErrMalformedGroup, len(parts))
	}

	var v [3]float64
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return RawPoint{}, fmt.Errorf("%w: %v", ErrMalformedGroup, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return RawPoint{}, fmt.Errorf("%w: non-finite component %q", ErrMalformedGroup, s)
		}
		v[i] = f
	}
	return RawPoint{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Normalize maps raw points into [-1,1]³ using one scale for all three
// axes, so the cloud keeps its proportions. A cloud with zero extent maps
// every point to the origin.
func Normalize(raw []RawPoint) Cloud {
	c := Cloud{
		Points: make([]terrain.Point, len(raw)),
		Raw:    raw,
		Meta:   Metadata{TotalPoints: len(raw)},
	}
	if len(raw) == 0 {
		return c
	}

	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range raw {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	ext := r3.Sub(hi, lo)
	maxRange := math.Max(ext.X, math.Max(ext.Y, ext.Z))

	c.Meta.Bounds = Bounds{Min: lo, Max: hi}
	c.Meta.MaxRange = maxRange

	if maxRange == 0 {
		return c
	}
	for i, p := range raw {
		c.Points[i] = terrain.Point{
			X: (p.X-lo.X)/maxRange*2 - 1,
			Y: (p.Y-lo.Y)/maxRange*2 - 1,
			Z: (p.Z-lo.Z)/maxRange*2 - 1,
		}
	}
	return c
}

// Load reads, parses and normalizes a .mod1 file.
func Load(path string) (Cloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return Cloud{}, fmt.Errorf("opening point cloud: %w", err)
	}
	defer f.Close()

	raw, err := Parse(f)
	if err != nil {
		return Cloud{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	c := Normalize(raw)
	c.Meta.Filename = filepath.Base(path)
	return c, nil
}
