package game

import (
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/mod1/components"
	"github.com/pthm-cable/mod1/pointcloud"
	"github.com/pthm-cable/mod1/renderer"
	"github.com/pthm-cable/mod1/server"
	"github.com/pthm-cable/mod1/terrain"
)

// Terrain kernel names understood by terrain.KernelFromName.
const (
	KernelGaussian = "gaussian"
	KernelIDW      = "idw"
)

// LoadFile replaces the point cloud with the one in path and rebuilds the
// terrain. On error the previous terrain is kept.
func (g *Game) LoadFile(path string) error {
	cloud, err := pointcloud.Load(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	g.sourcePath = path
	g.cloud = cloud
	g.rebuildMarkers()
	g.rebuildTerrain()

	slog.Info("point cloud loaded",
		"file", cloud.Meta.Filename,
		"points", cloud.Meta.TotalPoints,
		"max_range", cloud.Meta.MaxRange,
	)
	return nil
}

// SetKernel switches the interpolation kernel and rebuilds the terrain.
func (g *Game) SetKernel(name string) {
	g.kernelName = name
	g.rebuildTerrain()
}

// ToggleKernel alternates between the Gaussian and inverse-distance kernels.
func (g *Game) ToggleKernel() {
	if g.kernelName == KernelIDW {
		g.SetKernel(KernelGaussian)
	} else {
		g.SetKernel(KernelIDW)
	}
}

// Kernel returns the active kernel name.
func (g *Game) Kernel() string {
	if g.kernelName == "" {
		return KernelGaussian
	}
	return g.kernelName
}

// SetTerrainResolution changes the number of height nodes per side and
// rebuilds the terrain. Non-positive resolutions are ignored.
func (g *Game) SetTerrainResolution(res int) {
	if res < 1 {
		slog.Warn("ignoring terrain resolution", "resolution", res)
		return
	}
	g.terrainRes = res
	g.rebuildTerrain()
}

// rebuildTerrain interpolates the height grid from the current cloud and
// pushes it to the device, the renderer and connected clients. With no
// points the grid is the flat anchor field.
func (g *Game) rebuildTerrain() {
	tc := g.cfg.Terrain
	k := terrain.KernelFromName(g.kernelName, terrain.KernelOptions{
		Sigma:        tc.Sigma,
		AnchorHeight: tc.AnchorHeight,
		AnchorWeight: tc.AnchorWeight,
		IDWPower:     tc.IDWPower,
		FadeStart:    tc.FadeStart,
	})

	g.surface = terrain.BuildHeightGrid(g.cloud.Points, g.terrainRes, k)
	g.mesh = terrain.BuildMesh(g.surface)

	if err := g.store.UpdateTerrainSurface(g.surface); err != nil {
		slog.Error("failed to upload terrain", "error", err)
	}
	if g.scene != nil {
		g.scene.SetTerrain(g.mesh)
	}
	if g.hub != nil {
		g.hub.SetTerrain(server.NewTerrainMessage(g.surface))
	}

	lo, hi := g.surface.Range()
	slog.Debug("terrain rebuilt", "kernel", g.Kernel(), "resolution", g.surface.Resolution, "min", lo, "max", hi)
}

// rebuildMarkers replaces the marker entities with one per sample point.
func (g *Game) rebuildMarkers() {
	var stale []ecs.Entity
	query := g.markerFilter.Query()
	for query.Next() {
		stale = append(stale, query.Entity())
	}
	for _, e := range stale {
		g.markerMapper.Remove(e)
	}

	for i, p := range g.cloud.Points {
		pos := components.Position{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)}
		sp := components.SamplePoint{Index: i}
		if i < len(g.cloud.Raw) {
			raw := g.cloud.Raw[i]
			sp.Line = raw.Line
			sp.Original = [3]float64{raw.X, raw.Y, raw.Z}
		}
		marker := components.Marker{Size: markerSize}
		g.markerMapper.NewEntity(&pos, &sp, &marker)
	}
}

// MarkerCount returns the number of sample point markers.
func (g *Game) MarkerCount() int {
	n := 0
	query := g.markerFilter.Query()
	for query.Next() {
		n++
	}
	return n
}

// collectMarkers gathers marker instances for drawing.
func (g *Game) collectMarkers(dst []renderer.Marker) []renderer.Marker {
	dst = dst[:0]
	query := g.markerFilter.Query()
	for query.Next() {
		pos, _, m := query.Get()
		dst = append(dst, renderer.Marker{
			Position:    toVector3(pos),
			Size:        m.Size,
			Highlighted: m.Highlighted,
		})
	}
	return dst
}
