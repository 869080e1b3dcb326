// Terrain screenshot tool - renders a point cloud's surface to a PNG file.
//
// Usage: go run ./cmd/terrainshot -file maps/demo1.mod1 -out demo1.png
package main

import (
	"flag"
	"log/slog"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/mod1/camera"
	"github.com/pthm-cable/mod1/config"
	"github.com/pthm-cable/mod1/pointcloud"
	"github.com/pthm-cable/mod1/renderer"
	"github.com/pthm-cable/mod1/terrain"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	file := flag.String("file", "", "Path to a .mod1 point cloud (empty = flat anchor field)")
	outPath := flag.String("out", "terrain.png", "Output PNG path")
	width := flag.Int("width", 1024, "Render width")
	height := flag.Int("height", 768, "Render height")
	kernel := flag.String("kernel", "", "Kernel: gaussian or idw (empty = use config)")
	rotate := flag.Float64("rotate", 0, "Orbit the camera by this many degrees")
	wireframe := flag.Bool("wireframe", false, "Overlay the mesh wireframe")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	var cloud pointcloud.Cloud
	if *file != "" {
		var err error
		cloud, err = pointcloud.Load(*file)
		if err != nil {
			slog.Error("failed to load point cloud", "error", err)
			os.Exit(1)
		}
	}

	tc := cfg.Terrain
	name := tc.Kernel
	if *kernel != "" {
		name = *kernel
	}
	k := terrain.KernelFromName(name, terrain.KernelOptions{
		Sigma:        tc.Sigma,
		AnchorHeight: tc.AnchorHeight,
		AnchorWeight: tc.AnchorWeight,
		IDWPower:     tc.IDWPower,
		FadeStart:    tc.FadeStart,
	})
	grid := terrain.BuildHeightGrid(cloud.Points, tc.Resolution, k)

	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(int32(*width), int32(*height), "Terrain Shot")
	defer rl.CloseWindow()

	scene := renderer.NewScene(cfg.Derived.WorldBounds32)
	scene.SetTerrain(terrain.BuildMesh(grid))
	scene.Overlays.Wireframe = *wireframe
	scene.Overlays.Markers = false

	cam := camera.New()
	if *rotate != 0 {
		cam.Rotate(*rotate)
	}

	target := rl.LoadRenderTexture(int32(*width), int32(*height))
	defer rl.UnloadRenderTexture(target)

	rl.BeginTextureMode(target)
	rl.ClearBackground(rl.Color{R: 15, G: 18, B: 24, A: 255})
	scene.Draw(cam, nil, nil)
	rl.EndTextureMode()

	// Render textures come back upside down.
	img := rl.LoadImageFromTexture(target.Texture)
	rl.ImageFlipVertical(img)
	ok := rl.ExportImage(*img, *outPath)
	rl.UnloadImage(img)

	if !ok {
		slog.Error("failed to export image", "path", *outPath)
		os.Exit(1)
	}
	lo, hi := grid.Range()
	slog.Info("terrain rendered",
		"path", *outPath,
		"points", len(cloud.Points),
		"kernel", name,
		"min", lo,
		"max", hi,
	)
}
