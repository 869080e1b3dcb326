// Height field preview tool - interactive kernel tuning with sliders.
//
// Usage: go run ./cmd/heightpreview [-file scene.mod1]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/mod1/pointcloud"
	"github.com/pthm-cable/mod1/terrain"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
)

// KernelParams holds the interpolation tunables shown on the sliders.
type KernelParams struct {
	Kernel       string
	Resolution   int
	Sigma        float32
	AnchorHeight float32
	AnchorWeight float32
	IDWPower     float32
	FadeStart    float32
}

func defaultParams() KernelParams {
	return KernelParams{
		Kernel:       "gaussian",
		Resolution:   terrain.DefaultResolution,
		Sigma:        0.3,
		AnchorHeight: -1,
		AnchorWeight: 1,
		IDWPower:     2,
		FadeStart:    0.7,
	}
}

func (p KernelParams) options() terrain.KernelOptions {
	return terrain.KernelOptions{
		Sigma:        float64(p.Sigma),
		AnchorHeight: float64(p.AnchorHeight),
		AnchorWeight: float64(p.AnchorWeight),
		IDWPower:     float64(p.IDWPower),
		FadeStart:    float64(p.FadeStart),
	}
}

// demoPoints is a small hill used when no file is given.
var demoPoints = []terrain.Point{
	{X: 0, Y: 0, Z: 0.5},
	{X: -0.5, Y: 0.4, Z: 0.1},
	{X: 0.6, Y: -0.3, Z: -0.2},
}

func main() {
	file := flag.String("file", "", "Path to a .mod1 point cloud (empty = demo points)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	points := demoPoints
	title := "demo"
	if *file != "" {
		cloud, err := pointcloud.Load(*file)
		if err != nil {
			slog.Error("failed to load point cloud", "error", err)
			os.Exit(1)
		}
		points = cloud.Points
		title = filepath.Base(*file)
	}

	rl.InitWindow(windowWidth, windowHeight, "Height Field Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	params := defaultParams()

	var grid *terrain.HeightGrid
	var texture rl.Texture2D
	texRes := 0
	defer func() {
		if texRes > 0 {
			rl.UnloadTexture(texture)
		}
	}()

	needsRegen := true

	for !rl.WindowShouldClose() {
		if needsRegen {
			k := terrain.KernelFromName(params.Kernel, params.options())
			grid = terrain.BuildHeightGrid(points, params.Resolution, k)

			if texRes != grid.Resolution {
				if texRes > 0 {
					rl.UnloadTexture(texture)
				}
				img := rl.GenImageColor(grid.Resolution, grid.Resolution, rl.Black)
				texture = rl.LoadTextureFromImage(img)
				rl.UnloadImage(img)
				texRes = grid.Resolution
			}
			updateTexture(texture, grid)
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		// Rows follow +y, so flip vertically to put +y at the top.
		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(texRes), Height: -float32(texRes)},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)
		drawPoints(points)

		lo, hi := grid.Range()
		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Min: %.3f  Max: %.3f  Points: %d", lo, hi, len(points)), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Source: %s", title), 15, statsY+20, 16, rl.DarkGray)

		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Terrain Kernel Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		slider := func(label, minLabel, maxLabel string, value, minV, maxV float32, format string) float32 {
			rl.DrawText(label, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 18
			v := gui.SliderBar(
				rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
				minLabel, maxLabel, value, minV, maxV,
			)
			rl.DrawText(fmt.Sprintf(format, value), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
			panelY += 35
			if v != value {
				needsRegen = true
			}
			return v
		}

		params.Resolution = int(slider("Resolution (nodes per side)", "2", "120", float32(params.Resolution), 2, 120, "%.0f"))
		params.AnchorHeight = slider("Anchor height", "-1", "1", params.AnchorHeight, -1, 1, "%.2f")

		if params.Kernel == "idw" {
			params.IDWPower = slider("Power (distance exponent)", "0.5", "6", params.IDWPower, 0.5, 6, "%.2f")
			params.FadeStart = slider("Fade start (boundary radius)", "0", "1", params.FadeStart, 0, 1, "%.2f")
		} else {
			params.Sigma = slider("Sigma (kernel width)", "0.05", "1", params.Sigma, 0.05, 1, "%.2f")
			params.AnchorWeight = slider("Anchor weight", "0", "5", params.AnchorWeight, 0, 5, "%.2f")
		}

		rl.DrawLine(int32(panelX), int32(panelY), int32(panelX)+int32(panelWidth)-20, int32(panelY), rl.LightGray)
		panelY += 15

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Kernel: "+params.Kernel) {
			if params.Kernel == "idw" {
				params.Kernel = "gaussian"
			} else {
				params.Kernel = "idw"
			}
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = defaultParams()
			needsRegen = true
		}
		panelY += 55

		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		for _, line := range yamlLines(params) {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			text := ""
			for _, line := range yamlLines(params) {
				text += line + "\n"
			}
			rl.SetClipboardText(text)
		}

		rl.EndDrawing()
	}
}

func yamlLines(p KernelParams) []string {
	return []string{
		"terrain:",
		fmt.Sprintf("  resolution: %d", p.Resolution),
		fmt.Sprintf("  kernel: %s", p.Kernel),
		fmt.Sprintf("  sigma: %.2f", p.Sigma),
		fmt.Sprintf("  anchor_height: %.2f", p.AnchorHeight),
		fmt.Sprintf("  anchor_weight: %.2f", p.AnchorWeight),
		fmt.Sprintf("  idw_power: %.2f", p.IDWPower),
		fmt.Sprintf("  fade_start: %.2f", p.FadeStart),
	}
}

// drawPoints marks the sample points over the preview.
func drawPoints(points []terrain.Point) {
	for _, p := range points {
		x := 10 + int32((p.X+1)/2*previewSize)
		y := 10 + int32((1-p.Y)/2*previewSize)
		rl.DrawCircle(x, y, 4, rl.Red)
		rl.DrawCircleLines(x, y, 4, rl.White)
	}
}

// updateTexture updates the GPU texture from the grid heights.
func updateTexture(texture rl.Texture2D, grid *terrain.HeightGrid) {
	lo, hi := grid.Range()
	span := hi - lo
	pixels := make([]color.RGBA, len(grid.Heights))
	for i, h := range grid.Heights {
		v := float32(0.5)
		if span > 0 {
			v = (h - lo) / span
		}
		pixels[i] = ramp(v)
	}
	rl.UpdateTexture(texture, pixels)
}

// ramp maps [0,1] to dark blue -> cyan -> yellow -> white.
func ramp(v float32) color.RGBA {
	var r, g, b uint8
	if v < 0.25 {
		t := v / 0.25
		r = uint8(10 + t*30)
		g = uint8(20 + t*60)
		b = uint8(60 + t*100)
	} else if v < 0.5 {
		t := (v - 0.25) / 0.25
		r = uint8(40 + t*20)
		g = uint8(80 + t*120)
		b = uint8(160 + t*40)
	} else if v < 0.75 {
		t := (v - 0.5) / 0.25
		r = uint8(60 + t*140)
		g = uint8(200 - t*40)
		b = uint8(200 - t*150)
	} else {
		t := (v - 0.75) / 0.25
		r = uint8(200 + t*55)
		g = uint8(160 + t*95)
		b = uint8(50 + t*205)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
