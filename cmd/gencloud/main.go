// Command gencloud writes a procedural .mod1 point cloud.
//
// Usage: go run ./cmd/gencloud -seed 7 -count 60 -out maps/hills.mod1
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/pthm-cable/mod1/pointcloud"
)

func main() {
	def := pointcloud.DefaultGenerateOptions()

	out := flag.String("out", "", "Output .mod1 path (empty = stdout)")
	seed := flag.Int64("seed", def.Seed, "Noise and scatter seed")
	count := flag.Int("count", def.Count, "Number of sample points")
	extent := flag.Float64("extent", def.Extent, "Side length of the sampled square")
	maxHeight := flag.Float64("max-height", def.MaxHeight, "Height of a full-scale noise peak")
	scale := flag.Float64("scale", def.Scale, "Noise frequency across the square")
	octaves := flag.Int("octaves", def.Octaves, "Noise octaves")
	perLine := flag.Int("per-line", 4, "Coordinate groups per line")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	pts := pointcloud.Generate(pointcloud.GenerateOptions{
		Seed:      *seed,
		Count:     *count,
		Extent:    *extent,
		MaxHeight: *maxHeight,
		Scale:     *scale,
		Octaves:   *octaves,
	})

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			slog.Error("failed to create output", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := pointcloud.Write(w, pts, *perLine); err != nil {
		slog.Error("failed to write point cloud", "error", err)
		os.Exit(1)
	}
	slog.Info("point cloud written", "points", len(pts), "seed", *seed, "out", *out)
}
