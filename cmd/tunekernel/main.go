// Package main tunes the terrain interpolation kernel with CMA-ES so that
// the surface reproduces held-out sample heights as closely as possible.
//
// Usage: go run ./cmd/tunekernel -file a.mod1,b.mod1 -output out/
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/mod1/config"
	"github.com/pthm-cable/mod1/pointcloud"
	"github.com/pthm-cable/mod1/terrain"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	files := flag.String("file", "", "Comma-separated .mod1 point clouds to fit")
	kernel := flag.String("kernel", "", "Kernel to tune: gaussian or idw (empty = use config)")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if *outputDir == "" || *files == "" {
		slog.Error("-output and -file are required")
		os.Exit(2)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	baseCfg := config.Cfg()

	clouds, err := loadClouds(strings.Split(*files, ","))
	if err != nil {
		slog.Error("failed to load point cloud", "error", err)
		os.Exit(1)
	}

	name := *kernel
	if name == "" {
		name = baseCfg.Terrain.Kernel
	}
	params := NewParamVector(name)
	evaluator := NewFitnessEvaluator(params, clouds, baseCfg)

	dim := params.Dim()
	initRaw := params.ExtractFromConfig(baseCfg)
	initX := params.Normalize(initRaw)
	baseline := evaluator.Evaluate(initRaw)

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		slog.Error("failed to create log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "rmse"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := logWriter.Write(header); err != nil {
		slog.Error("failed to write log header", "error", err)
		os.Exit(1)
	}

	evalCount := 0
	bestFitness := baseline
	bestParams := initRaw
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Out-of-range steps are evaluated at the clamped point.
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6f", fitness)}
			for _, v := range clamped {
				row = append(row, fmt.Sprintf("%.6f", v))
			}
			logWriter.Write(row)
			logWriter.Flush()

			if evalCount%10 == 0 {
				elapsed := time.Since(startTime)
				remaining := time.Duration(*maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
				slog.Info("progress",
					"eval", evalCount,
					"max_evals", *maxEvals,
					"rmse", fitness,
					"best", bestFitness,
					"elapsed", formatDuration(elapsed),
					"eta", formatDuration(remaining),
				)
			}
			return fitness
		},
	}

	slog.Info("starting CMA-ES",
		"kernel", params.Kernel,
		"params", dim,
		"population", popSize,
		"max_evals", *maxEvals,
		"clouds", len(clouds),
		"baseline_rmse", baseline,
	)

	if _, err := optimize.Minimize(problem, initX, settings, method); err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	attrs := []any{"evals", evalCount, "elapsed", formatDuration(time.Since(startTime)), "rmse", bestFitness}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, bestParams[i])
	}
	slog.Info("optimization complete", attrs...)

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to reload config", "error", err)
		os.Exit(1)
	}
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		slog.Error("failed to write best config", "error", err)
		os.Exit(1)
	}
	slog.Info("best config saved", "path", configOutPath)
}

// loadClouds reads every path into its normalized sample points.
func loadClouds(paths []string) ([][]terrain.Point, error) {
	clouds := make([][]terrain.Point, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c, err := pointcloud.Load(p)
		if err != nil {
			return nil, err
		}
		clouds = append(clouds, c.Points)
	}
	if len(clouds) == 0 {
		return nil, fmt.Errorf("no point clouds given")
	}
	return clouds, nil
}
