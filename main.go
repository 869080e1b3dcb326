package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/mod1/config"
	"github.com/pthm-cable/mod1/game"
	"github.com/pthm-cable/mod1/server"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	file := flag.String("file", "", "Path to a .mod1 point cloud")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for snapshot files")
	restore := flag.String("restore", "", "Snapshot file to resume from")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	backend := flag.String("backend", "", "Compute backend: cpu or opencl (empty = use config)")
	serve := flag.String("serve", "", "Websocket listen address for headless runs, e.g. :8080")
	spawn := flag.Int("spawn", -1, "Initial particle count (-1 = use config)")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := game.Options{
		Seed:        rngSeed,
		File:        *file,
		Backend:     *backend,
		Spawn:       *spawn,
		LogStats:    *logStats,
		OutputDir:   *outputDir,
		SnapshotDir: *snapshotDir,
		Headless:    *headless,
	}

	if *serve != "" {
		if !*headless {
			slog.Warn("-serve implies -headless")
			opts.Headless = true
		}
		opts.Hub = server.NewHub(64)
		go func() {
			if err := server.ListenAndServe(ctx, *serve, opts.Hub); err != nil {
				slog.Error("websocket server failed", "error", err)
				stop()
			}
		}()
	}

	if opts.Headless {
		runHeadless(ctx, opts, *restore, *maxTicks, cfg.Screen.TargetFPS)
		return
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "mod1")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g := newGame(opts, *restore)
	defer g.Unload()

	for !rl.WindowShouldClose() && ctx.Err() == nil {
		g.Update()
		g.Draw()

		if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
			break
		}
	}
}

func newGame(opts game.Options, restore string) *game.Game {
	g, err := game.NewGameWithOptions(opts)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	if restore != "" {
		if err := g.RestoreSnapshot(restore); err != nil {
			slog.Error("failed to restore snapshot", "path", restore, "error", err)
			g.Unload()
			os.Exit(1)
		}
	}
	return g
}

// runHeadless steps the simulation without a window. When streaming to
// websocket clients the loop is paced to the target frame rate.
func runHeadless(ctx context.Context, opts game.Options, restore string, maxTicks, fps int) {
	g := newGame(opts, restore)
	defer g.Unload()

	slog.Info("starting headless simulation",
		"seed", opts.Seed,
		"max_ticks", maxTicks,
		"streaming", opts.Hub != nil,
	)

	var pace <-chan time.Time
	if opts.Hub != nil && fps > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()
		pace = ticker.C
	}

	for {
		if pace != nil {
			select {
			case <-ctx.Done():
			case <-pace:
			}
		}
		if ctx.Err() != nil {
			slog.Info("interrupted", "tick", g.Tick())
			return
		}

		g.UpdateHeadless()

		if maxTicks > 0 && int(g.Tick()) >= maxTicks {
			slog.Info("max ticks reached", "tick", g.Tick())
			return
		}
	}
}
