package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/mod1/config"
	"github.com/pthm-cable/mod1/particles"
)

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir           string
	telemetryFile *os.File
	perfFile      *os.File

	// Track if headers have been written
	telemetryHeaderWritten bool
	perfHeaderWritten      bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	// Create output directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	// Open telemetry.csv
	telemetryPath := filepath.Join(dir, "telemetry.csv")
	f, err := os.Create(telemetryPath)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry.csv: %w", err)
	}
	om.telemetryFile = f

	// Open perf.csv
	perfPath := filepath.Join(dir, "perf.csv")
	f, err = os.Create(perfPath)
	if err != nil {
		om.telemetryFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	configPath := filepath.Join(om.dir, "config.yaml")
	return cfg.WriteYAML(configPath)
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}

	records := []WindowStats{stats}

	if !om.telemetryHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.telemetryFile); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		om.telemetryHeaderWritten = true
	} else {
		// Subsequent writes skip headers
		if err := gocsv.MarshalWithoutHeaders(records, om.telemetryFile); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
	}

	return nil
}

// WritePerf appends a stage summary row to perf.csv.
func (om *OutputManager) WritePerf(summary StageSummary, windowEnd int32) error {
	if om == nil {
		return nil
	}

	records := []StageSummaryCSV{summary.ToCSV(windowEnd)}

	if !om.perfHeaderWritten {
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		om.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
	}

	return nil
}

// ParticleCSV is one row of a particle dump.
type ParticleCSV struct {
	ID     uint32  `csv:"id"`
	X      float32 `csv:"x"`
	Y      float32 `csv:"y"`
	Z      float32 `csv:"z"`
	VX     float32 `csv:"vx"`
	VY     float32 `csv:"vy"`
	VZ     float32 `csv:"vz"`
	Radius float32 `csv:"radius"`
	Mass   float32 `csv:"mass"`
}

// WriteParticles dumps a particle read-back to particles_<tick>.csv and
// returns the file path.
func (om *OutputManager) WriteParticles(tick int32, ps []particles.Particle) (string, error) {
	if om == nil {
		return "", nil
	}

	rows := make([]ParticleCSV, len(ps))
	for i, p := range ps {
		rows[i] = ParticleCSV{
			ID: p.ID,
			X:  p.Position[0], Y: p.Position[1], Z: p.Position[2],
			VX: p.Velocity[0], VY: p.Velocity[1], VZ: p.Velocity[2],
			Radius: p.Radius,
			Mass:   p.Mass,
		}
	}

	path := filepath.Join(om.dir, fmt.Sprintf("particles_%06d.csv", tick))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating particle dump: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return "", fmt.Errorf("writing particle dump: %w", err)
	}
	return path, nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error

	if om.telemetryFile != nil {
		if err := om.telemetryFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.perfFile != nil {
		if err := om.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
