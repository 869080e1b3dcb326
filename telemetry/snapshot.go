package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pthm-cable/mod1/particles"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the scene state needed to resume a run.
type Snapshot struct {
	Version int    `json:"version"`
	RNGSeed uint64 `json:"rng_seed"`

	// Terrain source; the surface is rebuilt from it on load.
	SourceFile        string `json:"source_file,omitempty"`
	TerrainKernel     string `json:"terrain_kernel"`
	TerrainResolution int    `json:"terrain_resolution"`

	Tick int32 `json:"tick"`

	Particles []ParticleState `json:"particles"`
}

// ParticleState holds one particle's state. The slot is implied by order.
type ParticleState struct {
	ID       uint32     `json:"id"`
	Position [3]float32 `json:"position"`
	Velocity [3]float32 `json:"velocity"`
	Radius   float32    `json:"radius"`
	Mass     float32    `json:"mass"`
}

// ParticleStates converts a read-back into snapshot form.
func ParticleStates(ps []particles.Particle) []ParticleState {
	out := make([]ParticleState, len(ps))
	for i, p := range ps {
		out[i] = ParticleState{
			ID:       p.ID,
			Position: p.Position,
			Velocity: p.Velocity,
			Radius:   p.Radius,
			Mass:     p.Mass,
		}
	}
	return out
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", snapshot.Tick))

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
