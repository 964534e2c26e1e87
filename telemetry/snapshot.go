package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the possession state of a run at one tick.
type Snapshot struct {
	Version int   `json:"version"`
	RNGSeed int64 `json:"rng_seed"`

	WorldWidth  float32 `json:"world_width"`
	WorldHeight float32 `json:"world_height"`

	Tick int32 `json:"tick"`

	Hosts     []HostState     `json:"hosts"`
	Organisms []OrganismState `json:"organisms"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// HostState holds one potential host's state.
type HostState struct {
	ID       uint32  `json:"id"`
	Name     string  `json:"name"`
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	MobState string  `json:"mob_state"`
	Damage   float32 `json:"damage"`
	Humanoid bool    `json:"humanoid"`
	Headgear uint32  `json:"headgear,omitempty"`
}

// OrganismState holds one organism's state.
type OrganismState struct {
	ID        uint32  `json:"id"`
	Archetype string  `json:"archetype"`
	Phase     string  `json:"phase"`
	Host      uint32  `json:"host,omitempty"`
	Deceased  bool    `json:"deceased"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`

	Lifetime *LifetimeStatsJSON `json:"lifetime,omitempty"`
}

// LifetimeStatsJSON is the JSON-serializable form of LifetimeStats.
type LifetimeStatsJSON struct {
	SpawnTick       int32   `json:"spawn_tick"`
	SurvivalTimeSec float32 `json:"survival_time_sec"`
	AttachAttempts  int     `json:"attach_attempts"`
	Attaches        int     `json:"attaches"`
	ForcedDetaches  int     `json:"forced_detaches"`
	Hijacks         int     `json:"hijacks"`
	Releases        int     `json:"releases"`
	HostsPossessed  int     `json:"hosts_possessed"`
	PossessedSec    float32 `json:"possessed_sec"`
	ReagentInjected float64 `json:"reagent_injected"`
	Bites           int     `json:"bites"`
}

// ToJSON converts LifetimeStats to its JSON form.
func (ls *LifetimeStats) ToJSON() *LifetimeStatsJSON {
	if ls == nil {
		return nil
	}
	return &LifetimeStatsJSON{
		SpawnTick:       ls.SpawnTick,
		SurvivalTimeSec: ls.SurvivalTimeSec,
		AttachAttempts:  ls.AttachAttempts,
		Attaches:        ls.Attaches,
		ForcedDetaches:  ls.ForcedDetaches,
		Hijacks:         ls.Hijacks,
		Releases:        ls.Releases,
		HostsPossessed:  ls.HostsPossessed,
		PossessedSec:    ls.PossessedSec,
		ReagentInjected: ls.ReagentInjected,
		Bites:           ls.Bites,
	}
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

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

	return &snapshot, nil
}
