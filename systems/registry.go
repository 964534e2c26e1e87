package systems

// SystemInfo describes one step of the simulation tick.
type SystemInfo struct {
	ID          string // Internal identifier, shared with the perf phase name
	Name        string // Display name
	Description string // What this system does
	Category    string // Grouping (e.g., "physics", "status", "possession")
}

// SystemRegistry holds metadata about all systems in tick order.
// IDs double as perf phase names so perf output and logs agree.
type SystemRegistry struct {
	systems []SystemInfo
	byID    map[string]SystemInfo
}

// NewSystemRegistry creates a registry with all known systems.
func NewSystemRegistry() *SystemRegistry {
	reg := &SystemRegistry{
		byID: make(map[string]SystemInfo),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds all known systems to the registry.
// Update this when adding new systems.
func (r *SystemRegistry) registerDefaults() {
	// Physical world
	r.Register(SystemInfo{ID: "flight", Name: "Flight", Description: "Moves thrown entities and raises impacts", Category: "physics"})
	r.Register(SystemInfo{ID: "movement", Name: "Movement", Description: "Integrates host and organism velocities", Category: "physics"})

	// Host state
	r.Register(SystemInfo{ID: "status", Name: "Status", Description: "Stuns, reagent metabolism and hazards", Category: "status"})

	// Possession
	r.Register(SystemInfo{ID: "behavior", Name: "Behavior", Description: "Picks leaps, bites and possession actions", Category: "ai"})
	r.Register(SystemInfo{ID: "do_after", Name: "Do-After", Description: "Advances timed actions", Category: "possession"})
	r.Register(SystemInfo{ID: "ticker", Name: "Ticker", Description: "Periodic host status and viability check", Category: "possession"})

	// Bookkeeping
	r.Register(SystemInfo{ID: "cleanup", Name: "Cleanup", Description: "Removes decayed corpses", Category: "core"})
	r.Register(SystemInfo{ID: "telemetry", Name: "Telemetry", Description: "Flushes stats windows and snapshots", Category: "core"})
}

// Register adds a system to the registry.
func (r *SystemRegistry) Register(info SystemInfo) {
	r.systems = append(r.systems, info)
	r.byID[info.ID] = info
}

// Get returns system info by ID.
func (r *SystemRegistry) Get(id string) (SystemInfo, bool) {
	info, ok := r.byID[id]
	return info, ok
}

// GetName returns the display name for a system ID.
// Falls back to the ID itself if not found.
func (r *SystemRegistry) GetName(id string) string {
	if info, ok := r.byID[id]; ok {
		return info.Name
	}
	return id
}

// IDs returns all system IDs in registration order.
func (r *SystemRegistry) IDs() []string {
	ids := make([]string, len(r.systems))
	for i, info := range r.systems {
		ids[i] = info.ID
	}
	return ids
}
