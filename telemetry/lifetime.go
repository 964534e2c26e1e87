package telemetry

// LifetimeStats tracks per-organism statistics over its lifetime.
type LifetimeStats struct {
	SpawnTick       int32
	SurvivalTimeSec float32
	ArchetypeID     uint8

	// Attachment
	AttachAttempts int
	Attaches       int
	ForcedDetaches int

	// Possession
	Hijacks         int
	Releases        int
	HostsPossessed  int
	PossessedSec    float32
	ReagentInjected float64

	Bites int

	lastHost uint32
}

// LifetimeTracker manages per-organism lifetime statistics.
type LifetimeTracker struct {
	stats map[uint32]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[uint32]*LifetimeStats),
	}
}

// Register creates lifetime stats for a new organism.
func (lt *LifetimeTracker) Register(slugID uint32, spawnTick int32, archetypeID uint8) {
	lt.stats[slugID] = &LifetimeStats{
		SpawnTick:   spawnTick,
		ArchetypeID: archetypeID,
	}
}

// Get returns the lifetime stats for an organism, or nil if not found.
func (lt *LifetimeTracker) Get(slugID uint32) *LifetimeStats {
	return lt.stats[slugID]
}

// Remove removes an organism's stats and returns them (for snapshot/logging).
func (lt *LifetimeTracker) Remove(slugID uint32) *LifetimeStats {
	stats := lt.stats[slugID]
	delete(lt.stats, slugID)
	return stats
}

// Observe folds one event into the owning organism's stats.
func (lt *LifetimeTracker) Observe(ev Event) {
	s := lt.stats[ev.SlugID]
	if s == nil {
		return
	}
	switch ev.Type {
	case EventAttachAttempt:
		s.AttachAttempts++
	case EventAttached:
		s.Attaches++
	case EventHijacked:
		s.Hijacks++
		if ev.HostID != s.lastHost {
			s.HostsPossessed++
			s.lastHost = ev.HostID
		}
	case EventReleased:
		s.Releases++
	case EventForcedDetach:
		s.ForcedDetaches++
	case EventInjection:
		if ev.Success {
			s.ReagentInjected += ev.Amount
		}
	case EventBite:
		s.Bites++
	}
}

// AddPossessedTime accumulates time spent puppeteering a host.
func (lt *LifetimeTracker) AddPossessedTime(slugID uint32, dt float32) {
	if s := lt.stats[slugID]; s != nil {
		s.PossessedSec += dt
	}
}

// UpdateSurvivalTime updates the survival time based on current tick.
func (lt *LifetimeTracker) UpdateSurvivalTime(slugID uint32, currentTick int32, dt float32) {
	if s := lt.stats[slugID]; s != nil {
		s.SurvivalTimeSec = float32(currentTick-s.SpawnTick) * dt
	}
}

// All returns all tracked stats (for snapshots).
func (lt *LifetimeTracker) All() map[uint32]*LifetimeStats {
	return lt.stats
}

// Count returns the number of tracked organisms.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}

// ActiveArchetypeCount returns the number of distinct archetypes still alive.
func (lt *LifetimeTracker) ActiveArchetypeCount() int {
	seen := make(map[uint8]struct{})
	for _, stats := range lt.stats {
		seen[stats.ArchetypeID] = struct{}{}
	}
	return len(seen)
}
