// Package components defines ECS components for the simulation.
package components

// MobState is the coarse vital status of a living entity.
type MobState uint8

const (
	MobAlive MobState = iota
	MobCritical
	MobDead
)

// Vitals holds an entity's vital status and accumulated damage.
type Vitals struct {
	State  MobState
	Damage float32 // Total damage taken across all types
}

// Appearance marks entities with a humanoid face that can be latched onto.
type Appearance struct {
	Humanoid bool
}

// Slot names used by inventories.
const (
	SlotHead = "head"
	SlotMask = "mask"
)

// Inventory maps equip slots to the item entity occupying them.
// Items are stored by entity ID; the world resolves IDs back to entities.
type Inventory struct {
	Slots map[string]uint32
}

// IngestionBlocker marks head items that seal the face (full helmets, gas masks).
type IngestionBlocker struct{}

// Vocal marks entities able to scream or emote.
type Vocal struct {
	ScreamCount int32
}

// Bloodstream holds reagents dissolved in a host's fluids.
type Bloodstream struct {
	Reagents map[string]float32
}

// Paralysis holds remaining stun time in seconds.
type Paralysis struct {
	Remaining float32
}

// Actions holds the bitset of action handles currently granted to an entity.
type Actions struct {
	Granted uint8
}

// Name holds a display name used in popups.
type Name struct {
	Value string
}

// BrainSlug tags an organism entity and selects its archetype.
type BrainSlug struct {
	ArchetypeID uint8
}

// Flight tracks an entity in mid-throw.
type Flight struct {
	ThrowerID uint32
	Remaining float32 // Distance left to travel
	Speed     float32 // Units per second
}
