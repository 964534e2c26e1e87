package systems

import (
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/events"
)

// DamageSpec maps damage types to amounts.
type DamageSpec map[string]float64

// Total returns the summed damage across all types.
func (d DamageSpec) Total() float64 {
	var sum float64
	for _, v := range d {
		sum += v
	}
	return sum
}

// Inventory exposes equip-slot operations.
type Inventory interface {
	// TryEquip places item into slot on host. Fails if the slot is occupied.
	TryEquip(host, item ecs.Entity, slot string) bool
	// TryUnequip empties slot on host. A forced unequip skips the attempt veto.
	TryUnequip(host ecs.Entity, slot string, force bool) bool
	SlotItem(host ecs.Entity, slot string) (ecs.Entity, bool)
}

// Status applies status effects.
type Status interface {
	Paralyze(target ecs.Entity, d time.Duration)
	Damage(target ecs.Entity, dmg DamageSpec, origin ecs.Entity)
}

// PopupKind selects the severity styling of a popup.
type PopupKind uint8

const (
	PopupSmall PopupKind = iota
	PopupLarge
	PopupLargeCaution
)

// String returns the popup kind name.
func (k PopupKind) String() string {
	switch k {
	case PopupSmall:
		return "small"
	case PopupLarge:
		return "large"
	case PopupLargeCaution:
		return "large_caution"
	default:
		return "unknown"
	}
}

// Filter scopes who sees a popup.
type Filter struct {
	Center    ecs.Entity // Entity the popup is anchored on
	Except    components.EntityRef
	Broadcast bool // Everyone in view of Center, minus Except
}

// Only shows a popup to e alone.
func Only(e ecs.Entity) Filter {
	return Filter{Center: e}
}

// EveryoneExcept shows a popup to everyone in view of center except one entity.
func EveryoneExcept(center, except ecs.Entity) Filter {
	return Filter{Center: center, Except: components.Ref(except), Broadcast: true}
}

// Message is a localizable popup. About names the entity substituted into the text.
type Message struct {
	Key   string
	About components.EntityRef
}

// Popups broadcasts user-facing notifications.
type Popups interface {
	Popup(msg Message, filter Filter, kind PopupKind)
}

// Positions resolves world positions.
type Positions interface {
	Position(e ecs.Entity) (components.Position, bool)
}

// Actions is the per-entity action grant registry.
type Actions interface {
	Grant(e ecs.Entity, a events.ActionID)
	Revoke(e ecs.Entity, a events.ActionID)
	Granted(e ecs.Entity, a events.ActionID) bool
}

// Audio plays sound cues to players in view of an entity.
type Audio interface {
	PlayPvs(cue string, at ecs.Entity)
}

// Chemistry injects reagents into a host's bloodstream.
type Chemistry interface {
	Inject(host ecs.Entity, reagent string, amount float64) bool
}

// Throwing launches entities.
type Throwing interface {
	Throw(e ecs.Entity, dir components.Velocity, strength, distance float64)
}

// Emotes triggers forced vocal emotes. Scream reports false if e cannot vocalize.
type Emotes interface {
	Scream(e ecs.Entity) bool
}

// Traits answers capability queries about entities.
type Traits interface {
	Exists(e ecs.Entity) bool
	Humanoid(e ecs.Entity) bool
	BlocksIngestion(item ecs.Entity) bool
	MobState(e ecs.Entity) (components.MobState, bool)
}

// Recorder receives possession records for telemetry.
type Recorder interface {
	Record(r Record)
}

// Env bundles the collaborators the possession systems depend on.
type Env struct {
	Bus       *events.Bus
	Inventory Inventory
	Status    Status
	Popups    Popups
	Positions Positions
	Actions   Actions
	Audio     Audio
	Chemistry Chemistry
	Throwing  Throwing
	Emotes    Emotes
	Traits    Traits
	Recorder  Recorder // Optional
	Rand      *rand.Rand
}
