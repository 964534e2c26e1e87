package systems

import (
	"errors"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/config"
	"github.com/pthm-cable/slug/events"
)

var (
	ErrUnknownOrganism  = errors.New("entity is not a registered organism")
	ErrActionNotGranted = errors.New("action not granted")
	ErrNotAttached      = errors.New("organism is not attached")
	ErrHostDead         = errors.New("host is dead")
	ErrDoAfterBusy      = errors.New("a timed action is already pending")
	ErrOrganismDead     = errors.New("organism is dead")
	ErrIneligible       = errors.New("target is not eligible for attachment")
	ErrEquipFailed      = errors.New("equip into attach slot failed")
)

// Phase is a position in the possession sequence.
type Phase uint8

const (
	PhaseFree Phase = iota
	PhaseAttached
	PhaseHijacking
	PhasePossessing
	PhaseReleasing
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseFree:
		return "free"
	case PhaseAttached:
		return "attached"
	case PhaseHijacking:
		return "hijacking"
	case PhasePossessing:
		return "possessing"
	case PhaseReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// Action families. Exactly one is non-empty for any organism.
var (
	preHijackActions  = []events.ActionID{events.ActionJump, events.ActionHijack}
	postHijackActions = []events.ActionID{events.ActionDominate, events.ActionTorment, events.ActionRelease}
	allActions        = append(append([]events.ActionID{}, preHijackActions...), postHijackActions...)
)

// Containment is an exclusive slot recording where an organism is lodged.
type Containment struct {
	occupant components.EntityRef
	host     components.EntityRef
	slot     string
}

// Insert lodges item in slot on host. Fails if already occupied.
func (c *Containment) Insert(item, host ecs.Entity, slot string) bool {
	if c.occupant.IsSet() {
		return false
	}
	c.occupant = components.Ref(item)
	c.host = components.Ref(host)
	c.slot = slot
	return true
}

// Remove empties the slot. ok is false if it was already empty.
func (c *Containment) Remove() (host ecs.Entity, slot string, ok bool) {
	if !c.occupant.IsSet() {
		return ecs.Entity{}, "", false
	}
	host, _ = c.host.Get()
	slot = c.slot
	*c = Containment{}
	return host, slot, true
}

// Occupied reports whether something is lodged.
func (c *Containment) Occupied() bool {
	return c.occupant.IsSet()
}

// Organism is the possession state of one brain slug entity.
// Fields are mutated only by BrainSlugSystem.
type Organism struct {
	entity      ecs.Entity
	archetype   *config.SlugArchetype
	timing      config.ArchetypeTiming
	host        components.EntityRef
	deceased    bool
	accumulator time.Duration
	phase       Phase
	containment Containment
	pending     events.DoAfterID
}

// Entity returns the organism's entity.
func (o *Organism) Entity() ecs.Entity { return o.entity }

// Archetype returns the organism's static archetype data.
func (o *Organism) Archetype() *config.SlugArchetype { return o.archetype }

// Host returns the attached host, if any.
func (o *Organism) Host() (ecs.Entity, bool) { return o.host.Get() }

// Phase returns the current possession phase.
func (o *Organism) Phase() Phase { return o.phase }

// Deceased reports whether the organism's death was observed.
func (o *Organism) Deceased() bool { return o.deceased }

// Contained reports whether the containment slot is occupied.
func (o *Organism) Contained() bool { return o.containment.Occupied() }

// Pending returns the in-flight timed action, or zero.
func (o *Organism) Pending() events.DoAfterID { return o.pending }

// multiPhase reports whether the archetype can hijack.
func (o *Organism) multiPhase() bool {
	return o.archetype.Mode == config.ModeMultiPhase
}

// grantedFor returns the action set for the current phase.
func (o *Organism) grantedFor() []events.ActionID {
	switch o.phase {
	case PhaseFree:
		return []events.ActionID{events.ActionJump}
	case PhaseAttached, PhaseHijacking:
		if o.multiPhase() {
			return []events.ActionID{events.ActionHijack}
		}
		return nil
	case PhasePossessing, PhaseReleasing:
		return postHijackActions
	}
	return nil
}

// RecordKind classifies a possession record.
type RecordKind uint8

const (
	RecordAttachAttempt RecordKind = iota
	RecordAttached
	RecordHijackStarted
	RecordHijacked
	RecordHijackCancelled
	RecordInjection
	RecordReleaseStarted
	RecordReleased
	RecordReleaseCancelled
	RecordDetached
	RecordForcedDetach
	RecordDominate
	RecordTorment
	RecordBite
	RecordJump
	RecordDeath
)

var recordKindNames = [...]string{
	"attach_attempt", "attached", "hijack_started", "hijacked", "hijack_cancelled",
	"injection", "release_started", "released", "release_cancelled", "detached",
	"forced_detach", "dominate", "torment", "bite", "jump", "death",
}

// String returns the record kind name.
func (k RecordKind) String() string {
	if int(k) < len(recordKindNames) {
		return recordKindNames[k]
	}
	return "unknown"
}

// Trigger identifies what prompted an attach attempt.
type Trigger uint8

const (
	TriggerNone Trigger = iota
	TriggerMelee
	TriggerThrow
	TriggerContact
	TriggerEquip
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerMelee:
		return "melee"
	case TriggerThrow:
		return "throw"
	case TriggerContact:
		return "contact"
	case TriggerEquip:
		return "equip"
	default:
		return "none"
	}
}

// Cause explains a detach.
type Cause uint8

const (
	CauseNone Cause = iota
	CauseReleased
	CauseUnequipped
	CauseHostDeath
	CauseHostMissing
	CauseOrganismDeath
	CauseRemoved
)

// String returns the cause name.
func (c Cause) String() string {
	switch c {
	case CauseReleased:
		return "released"
	case CauseUnequipped:
		return "unequipped"
	case CauseHostDeath:
		return "host_death"
	case CauseHostMissing:
		return "host_missing"
	case CauseOrganismDeath:
		return "organism_death"
	case CauseRemoved:
		return "removed"
	default:
		return "none"
	}
}

// Record describes one possession occurrence.
type Record struct {
	Kind      RecordKind
	Slug      ecs.Entity
	Host      components.EntityRef
	Archetype string
	Phase     Phase // Phase after the occurrence
	Trigger   Trigger
	Cause     Cause
	Success   bool
	Amount    float64
}
