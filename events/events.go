// Package events provides a closed set of directed entity events and a
// synchronous bus that routes them by (component tag, event kind).
package events

import (
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
)

// Kind identifies an event variant.
type Kind uint8

const (
	KindMeleeHit Kind = iota
	KindThrowHit
	KindHandPickup
	KindEquipped
	KindUnequipped
	KindUnequipAttempt
	KindMobStateChanged
	KindAction
	KindDoAfter
	kindCount
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindMeleeHit:
		return "melee_hit"
	case KindThrowHit:
		return "throw_hit"
	case KindHandPickup:
		return "hand_pickup"
	case KindEquipped:
		return "equipped"
	case KindUnequipped:
		return "unequipped"
	case KindUnequipAttempt:
		return "unequip_attempt"
	case KindMobStateChanged:
		return "mob_state_changed"
	case KindAction:
		return "action"
	case KindDoAfter:
		return "do_after"
	default:
		return "unknown"
	}
}

// Event is implemented by every event variant.
// Events are always passed by pointer so handlers can set flags.
type Event interface {
	Kind() Kind
	Handle()
	Handled() bool
}

// Flags carries the handled and cancelled state shared by all events.
type Flags struct {
	handled   bool
	cancelled bool
}

// Handle marks the event as processed.
func (f *Flags) Handle() { f.handled = true }

// Handled reports whether a handler already processed the event.
func (f *Flags) Handled() bool { return f.handled }

// Cancel vetoes the operation the event announces.
func (f *Flags) Cancel() { f.cancelled = true }

// Cancelled reports whether a handler vetoed the operation.
func (f *Flags) Cancelled() bool { return f.cancelled }

// MeleeHit is raised on the attacker when its attack connects.
type MeleeHit struct {
	Flags
	User ecs.Entity
	Hit  []ecs.Entity // In hit order
}

func (*MeleeHit) Kind() Kind { return KindMeleeHit }

// ThrowHit is raised on a thrown entity when it strikes a target.
type ThrowHit struct {
	Flags
	Thrower ecs.Entity
	Target  ecs.Entity
}

func (*ThrowHit) Kind() Kind { return KindThrowHit }

// HandPickup is raised on an item when someone picks it up by hand.
type HandPickup struct {
	Flags
	User ecs.Entity
}

func (*HandPickup) Kind() Kind { return KindHandPickup }

// Equipped is raised on an item after it lands in an inventory slot.
type Equipped struct {
	Flags
	Equipee ecs.Entity
	Slot    string
}

func (*Equipped) Kind() Kind { return KindEquipped }

// Unequipped is raised on an item after it leaves an inventory slot.
type Unequipped struct {
	Flags
	Equipee ecs.Entity
	Slot    string
}

func (*Unequipped) Kind() Kind { return KindUnequipped }

// UnequipAttempt is raised on an item before it is removed from a slot.
// Cancelling it aborts the removal unless the remover forces it.
type UnequipAttempt struct {
	Flags
	Unequipee ecs.Entity
	Slot      string
}

func (*UnequipAttempt) Kind() Kind { return KindUnequipAttempt }

// MobStateChanged is raised on an entity whose vital status changed.
type MobStateChanged struct {
	Flags
	Old components.MobState
	New components.MobState
}

func (*MobStateChanged) Kind() Kind { return KindMobStateChanged }

// ActionID identifies a grantable action.
type ActionID uint8

const (
	ActionJump ActionID = iota
	ActionHijack
	ActionDominate
	ActionTorment
	ActionRelease
	actionCount
)

var actionNames = [actionCount]string{"jump", "hijack", "dominate", "torment", "release"}

// String returns the action name.
func (a ActionID) String() string {
	if a < actionCount {
		return actionNames[a]
	}
	return "unknown"
}

// Action is raised on the performer when it invokes a granted action.
type Action struct {
	Flags
	Action ActionID
	Target components.Position // World target for targeted actions
}

func (*Action) Kind() Kind { return KindAction }

// DoAfterID identifies one scheduled timed action. Zero is never issued.
type DoAfterID uint64

// DoAfter is raised on the user exactly once when a timed action ends.
type DoAfter struct {
	Flags
	ID      DoAfterID
	Action  ActionID
	User    ecs.Entity
	Target  ecs.Entity
	Used    ecs.Entity
	Elapsed time.Duration
	Outcome Outcome
}

func (*DoAfter) Kind() Kind { return KindDoAfter }

// Outcome reports how a timed action ended.
type Outcome uint8

const (
	Completed Outcome = iota
	CancelledByMovement
	CancelledExplicitly
)

// Cancelled reports whether the action ended without completing.
func (o Outcome) Cancelled() bool {
	return o != Completed
}

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case CancelledByMovement:
		return "moved"
	case CancelledExplicitly:
		return "cancelled"
	default:
		return "unknown"
	}
}
