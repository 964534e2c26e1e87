// Package telemetry provides possession statistics, performance tracking and CSV output.
package telemetry

// EventType identifies telemetry events.
type EventType uint8

const (
	EventAttachAttempt EventType = iota
	EventAttached
	EventHijackStarted
	EventHijacked
	EventHijackCancelled
	EventInjection
	EventReleaseStarted
	EventReleased
	EventReleaseCancelled
	EventDetached
	EventForcedDetach
	EventDominate
	EventTorment
	EventBite
	EventJump
	EventDeath
)

var eventTypeNames = [...]string{
	"attach_attempt", "attached", "hijack_started", "hijacked", "hijack_cancelled",
	"injection", "release_started", "released", "release_cancelled", "detached",
	"forced_detach", "dominate", "torment", "bite", "jump", "death",
}

// String returns the event type name.
func (t EventType) String() string {
	if int(t) < len(eventTypeNames) {
		return eventTypeNames[t]
	}
	return "unknown"
}

// MarshalCSV implements gocsv's TypeMarshaller.
func (t EventType) MarshalCSV() (string, error) {
	return t.String(), nil
}

// Event represents a single telemetry event.
type Event struct {
	Type      EventType `csv:"type"`
	Tick      int32     `csv:"tick"`
	SlugID    uint32    `csv:"slug"`
	Archetype string    `csv:"archetype"`

	// Optional fields depending on event type
	HostID  uint32  `csv:"host"`    // 0 when there is no host
	Phase   string  `csv:"phase"`   // phase after the event
	Detail  string  `csv:"detail"`  // attach trigger or detach cause
	Success bool    `csv:"success"` // attach roll, injection or scream outcome
	Amount  float64 `csv:"amount"`  // injected reagent or bite damage
}

// NewAttachAttemptEvent creates an attach attempt event.
func NewAttachAttemptEvent(tick int32, slugID, hostID uint32, archetype, trigger string, success bool) Event {
	return Event{
		Type:      EventAttachAttempt,
		Tick:      tick,
		SlugID:    slugID,
		Archetype: archetype,
		HostID:    hostID,
		Detail:    trigger,
		Success:   success,
	}
}

// NewPhaseEvent creates an event for a phase change such as attached, hijacked or released.
func NewPhaseEvent(typ EventType, tick int32, slugID, hostID uint32, archetype, phase string) Event {
	return Event{
		Type:      typ,
		Tick:      tick,
		SlugID:    slugID,
		Archetype: archetype,
		HostID:    hostID,
		Phase:     phase,
		Success:   true,
	}
}

// NewForcedDetachEvent creates a forced detach event.
func NewForcedDetachEvent(tick int32, slugID, hostID uint32, archetype, cause string) Event {
	return Event{
		Type:      EventForcedDetach,
		Tick:      tick,
		SlugID:    slugID,
		Archetype: archetype,
		HostID:    hostID,
		Phase:     "free",
		Detail:    cause,
	}
}

// NewInjectionEvent creates a heal injection event.
func NewInjectionEvent(tick int32, slugID, hostID uint32, archetype string, amount float64, ok bool) Event {
	return Event{
		Type:      EventInjection,
		Tick:      tick,
		SlugID:    slugID,
		Archetype: archetype,
		HostID:    hostID,
		Success:   ok,
		Amount:    amount,
	}
}

// NewBiteEvent creates a hand bite event.
func NewBiteEvent(tick int32, slugID, victimID uint32, archetype string, damage float64) Event {
	return Event{
		Type:      EventBite,
		Tick:      tick,
		SlugID:    slugID,
		Archetype: archetype,
		HostID:    victimID,
		Success:   true,
		Amount:    damage,
	}
}
