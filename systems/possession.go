// Package systems implements the brain-slug possession mechanic: attachment,
// the possession state machine, timed actions and the periodic host ticker.
package systems

import (
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/config"
	"github.com/pthm-cable/slug/events"
)

// Popup catalog keys.
const (
	MsgLatchedHost     = "slug-latched-host"
	MsgLatchedSelf     = "slug-latched-self"
	MsgLatchedObserver = "slug-latched-observer"
	MsgCantRemove      = "slug-cant-remove"
	MsgBiteHand        = "slug-bite-hand"
	MsgHostDead        = "slug-host-dead"
	MsgStirring        = "slug-stirring"
	MsgTorment         = "slug-torment"
	MsgHijacked        = "slug-hijacked"
)

// BrainSlugSystem owns every organism's possession state and drives the
// attach, possession and ticker logic. All mutation happens on the
// simulation thread from bus handlers or Update.
type BrainSlugSystem struct {
	env     Env
	cfg     *config.Config
	doAfter *DoAfterSystem

	organisms map[ecs.Entity]*Organism
	order     []ecs.Entity // registration order, for deterministic updates

	busy bool // inside our own equip/unequip; slot events are not recorded separately
}

// NewBrainSlugSystem creates the system and subscribes its handlers on env.Bus.
func NewBrainSlugSystem(env Env, cfg *config.Config, doAfter *DoAfterSystem) *BrainSlugSystem {
	s := &BrainSlugSystem{
		env:       env,
		cfg:       cfg,
		doAfter:   doAfter,
		organisms: make(map[ecs.Entity]*Organism),
	}

	bus := env.Bus
	bus.Subscribe(events.TagBrainSlug, events.KindMeleeHit, s.onMeleeHit)
	bus.Subscribe(events.TagBrainSlug, events.KindThrowHit, s.onThrowHit)
	bus.Subscribe(events.TagBrainSlug, events.KindEquipped, s.onEquipped)
	bus.Subscribe(events.TagBrainSlug, events.KindUnequipped, s.onUnequipped)
	bus.Subscribe(events.TagBrainSlug, events.KindUnequipAttempt, s.onUnequipAttempt)
	bus.Subscribe(events.TagBrainSlug, events.KindHandPickup, s.onHandPickup)
	bus.Subscribe(events.TagBrainSlug, events.KindMobStateChanged, s.onOwnMobState)
	bus.Subscribe(events.TagVitals, events.KindMobStateChanged, s.onHostMobState)
	bus.Subscribe(events.TagBrainSlug, events.KindAction, s.onAction)
	bus.Subscribe(events.TagBrainSlug, events.KindDoAfter, s.onDoAfter)

	return s
}

// Register starts tracking e as an organism of the named archetype and grants its free-phase actions.
func (s *BrainSlugSystem) Register(e ecs.Entity, archetype string) (*Organism, error) {
	if _, exists := s.organisms[e]; exists {
		return nil, fmt.Errorf("entity %d already registered", e.ID())
	}
	idx, ok := s.cfg.Derived.ArchetypeIndex[archetype]
	if !ok {
		return nil, fmt.Errorf("unknown archetype %q", archetype)
	}
	o := &Organism{
		entity:    e,
		archetype: &s.cfg.Archetypes[idx],
		timing:    s.cfg.Derived.Timing[idx],
		phase:     PhaseFree,
	}
	s.organisms[e] = o
	s.order = append(s.order, e)
	s.syncActions(o)
	return o, nil
}

// Unregister stops tracking e. A pending timed action is cancelled.
func (s *BrainSlugSystem) Unregister(e ecs.Entity) {
	o, ok := s.organisms[e]
	if !ok {
		return
	}
	if o.host.IsSet() {
		s.forceDetach(o, CauseRemoved)
	}
	s.abandonPending(o)
	for _, a := range allActions {
		s.env.Actions.Revoke(e, a)
	}
	delete(s.organisms, e)
	for i, id := range s.order {
		if id == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Organism returns the state for e, or nil.
func (s *BrainSlugSystem) Organism(e ecs.Entity) *Organism {
	return s.organisms[e]
}

// Organisms returns all tracked organisms in registration order.
func (s *BrainSlugSystem) Organisms() []*Organism {
	out := make([]*Organism, 0, len(s.order))
	for _, e := range s.order {
		out = append(out, s.organisms[e])
	}
	return out
}

// Perform invokes a granted action. target is only used by Jump.
func (s *BrainSlugSystem) Perform(slug ecs.Entity, action events.ActionID, target components.Position) error {
	o, ok := s.organisms[slug]
	if !ok {
		return ErrUnknownOrganism
	}
	if o.deceased {
		return ErrOrganismDead
	}
	if !s.env.Actions.Granted(slug, action) {
		return fmt.Errorf("%s in phase %s: %w", action, o.phase, ErrActionNotGranted)
	}

	switch action {
	case events.ActionJump:
		return s.jump(o, target)
	case events.ActionHijack:
		return s.startHijack(o)
	case events.ActionDominate:
		return s.dominate(o)
	case events.ActionTorment:
		return s.torment(o)
	case events.ActionRelease:
		return s.startRelease(o)
	}
	return fmt.Errorf("action %d: %w", action, ErrActionNotGranted)
}

func (s *BrainSlugSystem) onAction(target ecs.Entity, ev events.Event) {
	a := ev.(*events.Action)
	if a.Handled() {
		return
	}
	a.Handle()
	if err := s.Perform(target, a.Action, a.Target); err != nil {
		slog.Debug("action rejected", "slug", target.ID(), "action", a.Action.String(), "err", err)
	}
}

func (s *BrainSlugSystem) jump(o *Organism, target components.Position) error {
	pos, ok := s.env.Positions.Position(o.entity)
	if !ok {
		return fmt.Errorf("jump: slug %d has no position", o.entity.ID())
	}
	dir := pos.Direction(target)
	s.env.Throwing.Throw(o.entity, dir, o.archetype.JumpStrength, o.archetype.JumpDistance)
	if cue := o.archetype.Sounds.Jump; cue != "" {
		s.env.Audio.PlayPvs(cue, o.entity)
	}
	s.record(o, Record{Kind: RecordJump, Success: true})
	return nil
}

func (s *BrainSlugSystem) startHijack(o *Organism) error {
	if o.phase == PhaseHijacking {
		return ErrDoAfterBusy
	}
	host, ok := o.host.Get()
	if !ok {
		return ErrNotAttached
	}
	if state, ok := s.env.Traits.MobState(host); ok && state == components.MobDead {
		s.env.Popups.Popup(Message{Key: MsgHostDead, About: o.host}, Only(o.entity), PopupSmall)
		return ErrHostDead
	}

	id, err := s.doAfter.Start(DoAfterArgs{
		User:          o.entity,
		Target:        host,
		Used:          o.entity,
		Action:        events.ActionHijack,
		Delay:         o.timing.Hijack,
		MoveThreshold: float32(o.archetype.MoveThreshold),
	})
	if err != nil {
		return fmt.Errorf("hijack: %w", err)
	}
	o.pending = id
	s.setPhase(o, PhaseHijacking)
	s.record(o, Record{Kind: RecordHijackStarted, Success: true})
	return nil
}

func (s *BrainSlugSystem) startRelease(o *Organism) error {
	if o.phase == PhaseReleasing {
		return ErrDoAfterBusy
	}
	host, ok := o.host.Get()
	if !ok {
		return ErrNotAttached
	}
	id, err := s.doAfter.Start(DoAfterArgs{
		User:          o.entity,
		Target:        host,
		Used:          o.entity,
		Action:        events.ActionRelease,
		Delay:         o.timing.Release,
		MoveThreshold: float32(o.archetype.MoveThreshold),
	})
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	o.pending = id
	s.setPhase(o, PhaseReleasing)
	s.record(o, Record{Kind: RecordReleaseStarted, Success: true})
	return nil
}

func (s *BrainSlugSystem) dominate(o *Organism) error {
	host, ok := o.host.Get()
	if !ok {
		return ErrNotAttached
	}
	s.env.Status.Paralyze(host, o.timing.Dominate)
	s.record(o, Record{Kind: RecordDominate, Success: true})
	return nil
}

func (s *BrainSlugSystem) torment(o *Organism) error {
	host, ok := o.host.Get()
	if !ok {
		return ErrNotAttached
	}
	screamed := s.env.Emotes.Scream(host)
	if screamed {
		s.env.Popups.Popup(Message{Key: MsgTorment}, Only(host), PopupLargeCaution)
	}
	s.record(o, Record{Kind: RecordTorment, Success: screamed})
	return nil
}

func (s *BrainSlugSystem) onDoAfter(target ecs.Entity, ev events.Event) {
	d := ev.(*events.DoAfter)
	if d.Handled() {
		return
	}
	o, ok := s.organisms[target]
	if !ok || o.pending == 0 || o.pending != d.ID {
		return
	}
	d.Handle()
	o.pending = 0

	switch d.Action {
	case events.ActionHijack:
		if o.phase != PhaseHijacking {
			return
		}
		if d.Outcome.Cancelled() {
			s.setPhase(o, PhaseAttached)
			s.record(o, Record{Kind: RecordHijackCancelled})
			return
		}
		s.completeHijack(o, d.Target)
	case events.ActionRelease:
		if o.phase != PhaseReleasing {
			return
		}
		if d.Outcome.Cancelled() {
			s.setPhase(o, PhasePossessing)
			s.record(o, Record{Kind: RecordReleaseCancelled})
			return
		}
		s.completeRelease(o, d.Target)
	}
}

func (s *BrainSlugSystem) completeHijack(o *Organism, host ecs.Entity) {
	if !o.host.Is(host) {
		return
	}
	if state, ok := s.env.Traits.MobState(host); ok && state == components.MobCritical && o.archetype.HealReagent != "" {
		amount := o.archetype.HealAmount * o.archetype.HealMultiplier
		injected := s.env.Chemistry.Inject(host, o.archetype.HealReagent, amount)
		s.record(o, Record{Kind: RecordInjection, Success: injected, Amount: amount})
	}
	s.setPhase(o, PhasePossessing)
	s.env.Popups.Popup(Message{Key: MsgHijacked, About: o.host}, Only(o.entity), PopupLarge)
	if cue := o.archetype.Sounds.Hijack; cue != "" {
		s.env.Audio.PlayPvs(cue, o.entity)
	}
	s.record(o, Record{Kind: RecordHijacked, Success: true})
}

func (s *BrainSlugSystem) completeRelease(o *Organism, host ecs.Entity) {
	if !o.host.Is(host) {
		return
	}
	s.unequip(o, host)
	s.unlatch(o)
	s.record(o, Record{Kind: RecordReleased, Cause: CauseReleased, Host: components.Ref(host), Success: true})
}

// setPhase moves o to p and resynchronizes its granted actions.
func (s *BrainSlugSystem) setPhase(o *Organism, p Phase) {
	if o.phase != p {
		slog.Debug("slug phase", "slug", o.entity.ID(), "from", o.phase.String(), "to", p.String())
	}
	o.phase = p
	s.syncActions(o)
}

// syncActions revokes everything outside the current phase's set, then grants the set.
func (s *BrainSlugSystem) syncActions(o *Organism) {
	want := o.grantedFor()
	for _, a := range allActions {
		if !containsAction(want, a) {
			s.env.Actions.Revoke(o.entity, a)
		}
	}
	for _, a := range want {
		s.env.Actions.Grant(o.entity, a)
	}
}

func containsAction(set []events.ActionID, a events.ActionID) bool {
	for _, x := range set {
		if x == a {
			return true
		}
	}
	return false
}

// abandonPending forgets the in-flight timed action and cancels it.
// pending is cleared first so the resulting cancel event is ignored.
func (s *BrainSlugSystem) abandonPending(o *Organism) {
	id := o.pending
	if id == 0 {
		return
	}
	o.pending = 0
	s.doAfter.Cancel(id)
}

func (s *BrainSlugSystem) record(o *Organism, r Record) {
	if s.env.Recorder == nil {
		return
	}
	r.Slug = o.entity
	if !r.Host.IsSet() {
		r.Host = o.host
	}
	r.Archetype = o.archetype.Name
	r.Phase = o.phase
	s.env.Recorder.Record(r)
}
