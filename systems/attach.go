package systems

import (
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/events"
)

// Attach latches slug onto host directly, as on hand contact.
// Eligibility is checked but no chance roll is made.
func (s *BrainSlugSystem) Attach(slug, host ecs.Entity) error {
	o, ok := s.organisms[slug]
	if !ok {
		return ErrUnknownOrganism
	}
	if err := s.eligible(o, host); err != nil {
		return err
	}
	s.record(o, Record{Kind: RecordAttachAttempt, Trigger: TriggerContact, Host: components.Ref(host), Success: true})
	return s.attach(o, host, TriggerContact)
}

// Detach removes slug from its host and returns it to the free phase.
func (s *BrainSlugSystem) Detach(slug ecs.Entity) error {
	o, ok := s.organisms[slug]
	if !ok {
		return ErrUnknownOrganism
	}
	host, ok := o.host.Get()
	if !ok {
		return ErrNotAttached
	}
	s.unequip(o, host)
	s.unlatch(o)
	s.record(o, Record{Kind: RecordDetached, Cause: CauseUnequipped, Host: components.Ref(host)})
	return nil
}

// eligible checks whether o may attach to target.
func (s *BrainSlugSystem) eligible(o *Organism, target ecs.Entity) error {
	switch {
	case o.deceased:
		return ErrOrganismDead
	case o.host.IsSet():
		return fmt.Errorf("already attached: %w", ErrIneligible)
	case target == o.entity:
		return fmt.Errorf("self: %w", ErrIneligible)
	case !s.env.Traits.Exists(target):
		return fmt.Errorf("target gone: %w", ErrIneligible)
	case !s.env.Traits.Humanoid(target):
		return fmt.Errorf("not humanoid: %w", ErrIneligible)
	}
	if item, ok := s.env.Inventory.SlotItem(target, components.SlotHead); ok && s.env.Traits.BlocksIngestion(item) {
		return fmt.Errorf("head slot blocked: %w", ErrIneligible)
	}
	return nil
}

// attach equips o onto host and applies the latch side effects.
// Nothing is applied if the equip fails.
func (s *BrainSlugSystem) attach(o *Organism, host ecs.Entity, trigger Trigger) error {
	s.busy = true
	equipped := s.env.Inventory.TryEquip(host, o.entity, o.archetype.AttachSlot)
	s.busy = false
	if !equipped {
		return ErrEquipFailed
	}
	s.latch(o, host)

	s.env.Popups.Popup(Message{Key: MsgLatchedHost}, Only(host), PopupLargeCaution)
	s.env.Popups.Popup(Message{Key: MsgLatchedSelf, About: components.Ref(host)}, Only(o.entity), PopupLargeCaution)
	s.env.Popups.Popup(Message{Key: MsgLatchedObserver, About: components.Ref(host)}, EveryoneExcept(host, o.entity), PopupLarge)

	s.env.Status.Paralyze(host, o.timing.Paralyze)
	s.env.Status.Damage(host, DamageSpec(o.archetype.Damage), o.entity)

	slog.Debug("slug attached", "slug", o.entity.ID(), "host", host.ID(), "trigger", trigger.String())
	s.record(o, Record{Kind: RecordAttached, Trigger: trigger, Success: true})
	return nil
}

// latch records host and fills the containment. Returns false if already latched there.
func (s *BrainSlugSystem) latch(o *Organism, host ecs.Entity) bool {
	if o.host.Is(host) {
		return false
	}
	if !o.containment.Insert(o.entity, host, o.archetype.AttachSlot) {
		slog.Warn("containment occupied, refusing latch", "slug", o.entity.ID(), "host", host.ID())
		return false
	}
	o.host = components.Ref(host)
	s.setPhase(o, PhaseAttached)
	return true
}

// unlatch clears host and empties the containment. Safe to call twice.
func (s *BrainSlugSystem) unlatch(o *Organism) bool {
	if !o.host.IsSet() {
		return false
	}
	s.abandonPending(o)
	o.containment.Remove()
	o.host = components.NoEntity()
	s.setPhase(o, PhaseFree)
	return true
}

// unequip removes o from host's slot, skipping the veto.
func (s *BrainSlugSystem) unequip(o *Organism, host ecs.Entity) {
	if !s.env.Traits.Exists(host) {
		return
	}
	s.busy = true
	s.env.Inventory.TryUnequip(host, o.archetype.AttachSlot, true)
	s.busy = false
}

// forceDetach drops o from its host immediately, abandoning any timed action.
func (s *BrainSlugSystem) forceDetach(o *Organism, cause Cause) {
	host, ok := o.host.Get()
	if !ok {
		return
	}
	s.abandonPending(o)
	if cause != CauseHostMissing {
		s.unequip(o, host)
	}
	s.unlatch(o)
	slog.Debug("slug force-detached", "slug", o.entity.ID(), "host", host.ID(), "cause", cause.String())
	s.record(o, Record{Kind: RecordForcedDetach, Cause: cause, Host: components.Ref(host)})
}

func (s *BrainSlugSystem) onMeleeHit(target ecs.Entity, ev events.Event) {
	m := ev.(*events.MeleeHit)
	o, ok := s.organisms[target]
	if !ok || len(m.Hit) == 0 {
		return
	}
	// Skip ineligible entities; the first eligible one gets the only roll.
	for _, hit := range m.Hit {
		if err := s.eligible(o, hit); err != nil {
			continue
		}
		m.Handle()
		roll := s.env.Rand.Intn(100) + 1
		success := roll <= o.archetype.PounceChance
		s.record(o, Record{Kind: RecordAttachAttempt, Trigger: TriggerMelee, Host: components.Ref(hit), Success: success})
		if !success {
			return
		}
		if err := s.attach(o, hit, TriggerMelee); err != nil {
			slog.Debug("melee attach failed", "slug", target.ID(), "host", hit.ID(), "err", err)
		}
		return
	}
}

func (s *BrainSlugSystem) onThrowHit(target ecs.Entity, ev events.Event) {
	t := ev.(*events.ThrowHit)
	o, ok := s.organisms[target]
	if !ok {
		return
	}
	if err := s.eligible(o, t.Target); err != nil {
		return
	}
	t.Handle()
	s.record(o, Record{Kind: RecordAttachAttempt, Trigger: TriggerThrow, Host: components.Ref(t.Target), Success: true})
	if err := s.attach(o, t.Target, TriggerThrow); err != nil {
		slog.Debug("throw attach failed", "slug", target.ID(), "host", t.Target.ID(), "err", err)
	}
}

func (s *BrainSlugSystem) onEquipped(target ecs.Entity, ev events.Event) {
	e := ev.(*events.Equipped)
	o, ok := s.organisms[target]
	if !ok || e.Slot != o.archetype.AttachSlot {
		return
	}
	if s.latch(o, e.Equipee) && !s.busy {
		s.record(o, Record{Kind: RecordAttached, Trigger: TriggerEquip, Success: true})
	}
}

func (s *BrainSlugSystem) onUnequipped(target ecs.Entity, ev events.Event) {
	u := ev.(*events.Unequipped)
	o, ok := s.organisms[target]
	if !ok || u.Slot != o.archetype.AttachSlot || !o.host.Is(u.Equipee) {
		return
	}
	if s.unlatch(o) && !s.busy {
		s.record(o, Record{Kind: RecordDetached, Cause: CauseUnequipped, Host: components.Ref(u.Equipee)})
	}
}

func (s *BrainSlugSystem) onUnequipAttempt(target ecs.Entity, ev events.Event) {
	u := ev.(*events.UnequipAttempt)
	o, ok := s.organisms[target]
	if !ok || u.Slot != o.archetype.AttachSlot || !o.host.Is(u.Unequipee) {
		return
	}
	s.env.Popups.Popup(Message{Key: MsgCantRemove}, Only(u.Unequipee), PopupLarge)
	u.Cancel()
	u.Handle()
}

func (s *BrainSlugSystem) onHandPickup(target ecs.Entity, ev events.Event) {
	p := ev.(*events.HandPickup)
	o, ok := s.organisms[target]
	if !ok || o.deceased {
		return
	}
	p.Handle()
	dmg := DamageSpec(o.archetype.Damage)
	s.env.Status.Damage(p.User, dmg, o.entity)
	s.env.Popups.Popup(Message{Key: MsgBiteHand}, Only(p.User), PopupSmall)
	s.record(o, Record{Kind: RecordBite, Host: components.Ref(p.User), Amount: dmg.Total(), Success: true})
}

func (s *BrainSlugSystem) onOwnMobState(target ecs.Entity, ev events.Event) {
	m := ev.(*events.MobStateChanged)
	o, ok := s.organisms[target]
	if !ok || m.New != components.MobDead || o.deceased {
		return
	}
	o.deceased = true
	s.record(o, Record{Kind: RecordDeath})
	s.forceDetach(o, CauseOrganismDeath)
	s.abandonPending(o)
}

func (s *BrainSlugSystem) onHostMobState(target ecs.Entity, ev events.Event) {
	m := ev.(*events.MobStateChanged)
	if m.New != components.MobDead {
		return
	}
	for _, o := range s.AttachedTo(target) {
		s.forceDetach(o, CauseHostDeath)
	}
}
