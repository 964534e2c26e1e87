package game

import (
	"log/slog"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/config"
	"github.com/pthm-cable/slug/events"
	"github.com/pthm-cable/slug/locale"
	"github.com/pthm-cable/slug/systems"
)

// Delivery is one popup shown to one recipient.
type Delivery struct {
	Recipient ecs.Entity
	Key       string
	Text      string
	Kind      systems.PopupKind
}

// World is the ark-backed host environment. It implements every
// collaborator contract the possession systems consume, and the
// events.Tagger the bus routes with.
//
// Every entity gets all of its components at spawn, so nothing here
// changes archetypes; handlers may run while a query is open.
type World struct {
	ecs *ecs.World
	cfg *config.Config
	bus *events.Bus
	loc *locale.Localizer

	hostMapper *ecs.Map7[
		components.Position,
		components.Velocity,
		components.Vitals,
		components.Name,
		components.Paralysis,
		components.Inventory,
		components.Bloodstream,
	]
	slugMapper *ecs.Map7[
		components.Position,
		components.Velocity,
		components.Vitals,
		components.Name,
		components.Paralysis,
		components.BrainSlug,
		components.Actions,
	]

	posMap        *ecs.Map[components.Position]
	velMap        *ecs.Map[components.Velocity]
	vitalsMap     *ecs.Map[components.Vitals]
	nameMap       *ecs.Map[components.Name]
	paralysisMap  *ecs.Map[components.Paralysis]
	appearanceMap *ecs.Map[components.Appearance]
	inventoryMap  *ecs.Map[components.Inventory]
	blockerMap    *ecs.Map[components.IngestionBlocker]
	vocalMap      *ecs.Map[components.Vocal]
	bloodMap      *ecs.Map[components.Bloodstream]
	actionsMap    *ecs.Map[components.Actions]
	slugMap       *ecs.Map[components.BrainSlug]
	flightMap     *ecs.Map[components.Flight]

	hostFilter *ecs.Filter2[components.Position, components.Appearance]
	slugFilter *ecs.Filter2[components.Position, components.BrainSlug]

	// Inventories store item IDs; this resolves them back to entities.
	byID map[uint32]ecs.Entity

	// OnPopup, when set, receives every delivered popup.
	OnPopup func(Delivery)

	popupCount int
	soundCount map[string]int
}

// NewWorld creates an empty world whose bus routes by component presence.
func NewWorld(cfg *config.Config, loc *locale.Localizer) *World {
	w := ecs.NewWorld()
	world := &World{
		ecs: w,
		cfg: cfg,
		loc: loc,
		hostMapper: ecs.NewMap7[
			components.Position,
			components.Velocity,
			components.Vitals,
			components.Name,
			components.Paralysis,
			components.Inventory,
			components.Bloodstream,
		](w),
		slugMapper: ecs.NewMap7[
			components.Position,
			components.Velocity,
			components.Vitals,
			components.Name,
			components.Paralysis,
			components.BrainSlug,
			components.Actions,
		](w),
		posMap:        ecs.NewMap[components.Position](w),
		velMap:        ecs.NewMap[components.Velocity](w),
		vitalsMap:     ecs.NewMap[components.Vitals](w),
		nameMap:       ecs.NewMap[components.Name](w),
		paralysisMap:  ecs.NewMap[components.Paralysis](w),
		appearanceMap: ecs.NewMap[components.Appearance](w),
		inventoryMap:  ecs.NewMap[components.Inventory](w),
		blockerMap:    ecs.NewMap[components.IngestionBlocker](w),
		vocalMap:      ecs.NewMap[components.Vocal](w),
		bloodMap:      ecs.NewMap[components.Bloodstream](w),
		actionsMap:    ecs.NewMap[components.Actions](w),
		slugMap:       ecs.NewMap[components.BrainSlug](w),
		flightMap:     ecs.NewMap[components.Flight](w),
		hostFilter:    ecs.NewFilter2[components.Position, components.Appearance](w),
		slugFilter:    ecs.NewFilter2[components.Position, components.BrainSlug](w),
		byID:          make(map[uint32]ecs.Entity),
		soundCount:    make(map[string]int),
	}
	world.bus = events.NewBus(world)
	return world
}

// Bus returns the world's event bus.
func (w *World) Bus() *events.Bus {
	return w.bus
}

// PopupCount returns the number of popups delivered so far.
func (w *World) PopupCount() int {
	return w.popupCount
}

// SoundCount returns how often cue was played.
func (w *World) SoundCount(cue string) int {
	return w.soundCount[cue]
}

// ---------- events.Tagger ----------

// HasTag reports whether e carries the component behind tag.
func (w *World) HasTag(e ecs.Entity, tag events.Tag) bool {
	if !w.ecs.Alive(e) {
		return false
	}
	switch tag {
	case events.TagBrainSlug:
		return w.slugMap.Has(e)
	case events.TagVitals:
		return w.vitalsMap.Has(e)
	case events.TagInventory:
		return w.inventoryMap.Has(e)
	}
	return false
}

// ---------- Inventory ----------

// TryEquip places item into slot on host and raises Equipped on the item.
func (w *World) TryEquip(host, item ecs.Entity, slot string) bool {
	if !w.ecs.Alive(host) || !w.ecs.Alive(item) || !w.inventoryMap.Has(host) {
		return false
	}
	inv := w.inventoryMap.Get(host)
	if _, taken := w.slotEntity(inv, slot); taken {
		return false
	}
	if inv.Slots == nil {
		inv.Slots = make(map[string]uint32)
	}
	inv.Slots[slot] = item.ID()
	w.bus.Raise(item, &events.Equipped{Equipee: host, Slot: slot})
	return true
}

// TryUnequip empties slot on host and drops the item at the host's position.
// Without force the item may veto.
func (w *World) TryUnequip(host ecs.Entity, slot string, force bool) bool {
	if !w.ecs.Alive(host) || !w.inventoryMap.Has(host) {
		return false
	}
	inv := w.inventoryMap.Get(host)
	item, ok := w.slotEntity(inv, slot)
	if !ok {
		return false
	}
	if !force {
		ev := w.bus.Raise(item, &events.UnequipAttempt{Unequipee: host, Slot: slot}).(*events.UnequipAttempt)
		if ev.Cancelled() {
			return false
		}
	}
	delete(inv.Slots, slot)
	// Removed items drop where the wearer stands.
	if pos, ok := w.Position(host); ok {
		w.SetPosition(item, pos)
	}
	w.bus.Raise(item, &events.Unequipped{Equipee: host, Slot: slot})
	return true
}

// SlotItem returns the item in slot on host.
func (w *World) SlotItem(host ecs.Entity, slot string) (ecs.Entity, bool) {
	if !w.ecs.Alive(host) || !w.inventoryMap.Has(host) {
		return ecs.Entity{}, false
	}
	return w.slotEntity(w.inventoryMap.Get(host), slot)
}

func (w *World) slotEntity(inv *components.Inventory, slot string) (ecs.Entity, bool) {
	id, ok := inv.Slots[slot]
	if !ok {
		return ecs.Entity{}, false
	}
	item, ok := w.byID[id]
	if !ok || !w.ecs.Alive(item) {
		delete(inv.Slots, slot)
		return ecs.Entity{}, false
	}
	return item, true
}

// ---------- Status ----------

// Paralyze stuns target for at least d.
func (w *World) Paralyze(target ecs.Entity, d time.Duration) {
	if !w.ecs.Alive(target) || !w.paralysisMap.Has(target) {
		return
	}
	p := w.paralysisMap.Get(target)
	if secs := float32(d.Seconds()); secs > p.Remaining {
		p.Remaining = secs
	}
	if w.velMap.Has(target) {
		*w.velMap.Get(target) = components.Velocity{}
	}
}

// Damage applies dmg to target and updates its mob state.
func (w *World) Damage(target ecs.Entity, dmg systems.DamageSpec, origin ecs.Entity) {
	if !w.ecs.Alive(target) || !w.vitalsMap.Has(target) {
		return
	}
	v := w.vitalsMap.Get(target)
	if v.State == components.MobDead {
		return
	}
	v.Damage += float32(dmg.Total())
	slog.Debug("damage", "target", target.ID(), "origin", origin.ID(), "amount", dmg.Total(), "total", v.Damage)
	w.updateMobState(target)
}

// Heal removes up to amount damage from target and updates its mob state.
// Dead entities are not revived.
func (w *World) Heal(target ecs.Entity, amount float32) {
	if !w.ecs.Alive(target) || !w.vitalsMap.Has(target) {
		return
	}
	v := w.vitalsMap.Get(target)
	if v.State == components.MobDead {
		return
	}
	v.Damage -= amount
	if v.Damage < 0 {
		v.Damage = 0
	}
	w.updateMobState(target)
}

// updateMobState recomputes target's state from its damage and raises
// MobStateChanged when it moved.
func (w *World) updateMobState(target ecs.Entity) {
	v := w.vitalsMap.Get(target)
	old := v.State
	next := components.MobAlive
	switch {
	case float64(v.Damage) >= w.cfg.Host.DeadThreshold:
		next = components.MobDead
	case float64(v.Damage) >= w.cfg.Host.CritThreshold:
		next = components.MobCritical
	}
	if next == old {
		return
	}
	v.State = next
	slog.Debug("mob state", "entity", target.ID(), "from", old.String(), "to", next.String())
	w.bus.Raise(target, &events.MobStateChanged{Old: old, New: next})
}

// ---------- Popups ----------

// Popup renders msg in the configured locale and delivers it to everyone the filter selects.
func (w *World) Popup(msg systems.Message, filter systems.Filter, kind systems.PopupKind) {
	subject := ""
	if about, ok := msg.About.Get(); ok {
		subject = w.NameOf(about)
	}
	text := msg.Key
	if w.loc != nil {
		text = w.loc.Render(msg.Key, subject)
	}
	for _, r := range w.recipients(filter) {
		w.popupCount++
		slog.Debug("popup", "to", r.ID(), "key", msg.Key, "kind", kind.String(), "text", text)
		if w.OnPopup != nil {
			w.OnPopup(Delivery{Recipient: r, Key: msg.Key, Text: text, Kind: kind})
		}
	}
}

func (w *World) recipients(f systems.Filter) []ecs.Entity {
	if !f.Broadcast {
		if w.ecs.Alive(f.Center) {
			return []ecs.Entity{f.Center}
		}
		return nil
	}
	center, ok := w.Position(f.Center)
	if !ok {
		return nil
	}
	viewRange := float32(w.cfg.Popups.ViewRange)
	var out []ecs.Entity
	query := w.hostFilter.Query()
	for query.Next() {
		e := query.Entity()
		pos, _ := query.Get()
		if f.Except.Is(e) || pos.DistanceTo(center) > viewRange {
			continue
		}
		out = append(out, e)
	}
	return out
}

// NameOf returns e's display name.
func (w *World) NameOf(e ecs.Entity) string {
	if !w.ecs.Alive(e) || !w.nameMap.Has(e) {
		return ""
	}
	return w.nameMap.Get(e).Value
}

// ---------- Positions ----------

// Position returns e's world position.
func (w *World) Position(e ecs.Entity) (components.Position, bool) {
	if !w.ecs.Alive(e) || !w.posMap.Has(e) {
		return components.Position{}, false
	}
	return *w.posMap.Get(e), true
}

// ---------- Actions ----------

func actionBit(a events.ActionID) uint8 {
	return 1 << uint8(a)
}

// Grant adds a to e's action set.
func (w *World) Grant(e ecs.Entity, a events.ActionID) {
	if w.ecs.Alive(e) && w.actionsMap.Has(e) {
		w.actionsMap.Get(e).Granted |= actionBit(a)
	}
}

// Revoke removes a from e's action set.
func (w *World) Revoke(e ecs.Entity, a events.ActionID) {
	if w.ecs.Alive(e) && w.actionsMap.Has(e) {
		w.actionsMap.Get(e).Granted &^= actionBit(a)
	}
}

// Granted reports whether e currently holds a.
func (w *World) Granted(e ecs.Entity, a events.ActionID) bool {
	if !w.ecs.Alive(e) || !w.actionsMap.Has(e) {
		return false
	}
	return w.actionsMap.Get(e).Granted&actionBit(a) != 0
}

// ---------- Audio ----------

// PlayPvs plays cue to everyone in view of at.
func (w *World) PlayPvs(cue string, at ecs.Entity) {
	w.soundCount[cue]++
	slog.Debug("sound", "cue", cue, "at", at.ID())
}

// ---------- Chemistry ----------

// Inject adds amount of reagent to host's bloodstream.
func (w *World) Inject(host ecs.Entity, reagent string, amount float64) bool {
	if !w.ecs.Alive(host) || !w.bloodMap.Has(host) || amount <= 0 {
		return false
	}
	b := w.bloodMap.Get(host)
	if b.Reagents == nil {
		b.Reagents = make(map[string]float32)
	}
	b.Reagents[reagent] += float32(amount)
	return true
}

// ---------- Throwing ----------

// throwSpeedScale converts throw strength into units per second.
const throwSpeedScale = 4

// Throw launches e along dir for distance units.
func (w *World) Throw(e ecs.Entity, dir components.Velocity, strength, distance float64) {
	if !w.ecs.Alive(e) || !w.flightMap.Has(e) || distance <= 0 {
		return
	}
	speed := float32(strength * throwSpeedScale)
	*w.flightMap.Get(e) = components.Flight{
		ThrowerID: e.ID(),
		Remaining: float32(distance),
		Speed:     speed,
	}
	if w.velMap.Has(e) {
		*w.velMap.Get(e) = components.Velocity{X: dir.X * speed, Y: dir.Y * speed}
	}
}

// ---------- Emotes ----------

// Scream forces e to scream. Returns false if e cannot vocalize.
func (w *World) Scream(e ecs.Entity) bool {
	if !w.ecs.Alive(e) || !w.vocalMap.Has(e) {
		return false
	}
	w.vocalMap.Get(e).ScreamCount++
	slog.Debug("scream", "entity", e.ID(), "name", w.NameOf(e))
	return true
}

// ---------- Traits ----------

// Exists reports whether e is alive in the ECS sense.
func (w *World) Exists(e ecs.Entity) bool {
	return w.ecs.Alive(e)
}

// Humanoid reports whether e has a face an organism can latch onto.
func (w *World) Humanoid(e ecs.Entity) bool {
	return w.ecs.Alive(e) && w.appearanceMap.Has(e) && w.appearanceMap.Get(e).Humanoid
}

// BlocksIngestion reports whether item seals the wearer's face.
func (w *World) BlocksIngestion(item ecs.Entity) bool {
	return w.ecs.Alive(item) && w.blockerMap.Has(item)
}

// MobState returns e's vital state.
func (w *World) MobState(e ecs.Entity) (components.MobState, bool) {
	if !w.ecs.Alive(e) || !w.vitalsMap.Has(e) {
		return components.MobAlive, false
	}
	return w.vitalsMap.Get(e).State, true
}

// ---------- Entity lifecycle ----------

// NewHost creates a potential host at pos.
func (w *World) NewHost(name string, pos components.Position, humanoid bool) ecs.Entity {
	e := w.hostMapper.NewEntity(
		&pos,
		&components.Velocity{},
		&components.Vitals{},
		&components.Name{Value: name},
		&components.Paralysis{},
		&components.Inventory{Slots: make(map[string]uint32)},
		&components.Bloodstream{Reagents: make(map[string]float32)},
	)
	w.appearanceMap.Add(e, &components.Appearance{Humanoid: humanoid})
	w.vocalMap.Add(e, &components.Vocal{})
	w.byID[e.ID()] = e
	return e
}

// NewSlug creates an organism body at pos. The caller registers it with
// the possession system.
func (w *World) NewSlug(name string, pos components.Position, archetypeID uint8) ecs.Entity {
	e := w.slugMapper.NewEntity(
		&pos,
		&components.Velocity{},
		&components.Vitals{},
		&components.Name{Value: name},
		&components.Paralysis{},
		&components.BrainSlug{ArchetypeID: archetypeID},
		&components.Actions{},
	)
	w.flightMap.Add(e, &components.Flight{})
	w.byID[e.ID()] = e
	return e
}

// NewItem creates a wearable item. Sealed items block ingestion.
func (w *World) NewItem(name string, sealed bool) ecs.Entity {
	e := w.nameMap.NewEntity(&components.Name{Value: name})
	if sealed {
		w.blockerMap.Add(e, &components.IngestionBlocker{})
	}
	w.byID[e.ID()] = e
	return e
}

// Remove deletes e and any non-organism items it wears.
func (w *World) Remove(e ecs.Entity) {
	if !w.ecs.Alive(e) {
		return
	}
	if w.inventoryMap.Has(e) {
		for _, id := range w.inventoryMap.Get(e).Slots {
			item, ok := w.byID[id]
			if !ok || !w.ecs.Alive(item) || w.slugMap.Has(item) {
				continue
			}
			delete(w.byID, id)
			w.ecs.RemoveEntity(item)
		}
	}
	delete(w.byID, e.ID())
	w.ecs.RemoveEntity(e)
}

// SetPosition moves e to pos.
func (w *World) SetPosition(e ecs.Entity, pos components.Position) {
	if w.ecs.Alive(e) && w.posMap.Has(e) {
		*w.posMap.Get(e) = pos
	}
}

// Vitals returns e's vitals, or nil.
func (w *World) Vitals(e ecs.Entity) *components.Vitals {
	if !w.ecs.Alive(e) || !w.vitalsMap.Has(e) {
		return nil
	}
	return w.vitalsMap.Get(e)
}

// Reagent returns the amount of reagent dissolved in e.
func (w *World) Reagent(e ecs.Entity, reagent string) float32 {
	if !w.ecs.Alive(e) || !w.bloodMap.Has(e) {
		return 0
	}
	return w.bloodMap.Get(e).Reagents[reagent]
}

// Stunned reports whether e is paralyzed.
func (w *World) Stunned(e ecs.Entity) bool {
	return w.ecs.Alive(e) && w.paralysisMap.Has(e) && w.paralysisMap.Get(e).Remaining > 0
}

// Screams returns how many times e has screamed.
func (w *World) Screams(e ecs.Entity) int32 {
	if !w.ecs.Alive(e) || !w.vocalMap.Has(e) {
		return 0
	}
	return w.vocalMap.Get(e).ScreamCount
}

// InFlight reports whether e is mid-throw.
func (w *World) InFlight(e ecs.Entity) bool {
	return w.ecs.Alive(e) && w.flightMap.Has(e) && w.flightMap.Get(e).Remaining > 0
}

// Hosts returns every living-or-dead host entity in storage order.
func (w *World) Hosts() []ecs.Entity {
	var out []ecs.Entity
	query := w.hostFilter.Query()
	for query.Next() {
		out = append(out, query.Entity())
	}
	return out
}
