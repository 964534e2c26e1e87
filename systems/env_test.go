package systems

import (
	"math/rand"
	"testing"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/config"
	"github.com/pthm-cable/slug/events"
)

type paralyzeCall struct {
	target ecs.Entity
	d      time.Duration
}

type damageCall struct {
	target ecs.Entity
	dmg    DamageSpec
	origin ecs.Entity
}

type popupCall struct {
	msg    Message
	filter Filter
	kind   PopupKind
}

type injectCall struct {
	host    ecs.Entity
	reagent string
	amount  float64
}

type throwCall struct {
	e        ecs.Entity
	dir      components.Velocity
	strength float64
	distance float64
}

// testEnv is an in-memory host environment that records every call.
type testEnv struct {
	t     *testing.T
	world *ecs.World
	names *ecs.Map[components.Name]
	cfg   *config.Config

	bus     *events.Bus
	doAfter *DoAfterSystem
	sys     *BrainSlugSystem

	pos      map[ecs.Entity]components.Position
	humanoid map[ecs.Entity]bool
	blocker  map[ecs.Entity]bool
	vocal    map[ecs.Entity]bool
	state    map[ecs.Entity]components.MobState
	slugs    map[ecs.Entity]bool
	slots    map[ecs.Entity]map[string]ecs.Entity
	granted  map[ecs.Entity]map[events.ActionID]bool

	paralyzed  []paralyzeCall
	damaged    []damageCall
	popups     []popupCall
	sounds     []string
	injections []injectCall
	throws     []throwCall
	screams    []ecs.Entity
	records    []Record
	unequips   int
}

func newTestEnv(t *testing.T, seed int64) *testEnv {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	w := ecs.NewWorld()
	env := &testEnv{
		t:        t,
		world:    w,
		names:    ecs.NewMap[components.Name](w),
		cfg:      cfg,
		pos:      make(map[ecs.Entity]components.Position),
		humanoid: make(map[ecs.Entity]bool),
		blocker:  make(map[ecs.Entity]bool),
		vocal:    make(map[ecs.Entity]bool),
		state:    make(map[ecs.Entity]components.MobState),
		slugs:    make(map[ecs.Entity]bool),
		slots:    make(map[ecs.Entity]map[string]ecs.Entity),
		granted:  make(map[ecs.Entity]map[events.ActionID]bool),
	}
	env.bus = events.NewBus(env)
	env.doAfter = NewDoAfterSystem(env.bus, env)
	env.sys = NewBrainSlugSystem(Env{
		Bus:       env.bus,
		Inventory: env,
		Status:    env,
		Popups:    env,
		Positions: env,
		Actions:   env,
		Audio:     env,
		Chemistry: env,
		Throwing:  env,
		Emotes:    env,
		Traits:    env,
		Recorder:  env,
		Rand:      rand.New(rand.NewSource(seed)),
	}, cfg, env.doAfter)
	return env
}

func (env *testEnv) archetype(name string) *config.SlugArchetype {
	arch, ok := env.cfg.Archetype(name)
	if !ok {
		env.t.Fatalf("archetype %q missing", name)
	}
	return arch
}

func (env *testEnv) spawn(name string, x, y float32) ecs.Entity {
	e := env.names.NewEntity(&components.Name{Value: name})
	env.pos[e] = components.Position{X: x, Y: y}
	env.state[e] = components.MobAlive
	return e
}

func (env *testEnv) spawnHost(name string, x, y float32) ecs.Entity {
	e := env.spawn(name, x, y)
	env.humanoid[e] = true
	env.vocal[e] = true
	return e
}

func (env *testEnv) spawnSlug(archetype string) ecs.Entity {
	e := env.spawn("slug", 0, 0)
	env.slugs[e] = true
	if _, err := env.sys.Register(e, archetype); err != nil {
		env.t.Fatalf("Register(%q) failed: %v", archetype, err)
	}
	return e
}

func (env *testEnv) spawnHelmet(host ecs.Entity, sealed bool) ecs.Entity {
	item := env.names.NewEntity(&components.Name{Value: "helmet"})
	env.blocker[item] = sealed
	if !env.TryEquip(host, item, components.SlotHead) {
		env.t.Fatal("could not equip helmet")
	}
	return item
}

func (env *testEnv) kill(e ecs.Entity) {
	old := env.state[e]
	env.state[e] = components.MobDead
	env.bus.Raise(e, &events.MobStateChanged{Old: old, New: components.MobDead})
}

// advance runs the do-after and ticker updates for d in steps of 100ms.
func (env *testEnv) advance(d time.Duration) {
	const step = 100 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		env.doAfter.Update(step)
		env.sys.Update(step)
	}
}

func (env *testEnv) countRecords(kind RecordKind) int {
	n := 0
	for _, r := range env.records {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func (env *testEnv) grantedSet(e ecs.Entity) map[events.ActionID]bool {
	out := make(map[events.ActionID]bool)
	for a, ok := range env.granted[e] {
		if ok {
			out[a] = true
		}
	}
	return out
}

// ---------- events.Tagger ----------

func (env *testEnv) HasTag(e ecs.Entity, tag events.Tag) bool {
	switch tag {
	case events.TagBrainSlug:
		return env.slugs[e]
	case events.TagVitals:
		_, ok := env.state[e]
		return ok
	case events.TagInventory:
		return true
	}
	return false
}

// ---------- Inventory ----------

func (env *testEnv) TryEquip(host, item ecs.Entity, slot string) bool {
	if env.slots[host] == nil {
		env.slots[host] = make(map[string]ecs.Entity)
	}
	if _, taken := env.slots[host][slot]; taken {
		return false
	}
	env.slots[host][slot] = item
	env.bus.Raise(item, &events.Equipped{Equipee: host, Slot: slot})
	return true
}

func (env *testEnv) TryUnequip(host ecs.Entity, slot string, force bool) bool {
	item, ok := env.slots[host][slot]
	if !ok {
		return false
	}
	if !force {
		ev := env.bus.Raise(item, &events.UnequipAttempt{Unequipee: host, Slot: slot}).(*events.UnequipAttempt)
		if ev.Cancelled() {
			return false
		}
	}
	delete(env.slots[host], slot)
	env.unequips++
	env.bus.Raise(item, &events.Unequipped{Equipee: host, Slot: slot})
	return true
}

func (env *testEnv) SlotItem(host ecs.Entity, slot string) (ecs.Entity, bool) {
	item, ok := env.slots[host][slot]
	return item, ok
}

// ---------- Status / Popups / Positions ----------

func (env *testEnv) Paralyze(target ecs.Entity, d time.Duration) {
	env.paralyzed = append(env.paralyzed, paralyzeCall{target, d})
}

func (env *testEnv) Damage(target ecs.Entity, dmg DamageSpec, origin ecs.Entity) {
	env.damaged = append(env.damaged, damageCall{target, dmg, origin})
}

func (env *testEnv) Popup(msg Message, filter Filter, kind PopupKind) {
	env.popups = append(env.popups, popupCall{msg, filter, kind})
}

func (env *testEnv) Position(e ecs.Entity) (components.Position, bool) {
	p, ok := env.pos[e]
	return p, ok
}

// ---------- Actions ----------

func (env *testEnv) Grant(e ecs.Entity, a events.ActionID) {
	if env.granted[e] == nil {
		env.granted[e] = make(map[events.ActionID]bool)
	}
	env.granted[e][a] = true
}

func (env *testEnv) Revoke(e ecs.Entity, a events.ActionID) {
	delete(env.granted[e], a)
}

func (env *testEnv) Granted(e ecs.Entity, a events.ActionID) bool {
	return env.granted[e][a]
}

// ---------- Audio / Chemistry / Throwing / Emotes ----------

func (env *testEnv) PlayPvs(cue string, _ ecs.Entity) {
	env.sounds = append(env.sounds, cue)
}

func (env *testEnv) Inject(host ecs.Entity, reagent string, amount float64) bool {
	env.injections = append(env.injections, injectCall{host, reagent, amount})
	return true
}

func (env *testEnv) Throw(e ecs.Entity, dir components.Velocity, strength, distance float64) {
	env.throws = append(env.throws, throwCall{e, dir, strength, distance})
}

func (env *testEnv) Scream(e ecs.Entity) bool {
	if !env.vocal[e] {
		return false
	}
	env.screams = append(env.screams, e)
	return true
}

// ---------- Traits / Recorder ----------

func (env *testEnv) Exists(e ecs.Entity) bool {
	return env.world.Alive(e)
}

func (env *testEnv) Humanoid(e ecs.Entity) bool {
	return env.humanoid[e]
}

func (env *testEnv) BlocksIngestion(item ecs.Entity) bool {
	return env.blocker[item]
}

func (env *testEnv) MobState(e ecs.Entity) (components.MobState, bool) {
	s, ok := env.state[e]
	return s, ok
}

func (env *testEnv) Record(r Record) {
	env.records = append(env.records, r)
}
