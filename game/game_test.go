package game

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/config"
	"github.com/pthm-cable/slug/events"
	"github.com/pthm-cable/slug/journal"
	"github.com/pthm-cable/slug/systems"
	"github.com/pthm-cable/slug/telemetry"
)

// quietConfig returns defaults with every random behavior disabled so
// tests drive the organisms themselves.
func quietConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Behavior.HostSpeed = 0
	cfg.Behavior.SlugSpeed = 0
	cfg.Behavior.ActionChance = 0
	cfg.Behavior.MeleeChance = 0
	cfg.Behavior.HazardChance = 0
	cfg.Behavior.PickupChance = 0
	cfg.Behavior.PryChance = 0
	return cfg
}

func newTestGame(t *testing.T, cfg *config.Config) *Game {
	t.Helper()
	g, err := NewGame(cfg, Options{Seed: 1, SkipSpawn: true})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

// stepFor advances the game by at least secs of simulation time.
func stepFor(g *Game, secs float32) {
	n := int(secs/g.dtSec) + 1
	for i := 0; i < n; i++ {
		g.Step()
	}
}

func spawnPair(t *testing.T, g *Game, archetype string) (host, slug ecs.Entity) {
	t.Helper()
	host = g.SpawnHost("alice", components.Position{X: 100, Y: 100}, true)
	slug, err := g.SpawnSlug(archetype, components.Position{X: 95, Y: 100})
	if err != nil {
		t.Fatalf("SpawnSlug: %v", err)
	}
	return host, slug
}

func TestGame_JumpLatchHijackRelease(t *testing.T) {
	g := newTestGame(t, quietConfig(t))
	host, slug := spawnPair(t, g, "brain_slug")
	o := g.Slugs().Organism(slug)

	if err := g.Slugs().Perform(slug, events.ActionJump, components.Position{X: 100, Y: 100}); err != nil {
		t.Fatalf("jump: %v", err)
	}
	g.Step()

	if o.Phase() != systems.PhaseAttached {
		t.Fatalf("phase after jump = %s, want attached", o.Phase())
	}
	if got, _ := o.Host(); got != host {
		t.Fatalf("host = %v, want %v", got, host)
	}
	if !g.World().Stunned(host) {
		t.Error("host should be paralyzed on latch")
	}
	if v := g.World().Vitals(host); v.Damage != 5 {
		t.Errorf("host damage = %v, want 5", v.Damage)
	}
	if item, ok := g.World().SlotItem(host, components.SlotMask); !ok || item != slug {
		t.Error("organism should occupy the mask slot")
	}
	if g.World().PopupCount() != 3 {
		t.Errorf("popups = %d, want 3 (host, self, observer)", g.World().PopupCount())
	}

	if err := g.Slugs().Perform(slug, events.ActionHijack, components.Position{}); err != nil {
		t.Fatalf("hijack: %v", err)
	}
	if o.Phase() != systems.PhaseHijacking {
		t.Fatalf("phase = %s, want hijacking", o.Phase())
	}
	stepFor(g, 7.5)
	if o.Phase() != systems.PhasePossessing {
		t.Fatalf("phase after hijack time = %s, want possessing", o.Phase())
	}
	if g.World().SoundCount("slug_burrow") != 1 {
		t.Errorf("hijack sound played %d times, want 1", g.World().SoundCount("slug_burrow"))
	}

	if err := g.Slugs().Perform(slug, events.ActionRelease, components.Position{}); err != nil {
		t.Fatalf("release: %v", err)
	}
	stepFor(g, 4.5)
	if o.Phase() != systems.PhaseFree {
		t.Fatalf("phase after release = %s, want free", o.Phase())
	}
	if _, ok := g.World().SlotItem(host, components.SlotMask); ok {
		t.Error("mask slot should be empty after release")
	}

	ls := g.Lifetimes().Get(slug.ID())
	if ls == nil {
		t.Fatal("no lifetime stats")
	}
	if ls.Attaches != 1 || ls.Hijacks != 1 || ls.Releases != 1 {
		t.Errorf("lifetime = %+v, want one attach, hijack and release", *ls)
	}
}

func TestGame_HostDeathForcesDetach(t *testing.T) {
	g := newTestGame(t, quietConfig(t))
	host, slug := spawnPair(t, g, "brain_slug")

	if err := g.Slugs().Attach(slug, host); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := g.Slugs().Perform(slug, events.ActionHijack, components.Position{}); err != nil {
		t.Fatalf("hijack: %v", err)
	}

	g.World().Damage(host, systems.DamageSpec{"blunt": 500}, ecs.Entity{})

	o := g.Slugs().Organism(slug)
	if o.Phase() != systems.PhaseFree {
		t.Fatalf("phase = %s, want free", o.Phase())
	}
	if g.doAfter.Count() != 0 {
		t.Errorf("pending timed actions = %d, want 0", g.doAfter.Count())
	}
	if n := g.collector.Count(telemetry.EventForcedDetach); n != 1 {
		t.Errorf("forced detaches = %d, want 1", n)
	}
	if n := g.collector.Count(telemetry.EventHijackCancelled); n != 0 {
		t.Errorf("abandoned hijack should not be recorded as cancelled, got %d", n)
	}

	hostPos, _ := g.World().Position(host)
	slugPos, _ := g.World().Position(slug)
	if hostPos != slugPos {
		t.Errorf("organism at %v, want dropped at host %v", slugPos, hostPos)
	}
}

func TestGame_SealedHelmetBlocksLatch(t *testing.T) {
	g := newTestGame(t, quietConfig(t))
	host, slug := spawnPair(t, g, "brain_slug")
	g.Equip(host, g.World().NewItem("sealed helmet", true), components.SlotHead)

	err := g.Slugs().Attach(slug, host)
	if !errors.Is(err, systems.ErrIneligible) {
		t.Fatalf("Attach err = %v, want ErrIneligible", err)
	}
	if g.World().Stunned(host) {
		t.Error("failed latch must not paralyze")
	}
}

func TestGame_PullingOffIsVetoed(t *testing.T) {
	g := newTestGame(t, quietConfig(t))
	host, slug := spawnPair(t, g, "facehugger")

	var got []Delivery
	g.World().OnPopup = func(d Delivery) { got = append(got, d) }

	if err := g.Slugs().Attach(slug, host); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	got = got[:0]

	if g.World().TryUnequip(host, components.SlotMask, false) {
		t.Fatal("unforced unequip should be vetoed")
	}
	if len(got) != 1 || got[0].Key != systems.MsgCantRemove || got[0].Recipient != host {
		t.Fatalf("popups = %+v, want one cant-remove to host", got)
	}
	if got[0].Text == got[0].Key {
		t.Errorf("popup text %q was not localized", got[0].Text)
	}
	if o := g.Slugs().Organism(slug); o.Phase() != systems.PhaseAttached {
		t.Errorf("phase = %s, want attached", o.Phase())
	}
}

func TestGame_CriticalHostIsHealed(t *testing.T) {
	g := newTestGame(t, quietConfig(t))
	host, slug := spawnPair(t, g, "brain_slug")

	if err := g.Slugs().Attach(slug, host); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	g.World().Damage(host, systems.DamageSpec{"blunt": 115}, ecs.Entity{})
	if state, _ := g.World().MobState(host); state != components.MobCritical {
		t.Fatalf("host state = %s, want critical", state)
	}

	if err := g.Slugs().Perform(slug, events.ActionHijack, components.Position{}); err != nil {
		t.Fatalf("hijack: %v", err)
	}
	stepFor(g, 7.5)

	ls := g.Lifetimes().Get(slug.ID())
	if ls.ReagentInjected != 20 {
		t.Errorf("injected = %v, want 20", ls.ReagentInjected)
	}
	if g.World().Reagent(host, "epinephrine") <= 0 {
		t.Error("reagent should be in the host's bloodstream")
	}

	before := g.World().Vitals(host).Damage
	stepFor(g, 10)
	after := g.World().Vitals(host).Damage
	if after >= before {
		t.Errorf("damage %v -> %v, want healing", before, after)
	}
}

func TestGame_HandPickupBites(t *testing.T) {
	g := newTestGame(t, quietConfig(t))
	host, slug := spawnPair(t, g, "brain_slug")

	ev := g.World().Bus().Raise(slug, &events.HandPickup{User: host})
	if !ev.Handled() {
		t.Fatal("pickup should be handled")
	}
	if v := g.World().Vitals(host); v.Damage != 5 {
		t.Errorf("bitten host damage = %v, want 5", v.Damage)
	}
	if n := g.collector.Count(telemetry.EventBite); n != 1 {
		t.Errorf("bites = %d, want 1", n)
	}
}

func TestGame_CleanupRemovesDecayedCorpses(t *testing.T) {
	cfg := quietConfig(t)
	cfg.Host.CorpseDecay = 1
	g := newTestGame(t, cfg)
	host, slug := spawnPair(t, g, "brain_slug")

	g.World().Damage(host, systems.DamageSpec{"blunt": 500}, ecs.Entity{})
	g.World().Damage(slug, systems.DamageSpec{"blunt": 500}, ecs.Entity{})
	if !g.Slugs().Organism(slug).Deceased() {
		t.Fatal("organism should be deceased")
	}

	stepFor(g, 1.5)

	if g.World().Exists(host) {
		t.Error("host corpse should be removed")
	}
	if g.World().Exists(slug) {
		t.Error("organism corpse should be removed")
	}
	if g.Slugs().Organism(slug) != nil {
		t.Error("organism should be unregistered")
	}
	if g.Lifetimes().Get(slug.ID()) != nil {
		t.Error("lifetime stats should be dropped")
	}
}

func TestGame_RegistryCoversPerfPhases(t *testing.T) {
	reg := systems.NewSystemRegistry()
	phases := []string{
		telemetry.PhaseFlight, telemetry.PhaseMovement, telemetry.PhaseStatus,
		telemetry.PhaseBehavior, telemetry.PhaseDoAfter, telemetry.PhaseTicker,
		telemetry.PhaseCleanup, telemetry.PhaseTelemetry,
	}
	for _, p := range phases {
		if _, ok := reg.Get(p); !ok {
			t.Errorf("perf phase %q has no registered system", p)
		}
	}
}

func TestGame_SameSeedSameStats(t *testing.T) {
	run := func() []telemetry.WindowStats {
		cfg, err := config.Load("")
		if err != nil {
			t.Fatalf("loading defaults: %v", err)
		}
		var windows []telemetry.WindowStats
		g, err := NewGame(cfg, Options{
			Seed:           42,
			StatsWindowSec: 5,
			StatsCallback:  func(s telemetry.WindowStats) { windows = append(windows, s) },
		})
		if err != nil {
			t.Fatalf("NewGame: %v", err)
		}
		defer g.Close()
		for i := 0; i < 1800; i++ {
			g.Step()
		}
		return windows
	}

	a, b := run(), run()
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("window counts %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("window %d differs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}

func TestGame_WritesOutputsAndJournal(t *testing.T) {
	dir := t.TempDir()
	store, err := journal.Open("")
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	g, err := NewGame(cfg, Options{
		Seed:           7,
		StatsWindowSec: 2,
		OutputDir:      dir,
		SnapshotDir:    dir,
		Journal:        store,
	})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}

	// Guarantee at least one journaled event.
	host := g.SpawnHost("bob", components.Position{X: 10, Y: 10}, true)
	slug, err := g.SpawnSlug("brain_slug", components.Position{X: 12, Y: 10})
	if err != nil {
		t.Fatalf("SpawnSlug: %v", err)
	}
	if err := g.Slugs().Attach(slug, host); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	for i := 0; i < 300; i++ {
		g.Step()
	}

	runs, err := store.Runs()
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != g.RunID() {
		t.Fatalf("runs = %+v, want one run %s", runs, g.RunID())
	}
	history, err := store.SlugHistory(slug.ID())
	if err != nil {
		t.Fatalf("SlugHistory: %v", err)
	}
	if len(history) == 0 {
		t.Error("journal has no entries for the attached organism")
	}

	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, name := range []string{"config.yaml", "telemetry.csv", "perf.csv", "events.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestGame_RecordKindsMatchEventTypes(t *testing.T) {
	var k systems.RecordKind
	for ; k.String() != "unknown"; k++ {
		if got := eventType(k).String(); got != k.String() {
			t.Errorf("record kind %d = %q, event type = %q", k, k.String(), got)
		}
	}
	if got := eventType(k).String(); got != "unknown" {
		t.Errorf("event type %d = %q past the last record kind", k, got)
	}
}

func TestGame_EventFromRecord(t *testing.T) {
	g := newTestGame(t, quietConfig(t))
	host, slug := spawnPair(t, g, "brain_slug")

	tests := []struct {
		name string
		rec  systems.Record
		want telemetry.Event
	}{
		{
			"attach attempt",
			systems.Record{Kind: systems.RecordAttachAttempt, Trigger: systems.TriggerThrow, Success: true, Phase: systems.PhaseFree},
			telemetry.Event{Type: telemetry.EventAttachAttempt, Detail: "throw", Success: true, Phase: "free"},
		},
		{
			"forced detach",
			systems.Record{Kind: systems.RecordForcedDetach, Cause: systems.CauseHostDeath, Phase: systems.PhaseFree},
			telemetry.Event{Type: telemetry.EventForcedDetach, Detail: "host_death", Phase: "free"},
		},
		{
			"injection",
			systems.Record{Kind: systems.RecordInjection, Amount: 20, Success: true, Phase: systems.PhaseHijacking},
			telemetry.Event{Type: telemetry.EventInjection, Amount: 20, Success: true, Phase: "hijacking"},
		},
		{
			"released",
			systems.Record{Kind: systems.RecordReleased, Cause: systems.CauseReleased, Success: true, Phase: systems.PhaseFree},
			telemetry.Event{Type: telemetry.EventReleased, Detail: "released", Success: true, Phase: "free"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rec.Slug = slug
			tt.rec.Host = components.Ref(host)
			tt.rec.Archetype = "brain_slug"
			tt.want.Tick = g.Tick()
			tt.want.SlugID = slug.ID()
			tt.want.HostID = host.ID()
			tt.want.Archetype = "brain_slug"

			if got := g.event(tt.rec); got != tt.want {
				t.Errorf("event = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// Organisms drop at their host's feet through the inventory alone,
// so a system without a recorder behaves the same.
func TestGame_DetachWithoutRecorderDropsAtHost(t *testing.T) {
	cfg := quietConfig(t)
	w := newTestWorld(t)
	sys := systems.NewBrainSlugSystem(systems.Env{
		Bus:       w.Bus(),
		Inventory: w,
		Status:    w,
		Popups:    w,
		Positions: w,
		Actions:   w,
		Audio:     w,
		Chemistry: w,
		Throwing:  w,
		Emotes:    w,
		Traits:    w,
		Rand:      rand.New(rand.NewSource(1)),
	}, cfg, systems.NewDoAfterSystem(w.Bus(), w))

	host := w.NewHost("alice", components.Position{X: 100, Y: 100}, true)
	slug := w.NewSlug("brain_slug", components.Position{X: 10, Y: 10}, cfg.Derived.ArchetypeIndex["brain_slug"])
	if _, err := sys.Register(slug, "brain_slug"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := sys.Attach(slug, host); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	w.SetPosition(host, components.Position{X: 150, Y: 120})
	if err := sys.Detach(slug); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	if pos, _ := w.Position(slug); pos != (components.Position{X: 150, Y: 120}) {
		t.Errorf("organism at %v, want dropped at host", pos)
	}
}
