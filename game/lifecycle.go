package game

import (
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/config"
)

// spawnInitialPopulation creates the starting hosts, headgear and organisms.
func (g *Game) spawnInitialPopulation() error {
	cfg := g.cfg

	for i := 0; i < cfg.Population.Hosts; i++ {
		pos := g.randomPosition()
		humanoid := g.rng.Float64() >= cfg.Population.NonHumanoid
		host := g.SpawnHost(fmt.Sprintf("crew-%02d", i+1), pos, humanoid)

		// Some crew wear sealed helmets; the rest a cloth hat at best.
		if humanoid && g.rng.Float64() < cfg.Population.HelmetChance {
			g.Equip(host, g.world.NewItem("sealed helmet", true), components.SlotHead)
		} else if g.rng.Intn(3) == 0 {
			g.Equip(host, g.world.NewItem("cap", false), components.SlotHead)
		}
	}

	simple, multi := archetypesByMode(cfg)
	for i := 0; i < cfg.Population.Slugs; i++ {
		name := multi
		if simple != "" && (name == "" || g.rng.Float64() < cfg.Population.FacehuggerRate) {
			name = simple
		}
		if _, err := g.SpawnSlug(name, g.randomPosition()); err != nil {
			return fmt.Errorf("spawning organism %d: %w", i, err)
		}
	}
	return nil
}

// archetypesByMode returns the first simple and first multi-phase archetype names.
func archetypesByMode(cfg *config.Config) (simple, multi string) {
	for _, arch := range cfg.Archetypes {
		switch arch.Mode {
		case config.ModeSimple:
			if simple == "" {
				simple = arch.Name
			}
		case config.ModeMultiPhase:
			if multi == "" {
				multi = arch.Name
			}
		}
	}
	return simple, multi
}

func (g *Game) randomPosition() components.Position {
	return components.Position{
		X: g.rng.Float32() * float32(g.cfg.World.Width),
		Y: g.rng.Float32() * float32(g.cfg.World.Height),
	}
}

// SpawnHost creates a potential host.
func (g *Game) SpawnHost(name string, pos components.Position, humanoid bool) ecs.Entity {
	return g.world.NewHost(name, pos, humanoid)
}

// Equip puts item into slot on host, logging a failure.
func (g *Game) Equip(host, item ecs.Entity, slot string) bool {
	ok := g.world.TryEquip(host, item, slot)
	if !ok {
		slog.Debug("equip failed", "host", host.ID(), "item", item.ID(), "slot", slot)
	}
	return ok
}

// SpawnSlug creates an organism of the named archetype and registers it
// with the possession and lifetime trackers.
func (g *Game) SpawnSlug(archetype string, pos components.Position) (ecs.Entity, error) {
	idx, ok := g.cfg.Derived.ArchetypeIndex[archetype]
	if !ok {
		return ecs.Entity{}, fmt.Errorf("unknown archetype %q", archetype)
	}
	e := g.world.NewSlug(archetype, pos, idx)
	if _, err := g.slugs.Register(e, archetype); err != nil {
		g.world.Remove(e)
		return ecs.Entity{}, err
	}
	g.lifetimeTracker.Register(e.ID(), g.tick, idx)
	return e, nil
}

// removeSlug unregisters an organism and deletes its body.
func (g *Game) removeSlug(e ecs.Entity) {
	if o := g.slugs.Organism(e); o != nil && !o.Deceased() {
		g.lifetimeTracker.UpdateSurvivalTime(e.ID(), g.tick, g.dtSec)
	}
	g.slugs.Unregister(e)
	if stats := g.lifetimeTracker.Remove(e.ID()); stats != nil {
		slog.Debug("organism removed",
			"slug", e.ID(),
			"survival_sec", stats.SurvivalTimeSec,
			"hosts_possessed", stats.HostsPossessed,
		)
	}
	delete(g.possessedFor, e)
	g.world.Remove(e)
}

// cleanupDead removes hosts and organisms that have been dead longer
// than the corpse decay time. Collects first, then removes.
func (g *Game) cleanupDead() {
	decay := float32(g.cfg.Host.CorpseDecay)

	var toRemove []ecs.Entity
	collect := func(e ecs.Entity) {
		v := g.world.Vitals(e)
		if v == nil || v.State != components.MobDead {
			return
		}
		g.corpses[e] += g.dtSec
		if g.corpses[e] >= decay {
			toRemove = append(toRemove, e)
		}
	}

	hosts := g.world.hostFilter.Query()
	for hosts.Next() {
		collect(hosts.Entity())
	}
	slugs := g.world.slugFilter.Query()
	for slugs.Next() {
		collect(slugs.Entity())
	}

	for _, e := range toRemove {
		delete(g.corpses, e)
		if g.slugs.Organism(e) != nil {
			g.removeSlug(e)
			continue
		}
		g.world.Remove(e)
	}
}
