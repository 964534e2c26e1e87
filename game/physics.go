package game

import (
	"math"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/events"
	"github.com/pthm-cable/slug/systems"
)

// hostGridCell is the side of a host grid cell in world units.
const hostGridCell = 32

// indexHosts rebuilds the host grid from current positions.
func (g *Game) indexHosts() {
	g.hostGrid.Clear()
	query := g.world.hostFilter.Query()
	for query.Next() {
		pos, _ := query.Get()
		g.hostGrid.Insert(query.Entity(), *pos)
	}
}

// hostsWithin returns hosts within radius of pos, nearest first, as of the
// last indexHosts. exclude is skipped.
func (g *Game) hostsWithin(pos components.Position, radius float32, exclude ecs.Entity) []ecs.Entity {
	g.neighbors = g.hostGrid.QueryRadiusInto(g.neighbors[:0], pos, radius, exclude)
	sort.SliceStable(g.neighbors, func(i, j int) bool { return g.neighbors[i].Dist < g.neighbors[j].Dist })

	out := make([]ecs.Entity, 0, len(g.neighbors))
	for _, n := range g.neighbors {
		if g.world.Exists(n.E) {
			out = append(out, n.E)
		}
	}
	return out
}

// clampToWorld keeps pos inside the world bounds and reflects vel off the edges.
func (g *Game) clampToWorld(pos *components.Position, vel *components.Velocity) {
	w := float32(g.cfg.World.Width)
	h := float32(g.cfg.World.Height)
	if pos.X < 0 {
		pos.X = 0
		vel.X = -vel.X
	} else if pos.X > w {
		pos.X = w
		vel.X = -vel.X
	}
	if pos.Y < 0 {
		pos.Y = 0
		vel.Y = -vel.Y
	} else if pos.Y > h {
		pos.Y = h
		vel.Y = -vel.Y
	}
}

// updateFlight advances thrown organisms and raises ThrowHit on the first
// host each one passes over. A handled hit ends the flight.
func (g *Game) updateFlight() {
	g.indexHosts()

	var flying []ecs.Entity

	query := g.world.slugFilter.Query()
	for query.Next() {
		e := query.Entity()
		f := g.world.flightMap.Get(e)
		if f.Remaining <= 0 {
			continue
		}
		pos, _ := query.Get()
		vel := g.world.velMap.Get(e)

		step := f.Speed * g.dtSec
		if step > f.Remaining {
			step = f.Remaining
		}
		if f.Speed > 0 {
			pos.X += vel.X / f.Speed * step
			pos.Y += vel.Y / f.Speed * step
		}
		f.Remaining -= step
		g.clampToWorld(pos, vel)
		flying = append(flying, e)
	}

	radius := float32(g.cfg.Host.HitRadius)
	for _, e := range flying {
		pos, ok := g.world.Position(e)
		if !ok {
			continue
		}
		f := g.world.flightMap.Get(e)
		thrower, ok := g.world.byID[f.ThrowerID]
		if !ok {
			thrower = e
		}

		landed := f.Remaining <= 0
		for _, host := range g.hostsWithin(pos, radius, e) {
			ev := g.world.bus.Raise(e, &events.ThrowHit{Thrower: thrower, Target: host})
			if ev.Handled() {
				landed = true
				break
			}
		}
		if landed {
			g.land(e)
		}
	}
}

// land ends e's flight.
func (g *Game) land(e ecs.Entity) {
	if !g.world.Exists(e) {
		return
	}
	*g.world.flightMap.Get(e) = components.Flight{}
	*g.world.velMap.Get(e) = components.Velocity{}
}

// updateMovement integrates host wandering and organism crawling.
// Contained organisms do not move; their host carries them.
func (g *Game) updateMovement() {
	speed := float32(g.cfg.Behavior.HostSpeed)

	hosts := g.world.hostFilter.Query()
	for hosts.Next() {
		e := hosts.Entity()
		pos, _ := hosts.Get()
		vel := g.world.velMap.Get(e)
		v := g.world.vitalsMap.Get(e)

		if v.State != components.MobAlive || g.world.paralysisMap.Get(e).Remaining > 0 {
			*vel = components.Velocity{}
			continue
		}
		if (vel.X == 0 && vel.Y == 0) || g.rng.Float32() < 0.01 {
			angle := (g.rng.Float32()*2 - 1) * math.Pi
			vel.X, vel.Y = heading(angle, speed)
		}
		pos.X += vel.X * g.dtSec
		pos.Y += vel.Y * g.dtSec
		g.clampToWorld(pos, vel)
	}

	slugs := g.world.slugFilter.Query()
	for slugs.Next() {
		e := slugs.Entity()
		o := g.slugs.Organism(e)
		if o == nil || o.Deceased() || o.Contained() || g.world.flightMap.Get(e).Remaining > 0 {
			continue
		}
		pos, _ := slugs.Get()
		vel := g.world.velMap.Get(e)
		if g.world.paralysisMap.Get(e).Remaining > 0 {
			*vel = components.Velocity{}
			continue
		}
		pos.X += vel.X * g.dtSec
		pos.Y += vel.Y * g.dtSec
		g.clampToWorld(pos, vel)
	}
}

// updateStatus counts down stuns, metabolizes reagents into healing and
// rolls environmental hazards.
func (g *Game) updateStatus() {
	g.updateParalysis()
	g.updateMetabolism()
	g.updateHazards()
}

func (g *Game) updateParalysis() {
	tick := func(e ecs.Entity) {
		p := g.world.paralysisMap.Get(e)
		if p.Remaining > 0 {
			p.Remaining = max(p.Remaining-g.dtSec, 0)
		}
	}
	hosts := g.world.hostFilter.Query()
	for hosts.Next() {
		tick(hosts.Entity())
	}
	slugs := g.world.slugFilter.Query()
	for slugs.Next() {
		tick(slugs.Entity())
	}
}

// healReagents returns the set of reagents any archetype injects to heal.
func (g *Game) healReagents() map[string]bool {
	set := make(map[string]bool, len(g.cfg.Archetypes))
	for _, arch := range g.cfg.Archetypes {
		if arch.HealReagent != "" {
			set[arch.HealReagent] = true
		}
	}
	return set
}

func (g *Game) updateMetabolism() {
	rate := float32(g.cfg.Host.Metabolism) * g.dtSec
	perUnit := float32(g.cfg.Host.HealPerUnit)
	healing := g.healReagents()

	type heal struct {
		e      ecs.Entity
		amount float32
	}
	var heals []heal

	query := g.world.hostFilter.Query()
	for query.Next() {
		e := query.Entity()
		blood := g.world.bloodMap.Get(e)
		var amount float32
		for reagent, units := range blood.Reagents {
			used := min(units, rate)
			if units-used <= 0 {
				delete(blood.Reagents, reagent)
			} else {
				blood.Reagents[reagent] = units - used
			}
			if healing[reagent] {
				amount += used * perUnit
			}
		}
		if amount > 0 {
			heals = append(heals, heal{e, amount})
		}
	}

	for _, h := range heals {
		g.world.Heal(h.e, h.amount)
	}
}

// updateHazards damages random hosts and free organisms. Organisms riding
// a host are sheltered.
func (g *Game) updateHazards() {
	chance := g.cfg.Behavior.HazardChance
	dmg := systems.DamageSpec{"blunt": g.cfg.Behavior.HazardDamage}

	var struck []ecs.Entity
	hosts := g.world.hostFilter.Query()
	for hosts.Next() {
		e := hosts.Entity()
		if g.world.vitalsMap.Get(e).State != components.MobDead && g.rng.Float64() < chance {
			struck = append(struck, e)
		}
	}
	slugs := g.world.slugFilter.Query()
	for slugs.Next() {
		e := slugs.Entity()
		o := g.slugs.Organism(e)
		if o != nil && !o.Deceased() && !o.Contained() && g.rng.Float64() < chance {
			struck = append(struck, e)
		}
	}

	for _, e := range struck {
		g.world.Damage(e, dmg, ecs.Entity{})
	}
}
