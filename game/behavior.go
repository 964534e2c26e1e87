package game

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/config"
	"github.com/pthm-cable/slug/events"
	"github.com/pthm-cable/slug/systems"
)

// prey is a host as seen by a hunting organism this tick.
type prey struct {
	e        ecs.Entity
	pos      components.Position
	state    components.MobState
	humanoid bool
	sealed   bool // Head slot holds an ingestion blocker
	occupied bool // Something is already latched on
}

// scanHosts snapshots every host once per tick.
func (g *Game) scanHosts() []prey {
	occupied := make(map[ecs.Entity]bool)
	for _, o := range g.slugs.Organisms() {
		if host, ok := o.Host(); ok {
			occupied[host] = true
		}
	}

	var out []prey
	query := g.world.hostFilter.Query()
	for query.Next() {
		e := query.Entity()
		pos, app := query.Get()
		p := prey{
			e:        e,
			pos:      *pos,
			state:    g.world.vitalsMap.Get(e).State,
			humanoid: app.Humanoid,
			occupied: occupied[e],
		}
		if item, ok := g.world.SlotItem(e, components.SlotHead); ok {
			p.sealed = g.world.BlocksIngestion(item)
		}
		out = append(out, p)
	}
	return out
}

// updateBehavior drives every organism and the hosts' reactions to them.
// Decisions are raised as events so they go through the same handlers a
// player's input would.
func (g *Game) updateBehavior() {
	bcfg := g.cfg.Behavior
	organisms := g.slugs.Organisms()
	g.indexHosts()

	// Target selection for free organisms: snapshot, plan, then apply in order.
	g.parallel.snapshots = g.parallel.snapshots[:0]
	for _, o := range organisms {
		e := o.Entity()
		if o.Deceased() || o.Phase() != systems.PhaseFree || g.world.InFlight(e) || g.world.Stunned(e) {
			continue
		}
		if pos, ok := g.world.Position(e); ok {
			g.parallel.snapshots = append(g.parallel.snapshots, huntSnapshot{Entity: e, Pos: pos})
		}
	}
	intents := g.parallel.plan(g.scanHosts())
	for i, snap := range g.parallel.snapshots {
		g.hunt(snap, intents[i])
	}

	for _, o := range organisms {
		if o.Deceased() {
			continue
		}
		e := o.Entity()
		if p := o.Phase(); p != systems.PhasePossessing && p != systems.PhaseReleasing {
			delete(g.possessedFor, e)
		}

		switch o.Phase() {
		case systems.PhaseAttached:
			if o.Archetype().Mode == config.ModeMultiPhase && g.rng.Float64() < bcfg.ActionChance {
				g.act(e, events.ActionHijack, components.Position{})
			}

		case systems.PhasePossessing:
			g.possessedFor[e] += g.dtSec
			g.lifetimeTracker.AddPossessedTime(e.ID(), g.dtSec)
			if float64(g.possessedFor[e]) >= bcfg.ReleaseAfter {
				g.act(e, events.ActionRelease, components.Position{})
				continue
			}
			if g.rng.Float64() < bcfg.ActionChance {
				action := events.ActionDominate
				if g.rng.Intn(2) == 0 {
					action = events.ActionTorment
				}
				g.act(e, action, components.Position{})
			}
		}
	}

	g.hostReactions()
}

// act raises an action on the performer.
func (g *Game) act(e ecs.Entity, action events.ActionID, target components.Position) {
	if !g.world.Granted(e, action) {
		return
	}
	g.world.bus.Raise(e, &events.Action{Action: action, Target: target})
}

// hunt moves a free organism toward its planned target, leaping when in
// range and biting when adjacent.
func (g *Game) hunt(snap huntSnapshot, intent huntIntent) {
	e := snap.Entity
	vel := g.world.velMap.Get(e)
	bcfg := g.cfg.Behavior

	if !intent.Found {
		*vel = components.Velocity{}
		return
	}

	switch {
	case intent.Dist <= float32(bcfg.MeleeRange):
		*vel = components.Velocity{}
		if g.rng.Float64() < bcfg.MeleeChance {
			hit := g.hostsWithin(snap.Pos, float32(bcfg.MeleeRange), e)
			g.world.bus.Raise(e, &events.MeleeHit{User: e, Hit: hit})
		}

	case intent.Dist <= float32(bcfg.LeapRange) && g.rng.Float64() < bcfg.ActionChance:
		g.act(e, events.ActionJump, intent.Target.pos)

	default:
		dir := snap.Pos.Direction(intent.Target.pos)
		speed := float32(bcfg.SlugSpeed)
		*vel = components.Velocity{X: dir.X * speed, Y: dir.Y * speed}
	}
}

// nearestPrey returns the closest living humanoid host with an open face.
func nearestPrey(pos components.Position, hosts []prey) (prey, float32, bool) {
	var best prey
	var bestDist float32
	found := false
	for _, h := range hosts {
		if !h.humanoid || h.sealed || h.occupied || h.state == components.MobDead {
			continue
		}
		d := pos.DistanceTo(h.pos)
		if !found || d < bestDist {
			best, bestDist, found = h, d, true
		}
	}
	return best, bestDist, found
}

// hostReactions lets hosts fight back: grabbing organisms at their feet
// and trying to pull latched ones off.
func (g *Game) hostReactions() {
	bcfg := g.cfg.Behavior

	for _, o := range g.slugs.Organisms() {
		if o.Deceased() {
			continue
		}
		e := o.Entity()

		if host, ok := o.Host(); ok {
			if g.canReact(host) && g.rng.Float64() < bcfg.PryChance {
				g.world.TryUnequip(host, o.Archetype().AttachSlot, false)
			}
			continue
		}

		if g.world.InFlight(e) {
			continue
		}
		pos, ok := g.world.Position(e)
		if !ok {
			continue
		}
		for _, host := range g.hostsWithin(pos, float32(bcfg.MeleeRange), e) {
			if !g.canReact(host) || g.rng.Float64() >= bcfg.PickupChance {
				continue
			}
			g.world.bus.Raise(e, &events.HandPickup{User: host})
			break
		}
	}
}

// canReact reports whether host is conscious and free to use its hands.
func (g *Game) canReact(host ecs.Entity) bool {
	state, ok := g.world.MobState(host)
	return ok && state == components.MobAlive && !g.world.Stunned(host)
}
