package game

import (
	"log/slog"

	"github.com/pthm-cable/slug/components"
	"github.com/pthm-cable/slug/systems"
	"github.com/pthm-cable/slug/telemetry"
)

// eventFlushThreshold bounds the in-memory events.csv buffer.
const eventFlushThreshold = 512

// Record converts a possession record into a telemetry event and fans it
// out to the collector, lifetime tracker, metrics, journal and CSV buffer.
func (g *Game) Record(r systems.Record) {
	ev := g.event(r)

	g.collector.Record(ev)
	g.lifetimeTracker.Observe(ev)
	g.metrics.Record(ev)
	if g.journal != nil {
		if err := g.journal.Append(ev); err != nil {
			slog.Error("failed to journal event", "error", err)
		}
	}
	if g.outputManager != nil {
		g.pendingEvents = append(g.pendingEvents, ev)
		if len(g.pendingEvents) >= eventFlushThreshold {
			if err := g.flushEvents(); err != nil {
				slog.Error("failed to write events", "error", err)
			}
		}
	}
}

// event builds the telemetry event for r.
func (g *Game) event(r systems.Record) telemetry.Event {
	var hostID uint32
	if host, ok := r.Host.Get(); ok {
		hostID = host.ID()
	}
	slugID := r.Slug.ID()

	var ev telemetry.Event
	switch r.Kind {
	case systems.RecordAttachAttempt:
		ev = telemetry.NewAttachAttemptEvent(g.tick, slugID, hostID, r.Archetype, r.Trigger.String(), r.Success)
	case systems.RecordForcedDetach:
		ev = telemetry.NewForcedDetachEvent(g.tick, slugID, hostID, r.Archetype, r.Cause.String())
	case systems.RecordInjection:
		ev = telemetry.NewInjectionEvent(g.tick, slugID, hostID, r.Archetype, r.Amount, r.Success)
	case systems.RecordBite:
		ev = telemetry.NewBiteEvent(g.tick, slugID, hostID, r.Archetype, r.Amount)
	default:
		ev = telemetry.NewPhaseEvent(eventType(r.Kind), g.tick, slugID, hostID, r.Archetype, r.Phase.String())
		ev.Success = r.Success
		ev.Amount = r.Amount
		switch {
		case r.Trigger != systems.TriggerNone:
			ev.Detail = r.Trigger.String()
		case r.Cause != systems.CauseNone:
			ev.Detail = r.Cause.String()
		}
	}
	ev.Phase = r.Phase.String()
	return ev
}

// eventType maps a record kind onto the event type of the same name.
// Both enums share one ordering.
func eventType(k systems.RecordKind) telemetry.EventType {
	return telemetry.EventType(k)
}

// flushEvents writes buffered events to events.csv.
func (g *Game) flushEvents() error {
	if len(g.pendingEvents) == 0 {
		return nil
	}
	err := g.outputManager.WriteEvents(g.pendingEvents)
	g.pendingEvents = g.pendingEvents[:0]
	return err
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	pop := g.samplePopulation()
	stats := g.collector.Flush(g.tick, pop)
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
		if id, pct := perfStats.Slowest(); id != "" {
			info, _ := g.registry.Get(id)
			slog.Debug("slowest system", "system", g.registry.GetName(id), "category", info.Category, "pct", pct)
		}
		g.logWorldState()
	}

	if g.outputManager != nil {
		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			slog.Error("failed to write telemetry", "error", err)
		}
		if err := g.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
		if err := g.flushEvents(); err != nil {
			slog.Error("failed to write events", "error", err)
		}
	}
	if g.journal != nil {
		if err := g.journal.Flush(); err != nil {
			slog.Error("failed to flush journal", "error", err)
		}
	}

	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if g.snapshotDir != "" {
			g.saveSnapshot(&bm)
		}
	}
}

// samplePopulation counts hosts and organisms and collects host damage.
func (g *Game) samplePopulation() telemetry.Population {
	var pop telemetry.Population

	query := g.world.hostFilter.Query()
	for query.Next() {
		v := g.world.vitalsMap.Get(query.Entity())
		pop.Hosts++
		switch v.State {
		case components.MobCritical:
			pop.HostsCritical++
		case components.MobDead:
			pop.HostsDead++
			continue
		}
		pop.HostDamage = append(pop.HostDamage, float64(v.Damage))
	}

	for _, o := range g.slugs.Organisms() {
		pop.Slugs++
		if o.Deceased() {
			pop.SlugsDead++
			continue
		}
		g.lifetimeTracker.UpdateSurvivalTime(o.Entity().ID(), g.tick, g.dtSec)
		switch o.Phase() {
		case systems.PhaseFree:
			pop.Free++
		case systems.PhaseAttached:
			pop.Attached++
		case systems.PhaseHijacking:
			pop.Hijacking++
		case systems.PhasePossessing:
			pop.Possessing++
		case systems.PhaseReleasing:
			pop.Releasing++
		}
	}
	return pop
}

// saveSnapshot creates and saves a snapshot to disk.
func (g *Game) saveSnapshot(bookmark *telemetry.Bookmark) {
	snapshot := g.Snapshot(bookmark)

	path, err := telemetry.SaveSnapshot(snapshot, g.snapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}

	slog.Info("snapshot saved", "path", path, "tick", g.tick)
}

// Snapshot builds a snapshot of the current possession state.
func (g *Game) Snapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	snapshot := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		RNGSeed:     g.seed,
		WorldWidth:  float32(g.cfg.World.Width),
		WorldHeight: float32(g.cfg.World.Height),
		Tick:        g.tick,
		Bookmark:    bookmark,
	}

	query := g.world.hostFilter.Query()
	for query.Next() {
		e := query.Entity()
		pos, app := query.Get()
		v := g.world.vitalsMap.Get(e)
		state := telemetry.HostState{
			ID:       e.ID(),
			Name:     g.world.NameOf(e),
			X:        pos.X,
			Y:        pos.Y,
			MobState: v.State.String(),
			Damage:   v.Damage,
			Humanoid: app.Humanoid,
		}
		if item, ok := g.world.SlotItem(e, components.SlotHead); ok {
			state.Headgear = item.ID()
		}
		snapshot.Hosts = append(snapshot.Hosts, state)
	}

	for _, o := range g.slugs.Organisms() {
		e := o.Entity()
		pos, _ := g.world.Position(e)
		state := telemetry.OrganismState{
			ID:        e.ID(),
			Archetype: o.Archetype().Name,
			Phase:     o.Phase().String(),
			Deceased:  o.Deceased(),
			X:         pos.X,
			Y:         pos.Y,
		}
		// Riders report where their host stands.
		if host, ok := o.Host(); ok {
			state.Host = host.ID()
			if hp, ok := g.world.Position(host); ok {
				state.X, state.Y = hp.X, hp.Y
			}
		}
		if ls := g.lifetimeTracker.Get(e.ID()); ls != nil {
			state.Lifetime = ls.ToJSON()
		}
		snapshot.Organisms = append(snapshot.Organisms, state)
	}

	return snapshot
}
