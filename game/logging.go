package game

import (
	"log/slog"
	"sort"

	"github.com/pthm-cable/slug/telemetry"
)

// logWorldState logs a one-line summary of hosts and organisms.
func (g *Game) logWorldState() {
	pop := g.samplePopulation()
	mean, _, p50, p90 := telemetry.ComputeDamageStats(pop.HostDamage)

	slog.Info("world",
		"tick", g.tick,
		"hosts", pop.Hosts,
		"critical", pop.HostsCritical,
		"dead", pop.HostsDead,
		"slugs", pop.Slugs,
		"slugs_dead", pop.SlugsDead,
		"free", pop.Free,
		"attached", pop.Attached,
		"possessing", pop.Possessing,
		"archetypes", g.lifetimeTracker.ActiveArchetypeCount(),
		"damage_mean", mean,
		"damage_p50", p50,
		"damage_p90", p90,
		"popups", g.world.PopupCount(),
		"timed_actions", g.doAfter.Count(),
	)
}

// logLifetimes logs each tracked organism's lifetime, most hosts possessed first.
func (g *Game) logLifetimes() {
	type entry struct {
		id    uint32
		stats *telemetry.LifetimeStats
	}
	all := g.lifetimeTracker.All()
	entries := make([]entry, 0, len(all))
	for id, ls := range all {
		entries = append(entries, entry{id, ls})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].stats.HostsPossessed != entries[j].stats.HostsPossessed {
			return entries[i].stats.HostsPossessed > entries[j].stats.HostsPossessed
		}
		return entries[i].id < entries[j].id
	})

	for _, e := range entries {
		slog.Info("lifetime",
			"slug", e.id,
			"archetype", g.cfg.Archetypes[e.stats.ArchetypeID].Name,
			"survival_sec", e.stats.SurvivalTimeSec,
			"attaches", e.stats.Attaches,
			"hijacks", e.stats.Hijacks,
			"hosts_possessed", e.stats.HostsPossessed,
			"possessed_sec", e.stats.PossessedSec,
			"bites", e.stats.Bites,
		)
	}
}
