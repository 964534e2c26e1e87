package telemetry

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float32
	confidence          float64

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	counts [len(eventTypeNames)]int
	melee  struct{ attempts, hits int }

	// Cumulative counters across all windows
	totalAttempts int
	totalHits     int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
// confidence: two-sided level for the melee attach-rate interval
func NewCollector(windowDurationSec float64, dt float32, confidence float64) *Collector {
	ticksPerWindow := int32(windowDurationSec / float64(dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		confidence:          confidence,
	}
}

// Record counts one event.
func (c *Collector) Record(ev Event) {
	if int(ev.Type) >= len(c.counts) {
		return
	}
	c.counts[ev.Type]++
	if ev.Type == EventAttachAttempt && ev.Detail == "melee" {
		c.melee.attempts++
		c.totalAttempts++
		if ev.Success {
			c.melee.hits++
			c.totalHits++
		}
	}
}

// Count returns the current window count for an event type.
func (c *Collector) Count(t EventType) int {
	if int(t) >= len(c.counts) {
		return 0
	}
	return c.counts[t]
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Population is a snapshot of hosts and organisms at window end.
type Population struct {
	Hosts         int
	HostsCritical int
	HostsDead     int
	Slugs         int
	SlugsDead     int

	// Organisms by phase
	Free       int
	Attached   int
	Hijacking  int
	Possessing int
	Releasing  int

	// Accumulated damage per living host, for percentiles
	HostDamage []float64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, pop Population) WindowStats {
	var meleeRate float64
	if c.melee.attempts > 0 {
		meleeRate = float64(c.melee.hits) / float64(c.melee.attempts)
	}
	lo, hi := AttachRateInterval(c.totalHits, c.totalAttempts, c.confidence)
	dmgMean, dmgP10, dmgP50, dmgP90 := ComputeDamageStats(pop.HostDamage)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * float64(c.dt),

		Hosts:         pop.Hosts,
		HostsCritical: pop.HostsCritical,
		HostsDead:     pop.HostsDead,
		Slugs:         pop.Slugs,
		SlugsDead:     pop.SlugsDead,

		Free:       pop.Free,
		Attached:   pop.Attached,
		Hijacking:  pop.Hijacking,
		Possessing: pop.Possessing,
		Releasing:  pop.Releasing,

		AttachAttempts:    c.counts[EventAttachAttempt],
		Attaches:          c.counts[EventAttached],
		MeleeAttempts:     c.melee.attempts,
		MeleeHits:         c.melee.hits,
		MeleeRate:         meleeRate,
		MeleeRateLo:       lo,
		MeleeRateHi:       hi,
		HijacksStarted:    c.counts[EventHijackStarted],
		Hijacks:           c.counts[EventHijacked],
		HijacksCancelled:  c.counts[EventHijackCancelled],
		Injections:        c.counts[EventInjection],
		Releases:          c.counts[EventReleased],
		ReleasesCancelled: c.counts[EventReleaseCancelled],
		ForcedDetaches:    c.counts[EventForcedDetach],
		Dominates:         c.counts[EventDominate],
		Torments:          c.counts[EventTorment],
		Bites:             c.counts[EventBite],
		Jumps:             c.counts[EventJump],

		HostDamageMean: dmgMean,
		HostDamageP10:  dmgP10,
		HostDamageP50:  dmgP50,
		HostDamageP90:  dmgP90,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.counts = [len(eventTypeNames)]int{}
	c.melee.attempts, c.melee.hits = 0, 0

	return stats
}
