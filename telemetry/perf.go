package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase names for the simulation step. They match the system registry IDs.
const (
	PhaseFlight    = "flight"
	PhaseMovement  = "movement"
	PhaseStatus    = "status"
	PhaseBehavior  = "behavior"
	PhaseDoAfter   = "do_after"
	PhaseTicker    = "ticker"
	PhaseCleanup   = "cleanup"
	PhaseTelemetry = "telemetry"
)

// PerfCollector times each tick and its phases over a rolling window.
// Phases are indexed in the order they were first seen.
type PerfCollector struct {
	windowSize int
	phases     []string
	index      map[string]int

	ticks  []time.Duration   // ring of tick durations
	spent  [][]time.Duration // ring of per-phase durations, parallel to ticks
	next   int
	filled int

	current    []time.Duration
	tickStart  time.Time
	phaseStart time.Time
	active     int // index of the running phase, -1 when none
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
// phases seeds the phase order; phases started later are appended.
func NewPerfCollector(windowSize int, phases ...string) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	p := &PerfCollector{
		windowSize: windowSize,
		index:      make(map[string]int),
		ticks:      make([]time.Duration, windowSize),
		spent:      make([][]time.Duration, windowSize),
		active:     -1,
	}
	for _, name := range phases {
		p.phaseIndex(name)
	}
	return p
}

func (p *PerfCollector) phaseIndex(name string) int {
	if i, ok := p.index[name]; ok {
		return i
	}
	p.index[name] = len(p.phases)
	p.phases = append(p.phases, name)
	p.current = append(p.current, 0)
	return len(p.phases) - 1
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	clear(p.current)
	p.active = -1
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.stopPhase(now)
	p.active = p.phaseIndex(phase)
	p.phaseStart = now
}

func (p *PerfCollector) stopPhase(now time.Time) {
	if p.active >= 0 {
		p.current[p.active] += now.Sub(p.phaseStart)
	}
}

// EndTick closes the running phase and records the tick.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.stopPhase(now)
	p.active = -1

	p.ticks[p.next] = now.Sub(p.tickStart)
	p.spent[p.next] = append(p.spent[p.next][:0], p.current...)
	p.next = (p.next + 1) % p.windowSize
	if p.filled < p.windowSize {
		p.filled++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	P95TickDuration time.Duration

	// Average duration and share of tick time, per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	TicksPerSecond float64

	order []string
}

// Stats aggregates the current window.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		PhaseAvg: make(map[string]time.Duration, len(p.phases)),
		PhasePct: make(map[string]float64, len(p.phases)),
		order:    slices.Clone(p.phases),
	}
	if p.filled == 0 {
		return s
	}

	durations := make([]float64, p.filled)
	sums := make([]time.Duration, len(p.phases))
	for i := 0; i < p.filled; i++ {
		durations[i] = float64(p.ticks[i])
		for j, d := range p.spent[i] {
			sums[j] += d
		}
	}
	slices.Sort(durations)

	mean := stat.Mean(durations, nil)
	s.AvgTickDuration = time.Duration(mean)
	s.MinTickDuration = time.Duration(durations[0])
	s.MaxTickDuration = time.Duration(durations[len(durations)-1])
	s.P95TickDuration = time.Duration(stat.Quantile(0.95, stat.Empirical, durations, nil))
	if mean > 0 {
		s.TicksPerSecond = float64(time.Second) / mean
	}

	for j, name := range p.phases {
		avg := sums[j] / time.Duration(p.filled)
		s.PhaseAvg[name] = avg
		if mean > 0 {
			s.PhasePct[name] = float64(avg) / mean * 100
		}
	}
	return s
}

// Slowest returns the phase with the largest share of tick time.
func (s PerfStats) Slowest() (string, float64) {
	var name string
	var best float64
	for _, phase := range s.order {
		if pct := s.PhasePct[phase]; pct > best {
			name, best = phase, pct
		}
	}
	return name, best
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"p95_tick_us", s.P95TickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	for _, phase := range s.order {
		if pct := s.PhasePct[phase]; pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd    int32   `csv:"window_end"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	P95TickUS    int64   `csv:"p95_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	FlightPct    float64 `csv:"flight_pct"`
	MovementPct  float64 `csv:"movement_pct"`
	StatusPct    float64 `csv:"status_pct"`
	BehaviorPct  float64 `csv:"behavior_pct"`
	DoAfterPct   float64 `csv:"do_after_pct"`
	TickerPct    float64 `csv:"ticker_pct"`
	CleanupPct   float64 `csv:"cleanup_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into one CSV row.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		P95TickUS:    s.P95TickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		FlightPct:    s.PhasePct[PhaseFlight],
		MovementPct:  s.PhasePct[PhaseMovement],
		StatusPct:    s.PhasePct[PhaseStatus],
		BehaviorPct:  s.PhasePct[PhaseBehavior],
		DoAfterPct:   s.PhasePct[PhaseDoAfter],
		TickerPct:    s.PhasePct[PhaseTicker],
		CleanupPct:   s.PhasePct[PhaseCleanup],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
