// Package game wires the possession systems to an ark world and runs the
// headless simulation loop.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/mlange-42/ark/ecs"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/slug/config"
	"github.com/pthm-cable/slug/journal"
	"github.com/pthm-cable/slug/locale"
	"github.com/pthm-cable/slug/systems"
	"github.com/pthm-cable/slug/telemetry"
)

// Options configures game behavior.
type Options struct {
	Seed           int64   // RNG seed; 0 picks one from the clock
	LogStats       bool    // Log window stats via slog
	StatsWindowSec float64 // Stats window in sim seconds; 0 uses config
	SnapshotDir    string  // Directory for bookmark snapshots; empty disables
	OutputDir      string  // Directory for CSV output; empty disables
	Locale         string  // Popup locale; empty uses config

	// Journal receives every possession event. The game owns it and
	// closes it on Close. Nil disables the journal.
	Journal *journal.Store

	// StatsCallback, when set, receives every flushed stats window.
	StatsCallback func(telemetry.WindowStats)

	// SkipSpawn leaves the world empty; callers populate it themselves.
	SkipSpawn bool
}

// Game holds the simulation state.
type Game struct {
	cfg *config.Config
	rng *rand.Rand

	world    *World
	doAfter  *systems.DoAfterSystem
	slugs    *systems.BrainSlugSystem
	registry *systems.SystemRegistry
	parallel *parallelState

	hostGrid  *systems.SpatialGrid
	neighbors []systems.Neighbor

	tick  int32
	seed  int64
	runID string
	dt    time.Duration
	dtSec float32

	// Seconds since death, per corpse awaiting removal
	corpses map[ecs.Entity]float32
	// Seconds spent possessing the current host, per organism
	possessedFor map[ecs.Entity]float32

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	lifetimeTracker  *telemetry.LifetimeTracker
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	metrics          *telemetry.Metrics
	journal          *journal.Store
	pendingEvents    []telemetry.Event
	statsCallback    func(telemetry.WindowStats)
	logStats         bool
	snapshotDir      string
}

// NewGame creates a game with the given configuration and options.
func NewGame(cfg *config.Config, opts Options) (*Game, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	loc := opts.Locale
	if loc == "" {
		loc = cfg.Popups.Locale
	}
	bundle, err := locale.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("loading locales: %w", err)
	}
	localizer, err := locale.NewLocalizer(bundle, loc)
	if err != nil {
		return nil, fmt.Errorf("creating localizer: %w", err)
	}

	g := &Game{
		cfg:           cfg,
		rng:           rand.New(rand.NewSource(seed)),
		registry:      systems.NewSystemRegistry(),
		parallel:      newParallelState(),
		hostGrid:      systems.NewSpatialGrid(float32(cfg.World.Width), float32(cfg.World.Height), hostGridCell),
		seed:          seed,
		runID:         uuid.NewString(),
		dt:            cfg.Derived.DT,
		dtSec:         float32(cfg.Simulation.DT),
		corpses:       make(map[ecs.Entity]float32),
		possessedFor:  make(map[ecs.Entity]float32),
		journal:       opts.Journal,
		statsCallback: opts.StatsCallback,
		logStats:      opts.LogStats,
		snapshotDir:   opts.SnapshotDir,
	}
	g.world = NewWorld(cfg, localizer)
	g.doAfter = systems.NewDoAfterSystem(g.world.Bus(), g.world)
	g.slugs = systems.NewBrainSlugSystem(systems.Env{
		Bus:       g.world.Bus(),
		Inventory: g.world,
		Status:    g.world,
		Popups:    g.world,
		Positions: g.world,
		Actions:   g.world,
		Audio:     g.world,
		Chemistry: g.world,
		Throwing:  g.world,
		Emotes:    g.world,
		Traits:    g.world,
		Recorder:  g,
		Rand:      g.rng,
	}, cfg, g.doAfter)

	window := opts.StatsWindowSec
	if window <= 0 {
		window = cfg.Telemetry.StatsWindow
	}
	g.collector = telemetry.NewCollector(window, g.dtSec, cfg.Telemetry.Confidence)
	g.perfCollector = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow, g.registry.IDs()...)
	g.lifetimeTracker = telemetry.NewLifetimeTracker()
	g.bookmarkDetector = telemetry.NewBookmarkDetector(6)

	g.outputManager, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("creating output manager: %w", err)
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	g.metrics, err = telemetry.NewMetrics(g.phaseCounts)
	if err != nil {
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	if g.journal != nil {
		raw, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encoding config for journal: %w", err)
		}
		if err := g.journal.BeginRun(g.runID, seed, string(raw)); err != nil {
			return nil, fmt.Errorf("starting journal run: %w", err)
		}
	}

	if !opts.SkipSpawn {
		if err := g.spawnInitialPopulation(); err != nil {
			return nil, err
		}
	}

	slog.Info("game created",
		"run", g.runID,
		"seed", seed,
		"locale", localizer.Locale(),
		"systems", g.registry.IDs(),
	)
	return g, nil
}

// Step advances the simulation by one tick.
func (g *Game) Step() {
	g.perfCollector.StartTick()

	g.perfCollector.StartPhase(telemetry.PhaseFlight)
	g.updateFlight()

	g.perfCollector.StartPhase(telemetry.PhaseMovement)
	g.updateMovement()

	g.perfCollector.StartPhase(telemetry.PhaseStatus)
	g.updateStatus()

	g.perfCollector.StartPhase(telemetry.PhaseBehavior)
	g.updateBehavior()

	g.perfCollector.StartPhase(telemetry.PhaseDoAfter)
	g.doAfter.Update(g.dt)

	g.perfCollector.StartPhase(telemetry.PhaseTicker)
	g.slugs.Update(g.dt)

	g.perfCollector.StartPhase(telemetry.PhaseCleanup)
	g.cleanupDead()

	g.tick++

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()

	g.perfCollector.EndTick()
}

// Run steps until maxTicks is reached or ctx is cancelled.
// maxTicks <= 0 runs until cancellation.
func (g *Game) Run(ctx context.Context, maxTicks int32) error {
	for maxTicks <= 0 || g.tick < maxTicks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		g.Step()
	}
	return nil
}

// Close flushes pending output and releases resources.
func (g *Game) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if g.logStats {
		g.logLifetimes()
	}
	g.parallel.stopWorkers()

	keep(g.flushEvents())
	keep(g.outputManager.Close())
	keep(g.metrics.Close())
	if g.journal != nil {
		keep(g.journal.EndRun(g.tick))
		keep(g.journal.Close())
	}
	return firstErr
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int32 {
	return g.tick
}

// Seed returns the RNG seed in use.
func (g *Game) Seed() int64 {
	return g.seed
}

// RunID returns the identifier this run is journaled under.
func (g *Game) RunID() string {
	return g.runID
}

// World returns the ark-backed world.
func (g *Game) World() *World {
	return g.world
}

// Slugs returns the possession system.
func (g *Game) Slugs() *systems.BrainSlugSystem {
	return g.slugs
}

// Lifetimes returns the per-organism lifetime tracker.
func (g *Game) Lifetimes() *telemetry.LifetimeTracker {
	return g.lifetimeTracker
}

// PerfStats returns current performance statistics.
func (g *Game) PerfStats() telemetry.PerfStats {
	return g.perfCollector.Stats()
}

// phaseCounts reports organisms per possession phase for the metrics gauge.
func (g *Game) phaseCounts() map[string]int {
	counts := make(map[string]int, 5)
	for _, o := range g.slugs.Organisms() {
		counts[o.Phase().String()]++
	}
	return counts
}
