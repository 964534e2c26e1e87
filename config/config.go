// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	World      WorldConfig      `yaml:"world"`
	Host       HostConfig       `yaml:"host"`
	Popups     PopupConfig      `yaml:"popups"`
	Population PopulationConfig `yaml:"population"`
	Behavior   BehaviorConfig   `yaml:"behavior"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Archetypes []SlugArchetype  `yaml:"archetypes"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds the fixed-step clock.
type SimulationConfig struct {
	DT float64 `yaml:"dt"` // Seconds per tick
}

// WorldConfig holds simulation world dimensions.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Mode selects how far an archetype can progress once attached.
type Mode string

const (
	// ModeSimple latches and feeds but never hijacks (facehugger).
	ModeSimple Mode = "simple"
	// ModeMultiPhase runs the full hijack/possess/release sequence.
	ModeMultiPhase Mode = "multiphase"
)

// SlugArchetype is static per-archetype organism data.
// Durations are given in seconds; the time.Duration fields in Derived are what the systems read.
type SlugArchetype struct {
	Name            string             `yaml:"name"`
	Mode            Mode               `yaml:"mode"`
	AttachSlot      string             `yaml:"attach_slot"`      // Inventory slot the organism occupies on a host
	ParalyzeTime    float64            `yaml:"paralyze_time"`    // Host stun on latch
	Damage          map[string]float64 `yaml:"damage"`           // Latch/bite damage by type
	PounceChance    int                `yaml:"pounce_chance"`    // Percent chance a melee hit latches
	DamageFrequency float64            `yaml:"damage_frequency"` // Seconds between host status ticks
	HijackTime      float64            `yaml:"hijack_time"`
	ReleaseTime     float64            `yaml:"release_time"`
	DominateTime    float64            `yaml:"dominate_time"`  // Host paralysis per dominate
	MoveThreshold   float64            `yaml:"move_threshold"` // Organism movement that breaks a timed action
	HealReagent     string             `yaml:"heal_reagent"`
	HealAmount      float64            `yaml:"heal_amount"`
	HealMultiplier  float64            `yaml:"heal_multiplier"`
	JumpStrength    float64            `yaml:"jump_strength"`
	JumpDistance    float64            `yaml:"jump_distance"`
	Sounds          SoundConfig        `yaml:"sounds"`
}

// SoundConfig holds audio cue identifiers.
type SoundConfig struct {
	Jump   string `yaml:"jump"`
	Hijack string `yaml:"hijack"`
}

// HostConfig holds the minimal health model for hosts.
type HostConfig struct {
	CritThreshold float64 `yaml:"crit_threshold"` // Total damage at which a host goes critical
	DeadThreshold float64 `yaml:"dead_threshold"` // Total damage at which a host dies
	HealPerUnit   float64 `yaml:"heal_per_unit"`  // Damage removed per unit of heal reagent
	Metabolism    float64 `yaml:"metabolism"`     // Reagent units metabolized per second
	HitRadius     float64 `yaml:"hit_radius"`     // Contact radius for thrown organisms
	CorpseDecay   float64 `yaml:"corpse_decay"`   // Seconds a dead host or organism lingers before removal
}

// PopupConfig holds notification settings.
type PopupConfig struct {
	Locale    string  `yaml:"locale"`
	ViewRange float64 `yaml:"view_range"` // Observers farther than this do not see ambient popups
}

// PopulationConfig holds initial spawn counts.
type PopulationConfig struct {
	Hosts          int     `yaml:"hosts"`
	Slugs          int     `yaml:"slugs"`
	HelmetChance   float64 `yaml:"helmet_chance"`   // Fraction of hosts spawned wearing a sealed helmet
	NonHumanoid    float64 `yaml:"non_humanoid"`    // Fraction of hosts that cannot be latched onto
	FacehuggerRate float64 `yaml:"facehugger_rate"` // Fraction of slugs using the simple archetype
}

// BehaviorConfig holds headless AI tuning.
type BehaviorConfig struct {
	HostSpeed    float64 `yaml:"host_speed"`
	SlugSpeed    float64 `yaml:"slug_speed"` // Crawl speed of a free organism
	LeapRange    float64 `yaml:"leap_range"`
	ActionChance float64 `yaml:"action_chance"` // Per-tick chance a possessing slug acts
	ReleaseAfter float64 `yaml:"release_after"` // Seconds possessing before releasing
	HazardChance float64 `yaml:"hazard_chance"` // Per-tick chance a host takes environmental damage
	HazardDamage float64 `yaml:"hazard_damage"`
	MeleeChance  float64 `yaml:"melee_chance"` // Per-tick chance a free slug next to a host bites
	MeleeRange   float64 `yaml:"melee_range"`
	PickupChance float64 `yaml:"pickup_chance"` // Per-tick chance a host grabs a free organism at its feet
	PryChance    float64 `yaml:"pry_chance"`    // Per-tick chance a host tries to pull an attached organism off
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	Confidence          float64 `yaml:"confidence"` // Two-sided level for the attach-rate interval
}

// ArchetypeTiming holds an archetype's durations converted to time.Duration.
type ArchetypeTiming struct {
	Paralyze        time.Duration
	DamageFrequency time.Duration
	Hijack          time.Duration
	Release         time.Duration
	Dominate        time.Duration
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT             time.Duration     // Simulation.DT as a duration
	ArchetypeIndex map[string]uint8  // name -> index for archetype lookup
	Timing         []ArchetypeTiming // parallel to Archetypes
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Archetype returns the archetype with the given name.
func (c *Config) Archetype(name string) (*SlugArchetype, bool) {
	idx, ok := c.Derived.ArchetypeIndex[name]
	if !ok {
		return nil, false
	}
	return &c.Archetypes[idx], true
}

// seconds converts a float seconds value to a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// computeDerived fills defaults and calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	if c.Simulation.DT <= 0 {
		return fmt.Errorf("simulation.dt must be positive, got %v", c.Simulation.DT)
	}
	c.Derived.DT = seconds(c.Simulation.DT)

	if len(c.Archetypes) == 0 {
		return fmt.Errorf("at least one archetype is required")
	}

	c.Derived.ArchetypeIndex = make(map[string]uint8, len(c.Archetypes))
	c.Derived.Timing = make([]ArchetypeTiming, len(c.Archetypes))
	for i := range c.Archetypes {
		arch := &c.Archetypes[i]
		if arch.Name == "" {
			return fmt.Errorf("archetype %d: name is required", i)
		}
		if _, dup := c.Derived.ArchetypeIndex[arch.Name]; dup {
			return fmt.Errorf("archetype %q defined twice", arch.Name)
		}
		if arch.Mode == "" {
			arch.Mode = ModeMultiPhase
		}
		if arch.Mode != ModeSimple && arch.Mode != ModeMultiPhase {
			return fmt.Errorf("archetype %q: unknown mode %q", arch.Name, arch.Mode)
		}
		if arch.AttachSlot == "" {
			arch.AttachSlot = "mask"
		}
		if arch.PounceChance < 0 || arch.PounceChance > 100 {
			return fmt.Errorf("archetype %q: pounce_chance %d out of [0,100]", arch.Name, arch.PounceChance)
		}
		if arch.HealMultiplier == 0 {
			arch.HealMultiplier = 1
		}

		c.Derived.ArchetypeIndex[arch.Name] = uint8(i)
		c.Derived.Timing[i] = ArchetypeTiming{
			Paralyze:        seconds(arch.ParalyzeTime),
			DamageFrequency: seconds(arch.DamageFrequency),
			Hijack:          seconds(arch.HijackTime),
			Release:         seconds(arch.ReleaseTime),
			Dominate:        seconds(arch.DominateTime),
		}
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
