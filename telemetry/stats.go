package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Hosts         int `csv:"hosts"`
	HostsCritical int `csv:"hosts_critical"`
	HostsDead     int `csv:"hosts_dead"`
	Slugs         int `csv:"slugs"`
	SlugsDead     int `csv:"slugs_dead"`

	// Organisms by phase at window end
	Free       int `csv:"free"`
	Attached   int `csv:"attached"`
	Hijacking  int `csv:"hijacking"`
	Possessing int `csv:"possessing"`
	Releasing  int `csv:"releasing"`

	// Attachment during window
	AttachAttempts int     `csv:"attach_attempts"`
	Attaches       int     `csv:"attaches"`
	MeleeAttempts  int     `csv:"melee_attempts"`
	MeleeHits      int     `csv:"melee_hits"`
	MeleeRate      float64 `csv:"melee_rate"`
	MeleeRateLo    float64 `csv:"melee_rate_lo"` // Cumulative interval, all windows so far
	MeleeRateHi    float64 `csv:"melee_rate_hi"`

	// Possession during window
	HijacksStarted    int `csv:"hijacks_started"`
	Hijacks           int `csv:"hijacks"`
	HijacksCancelled  int `csv:"hijacks_cancelled"`
	Injections        int `csv:"injections"`
	Releases          int `csv:"releases"`
	ReleasesCancelled int `csv:"releases_cancelled"`
	ForcedDetaches    int `csv:"forced_detaches"`
	Dominates         int `csv:"dominates"`
	Torments          int `csv:"torments"`
	Bites             int `csv:"bites"`
	Jumps             int `csv:"jumps"`

	// Host damage distribution (sampled at window end)
	HostDamageMean float64 `csv:"host_damage_mean"`
	HostDamageP10  float64 `csv:"host_damage_p10"`
	HostDamageP50  float64 `csv:"host_damage_p50"`
	HostDamageP90  float64 `csv:"host_damage_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDamageStats calculates mean and percentiles from damage values.
func ComputeDamageStats(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// AttachRateInterval returns the Wilson score interval for hits out of attempts
// at the given two-sided confidence level. Returns (0, 1) with no attempts.
func AttachRateInterval(hits, attempts int, confidence float64) (lo, hi float64) {
	if attempts <= 0 {
		return 0, 1
	}
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	n := float64(attempts)
	p := float64(hits) / n
	z2 := z * z

	center := (p + z2/(2*n)) / (1 + z2/n)
	half := z * math.Sqrt(p*(1-p)/n+z2/(4*n*n)) / (1 + z2/n)

	return math.Max(0, center-half), math.Min(1, center+half)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("hosts", s.Hosts),
		slog.Int("hosts_critical", s.HostsCritical),
		slog.Int("hosts_dead", s.HostsDead),
		slog.Int("slugs", s.Slugs),
		slog.Int("possessing", s.Possessing),
		slog.Int("attach_attempts", s.AttachAttempts),
		slog.Int("attaches", s.Attaches),
		slog.Float64("melee_rate", s.MeleeRate),
		slog.Int("hijacks", s.Hijacks),
		slog.Int("hijacks_cancelled", s.HijacksCancelled),
		slog.Int("injections", s.Injections),
		slog.Int("releases", s.Releases),
		slog.Int("forced_detaches", s.ForcedDetaches),
		slog.Float64("host_damage_mean", s.HostDamageMean),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"hosts", s.Hosts,
		"hosts_critical", s.HostsCritical,
		"hosts_dead", s.HostsDead,
		"slugs", s.Slugs,
		"slugs_dead", s.SlugsDead,
		"free", s.Free,
		"attached", s.Attached,
		"hijacking", s.Hijacking,
		"possessing", s.Possessing,
		"releasing", s.Releasing,
		"attach_attempts", s.AttachAttempts,
		"attaches", s.Attaches,
		"melee_attempts", s.MeleeAttempts,
		"melee_hits", s.MeleeHits,
		"melee_rate", s.MeleeRate,
		"melee_rate_lo", s.MeleeRateLo,
		"melee_rate_hi", s.MeleeRateHi,
		"hijacks_started", s.HijacksStarted,
		"hijacks", s.Hijacks,
		"hijacks_cancelled", s.HijacksCancelled,
		"injections", s.Injections,
		"releases", s.Releases,
		"releases_cancelled", s.ReleasesCancelled,
		"forced_detaches", s.ForcedDetaches,
		"dominates", s.Dominates,
		"torments", s.Torments,
		"bites", s.Bites,
		"jumps", s.Jumps,
		"host_damage_mean", s.HostDamageMean,
		"host_damage_p10", s.HostDamageP10,
		"host_damage_p50", s.HostDamageP50,
		"host_damage_p90", s.HostDamageP90,
	)
}
