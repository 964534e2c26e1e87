package telemetry

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.9},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeDamageStats(t *testing.T) {
	// Unsorted on purpose
	values := []float64{50, 10, 100, 30, 90, 20, 70, 40, 80, 60}
	mean, p10, p50, p90 := ComputeDamageStats(values)

	if math.Abs(mean-55) > 0.001 {
		t.Errorf("mean = %v, want 55", mean)
	}
	if math.Abs(p10-19) > 0.01 {
		t.Errorf("p10 = %v, want ~19", p10)
	}
	if math.Abs(p50-55) > 0.01 {
		t.Errorf("p50 = %v, want ~55", p50)
	}
	if math.Abs(p90-91) > 0.01 {
		t.Errorf("p90 = %v, want ~91", p90)
	}
	if values[0] != 50 {
		t.Error("input slice should not be reordered")
	}
}

func TestComputeDamageStatsEmpty(t *testing.T) {
	mean, p10, p50, p90 := ComputeDamageStats(nil)

	if mean != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty slice should return all zeros")
	}
}

func TestAttachRateInterval(t *testing.T) {
	lo, hi := AttachRateInterval(0, 0, 0.95)
	if lo != 0 || hi != 1 {
		t.Errorf("no attempts: got (%v, %v), want (0, 1)", lo, hi)
	}

	lo, hi = AttachRateInterval(300, 1000, 0.95)
	if !(lo < 0.3 && 0.3 < hi) {
		t.Errorf("interval (%v, %v) should contain the observed rate", lo, hi)
	}
	// Wilson half-width at n=1000, p=0.3 is about 0.028
	if math.Abs((hi-lo)/2-0.0284) > 0.002 {
		t.Errorf("half-width = %v, want ~0.0284", (hi-lo)/2)
	}

	wideLo, wideHi := AttachRateInterval(300, 1000, 0.999)
	if wideHi-wideLo <= hi-lo {
		t.Error("higher confidence should widen the interval")
	}

	lo, hi = AttachRateInterval(0, 10, 0.95)
	if lo > 1e-9 || hi <= 0 || hi >= 1 {
		t.Errorf("zero hits: got (%v, %v)", lo, hi)
	}
}
