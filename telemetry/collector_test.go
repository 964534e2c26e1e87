package telemetry

import "testing"

func TestCollector_ShouldFlush(t *testing.T) {
	c := NewCollector(5.0, 0.5, 0.95)

	if c.ShouldFlush(9) {
		t.Error("should not flush before the window ends")
	}
	if !c.ShouldFlush(10) {
		t.Error("should flush once the window elapsed")
	}

	c.Flush(10, Population{})
	if c.ShouldFlush(15) {
		t.Error("window should restart at the last flush")
	}
}

func TestCollector_FlushCountsAndResets(t *testing.T) {
	c := NewCollector(10, 0.1, 0.95)

	c.Record(NewAttachAttemptEvent(1, 1, 2, "brain_slug", "melee", true))
	c.Record(NewAttachAttemptEvent(2, 1, 3, "brain_slug", "melee", false))
	c.Record(NewAttachAttemptEvent(3, 1, 3, "brain_slug", "throw", false))
	c.Record(NewPhaseEvent(EventAttached, 4, 1, 2, "brain_slug", "attached"))
	c.Record(NewPhaseEvent(EventHijacked, 5, 1, 2, "brain_slug", "possessing"))
	c.Record(NewInjectionEvent(5, 1, 2, "brain_slug", 20, true))
	c.Record(NewForcedDetachEvent(6, 1, 2, "brain_slug", "host_death"))

	if got := c.Count(EventAttachAttempt); got != 3 {
		t.Errorf("attach attempts = %d, want 3", got)
	}

	stats := c.Flush(100, Population{
		Hosts:      3,
		Possessing: 1,
		HostDamage: []float64{10, 20, 30},
	})

	if stats.AttachAttempts != 3 || stats.Attaches != 1 {
		t.Errorf("attach counts = %d/%d, want 3/1", stats.AttachAttempts, stats.Attaches)
	}
	if stats.MeleeAttempts != 2 || stats.MeleeHits != 1 || stats.MeleeRate != 0.5 {
		t.Errorf("melee = %d/%d rate %v", stats.MeleeHits, stats.MeleeAttempts, stats.MeleeRate)
	}
	if !(stats.MeleeRateLo < 0.5 && 0.5 < stats.MeleeRateHi) {
		t.Errorf("interval (%v, %v) should contain 0.5", stats.MeleeRateLo, stats.MeleeRateHi)
	}
	if stats.Hijacks != 1 || stats.Injections != 1 || stats.ForcedDetaches != 1 {
		t.Errorf("unexpected possession counts: %+v", stats)
	}
	if stats.Hosts != 3 || stats.Possessing != 1 {
		t.Errorf("population not copied: %+v", stats)
	}
	if stats.HostDamageMean != 20 {
		t.Errorf("host damage mean = %v, want 20", stats.HostDamageMean)
	}
	if stats.SimTimeSec < 9.99 || stats.SimTimeSec > 10.01 {
		t.Errorf("sim time = %v, want 10", stats.SimTimeSec)
	}

	next := c.Flush(200, Population{})
	if next.AttachAttempts != 0 || next.MeleeAttempts != 0 || next.Hijacks != 0 {
		t.Errorf("window counters should reset: %+v", next)
	}
	// The interval is cumulative and survives the reset
	if next.MeleeRateHi == 1 && next.MeleeRateLo == 0 {
		t.Error("cumulative interval should carry across windows")
	}
}

func TestEventType_String(t *testing.T) {
	if EventForcedDetach.String() != "forced_detach" {
		t.Errorf("got %q", EventForcedDetach.String())
	}
	if EventType(200).String() != "unknown" {
		t.Errorf("out of range type should be unknown")
	}
}
