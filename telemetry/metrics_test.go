package telemetry

import "testing"

func TestMetrics_NoopProvider(t *testing.T) {
	mt, err := NewMetrics(func() map[string]int {
		return map[string]int{"free": 2}
	})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mt.Record(NewInjectionEvent(1, 1, 2, "brain_slug", 20, true))
	mt.Record(NewBiteEvent(2, 1, 3, "facehugger", 5))

	if err := mt.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var mt *Metrics
	mt.Record(Event{})
	if err := mt.Close(); err != nil {
		t.Error(err)
	}
}
