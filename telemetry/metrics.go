package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pthm-cable/slug/telemetry"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// PhaseCounter reports how many organisms are in each phase.
type PhaseCounter func() map[string]int

// Metrics exports possession counters through the global OTel provider.
// With no provider configured every instrument is a no-op.
type Metrics struct {
	events     metric.Int64Counter
	injected   metric.Float64Counter
	organisms  metric.Int64ObservableGauge
	registered metric.Registration
}

// NewMetrics creates the possession instruments. phases may be nil.
func NewMetrics(phases PhaseCounter) (*Metrics, error) {
	m := meter()
	mt := &Metrics{}

	var err error
	mt.events, err = m.Int64Counter(
		"slug.events",
		metric.WithDescription("Possession events by type and archetype"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}

	mt.injected, err = m.Float64Counter(
		"slug.reagent.injected",
		metric.WithDescription("Total reagent injected into critical hosts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating injection counter: %w", err)
	}

	mt.organisms, err = m.Int64ObservableGauge(
		"slug.organisms",
		metric.WithDescription("Current number of organisms per phase"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating organisms gauge: %w", err)
	}

	if phases != nil {
		mt.registered, err = m.RegisterCallback(
			func(ctx context.Context, o metric.Observer) error {
				for phase, n := range phases() {
					o.ObserveInt64(mt.organisms, int64(n),
						metric.WithAttributes(attribute.String("phase", phase)))
				}
				return nil
			},
			mt.organisms,
		)
		if err != nil {
			return nil, fmt.Errorf("registering organisms callback: %w", err)
		}
	}

	return mt, nil
}

// Record counts one event.
func (mt *Metrics) Record(ev Event) {
	if mt == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("type", ev.Type.String()),
		attribute.String("archetype", ev.Archetype),
	)
	mt.events.Add(context.Background(), 1, attrs)
	if ev.Type == EventInjection && ev.Success {
		mt.injected.Add(context.Background(), ev.Amount,
			metric.WithAttributes(attribute.String("archetype", ev.Archetype)))
	}
}

// Close unregisters the gauge callback.
func (mt *Metrics) Close() error {
	if mt == nil || mt.registered == nil {
		return nil
	}
	return mt.registered.Unregister()
}
