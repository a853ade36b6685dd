// Package telemetry publishes the bridge diagnostics as OpenTelemetry gauges.
package telemetry

import (
	"context"
	"strings"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope used when no meter is supplied.
const MeterName = "github.com/leandrodaf/midibridge"

type gauge struct {
	name        string
	description string
	unit        string
	value       func(contracts.Stats) int64
}

var gauges = []gauge{
	{"midibridge.chain.batches", "Event batches buffered between listener and consumer", "{batch}",
		func(s contracts.Stats) int64 { return s.Batches }},
	{"midibridge.timing.resets", "Deadline re-derivations since the engine was activated", "{reset}",
		func(s contracts.Stats) int64 { return s.Resets }},
	{"midibridge.timing.fallbacks", "Cycles whose deadline fell back to the current time", "{cycle}",
		func(s contracts.Stats) int64 { return s.Fallbacks }},
	{"midibridge.dispatch.cycles", "Engine cycles processed", "{cycle}",
		func(s contracts.Stats) int64 { return s.Cycles }},
	{"midibridge.dispatch.delivered", "Events handed to the consumer", "{event}",
		func(s contracts.Stats) int64 { return s.Delivered }},
	{"midibridge.dispatch.filtered", "Events dropped by the event filter", "{event}",
		func(s contracts.Stats) int64 { return s.Filtered }},
	{"midibridge.source.dropped", "Events the source discarded because its buffer was full", "{event}",
		func(s contracts.Stats) int64 { return s.Dropped }},
	{"midibridge.client.running", "1 while the engine client is running", "1",
		func(s contracts.Stats) int64 {
			if s.ClientState == contracts.ClientRunning {
				return 1
			}
			return 0
		}},
}

// ObserveStats registers one observable gauge per diagnostic. Every collection reads a
// fresh snapshot from stats. A nil meter selects the global provider.
func ObserveStats(meter metric.Meter, clientName string, stats func() contracts.Stats) error {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	name := strings.TrimSpace(clientName)
	if name == "" {
		name = "unnamed"
	}
	attrs := metric.WithAttributes(attribute.String("client", name))

	for _, g := range gauges {
		value := g.value
		if _, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.description),
			metric.WithUnit(g.unit),
			metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
				observer.Observe(value(stats()), attrs)
				return nil
			}),
		); err != nil {
			return err
		}
	}
	return nil
}
