package telemetry

import (
	"context"
	"testing"

	"github.com/leandrodaf/midibridge/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	points := make(map[string]metricdata.DataPoint[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			g, ok := m.Data.(metricdata.Gauge[int64])
			require.True(t, ok, "%s is not an int64 gauge", m.Name)
			require.Len(t, g.DataPoints, 1)
			points[m.Name] = g.DataPoints[0]
		}
	}
	return points
}

func TestObserveStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	stats := contracts.Stats{
		ClientState: contracts.ClientRunning,
		Batches:     3,
		Resets:      1,
		Fallbacks:   2,
		Cycles:      40,
		Delivered:   17,
		Filtered:    5,
		Dropped:     4,
	}
	require.NoError(t, ObserveStats(provider.Meter("test"), "bridge", func() contracts.Stats { return stats }))

	points := collect(t, reader)
	assert.Len(t, points, len(gauges))
	assert.Equal(t, int64(3), points["midibridge.chain.batches"].Value)
	assert.Equal(t, int64(1), points["midibridge.timing.resets"].Value)
	assert.Equal(t, int64(2), points["midibridge.timing.fallbacks"].Value)
	assert.Equal(t, int64(40), points["midibridge.dispatch.cycles"].Value)
	assert.Equal(t, int64(17), points["midibridge.dispatch.delivered"].Value)
	assert.Equal(t, int64(5), points["midibridge.dispatch.filtered"].Value)
	assert.Equal(t, int64(4), points["midibridge.source.dropped"].Value)
	assert.Equal(t, int64(1), points["midibridge.client.running"].Value)

	attrs := points["midibridge.chain.batches"].Attributes
	client, ok := attrs.Value(attribute.Key("client"))
	require.True(t, ok)
	assert.Equal(t, "bridge", client.AsString())

	stats.Delivered = 18
	stats.ClientState = contracts.ClientIdle
	points = collect(t, reader)
	assert.Equal(t, int64(18), points["midibridge.dispatch.delivered"].Value)
	assert.Equal(t, int64(0), points["midibridge.client.running"].Value)
}

func TestObserveStats_NilMeterUsesGlobalProvider(t *testing.T) {
	assert.NoError(t, ObserveStats(nil, "", func() contracts.Stats { return contracts.Stats{} }))
}
