package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestOTelMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	m, err := NewOTelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordInit(ctx, "magic", 5*time.Millisecond, nil)
	m.RecordStarted(ctx, "magic")
	m.RecordRuntime(ctx, "magic", "", time.Second, errors.New("bad suki"))
	m.RecordTransition(ctx, "magic", "failed")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, InstrumentationName, rm.ScopeMetrics[0].Scope.Name)

	names := make(map[string]bool)
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		names[metric.Name] = true
	}
	for _, want := range []string{
		"harness.plugin.init.duration",
		"harness.plugin.runtime",
		"harness.plugin.transitions",
		"harness.plugin.running",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestOTelMetrics_NilSafe(t *testing.T) {
	var m *OTelMetrics
	ctx := context.Background()

	m.RecordInit(ctx, "magic", time.Millisecond, nil)
	m.RecordStarted(ctx, "magic")
	m.RecordRuntime(ctx, "magic", "", time.Millisecond, nil)
	m.RecordTransition(ctx, "magic", "stopped")
}
